// Package ingest loads knowledge documents from the filesystem into the
// knowledge store.
//
// Supported formats: .txt and .md are read as plain text, .html/.htm go
// through goquery text extraction. Category is derived from path segments,
// title from the filename, and the document ID from a content hash so
// re-ingesting an unchanged file replaces rather than duplicates it.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/reelwise/reelwise/internal/knowledge"
	"github.com/reelwise/reelwise/internal/log"
)

// Index is the knowledge store surface the ingestor consumes.
// Satisfied by *knowledge.Store and *knowledge.PGStore.
type Index interface {
	Add(ctx context.Context, doc knowledge.Document) (knowledge.Document, error)
}

// Stats summarizes one ingestion run.
type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Failures  int `json:"failures"`
}

// Ingestor walks directories and indexes their documents.
type Ingestor struct {
	index  Index
	logger log.Logger
}

// New creates an Ingestor writing into index.
func New(index Index, logger log.Logger) *Ingestor {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Ingestor{index: index, logger: logger}
}

// IngestDir walks dir and indexes every supported file.
// Per-file failures are counted and logged, not fatal; the returned error
// covers only the walk itself.
func (in *Ingestor) IngestDir(ctx context.Context, dir string) (Stats, error) {
	var stats Stats

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !supportedFile(path) {
			return nil
		}

		doc, err := in.loadFile(path, dir)
		if err != nil {
			in.logger.Warn("skipping file", "path", path, "error", err)
			stats.Failures++
			return nil
		}

		added, err := in.index.Add(ctx, doc)
		if err != nil {
			in.logger.Warn("indexing failed", "path", path, "error", err)
			stats.Failures++
			return nil
		}

		stats.Documents++
		stats.Chunks += added.Chunks
		in.logger.Debug("ingested document",
			"path", path, "id", added.ID, "category", added.Category, "chunks", added.Chunks)
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walking %s: %w", dir, err)
	}

	in.logger.Info("ingestion completed",
		"dir", dir,
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"failures", stats.Failures,
	)
	return stats, nil
}

// IngestDocument indexes one already-loaded document, deriving the ID from
// a content hash when empty. Used by the upload API.
func (in *Ingestor) IngestDocument(ctx context.Context, doc knowledge.Document) (knowledge.Document, error) {
	if doc.ID == "" {
		doc.ID = contentID(doc.Content)
	}
	return in.index.Add(ctx, doc)
}

// IngestUpload indexes an uploaded file by name and raw bytes.
// Category may be empty, in which case the document is filed under
// all-stages. Title is derived from the filename.
func (in *Ingestor) IngestUpload(ctx context.Context, filename string, data []byte, category knowledge.Category) (knowledge.Document, error) {
	if !supportedFile(filename) {
		return knowledge.Document{}, fmt.Errorf("unsupported file type %q, want .txt, .md, or .html", filepath.Ext(filename))
	}

	content := string(data)
	if isHTML(filename) {
		var err error
		content, err = extractHTMLText(content)
		if err != nil {
			return knowledge.Document{}, fmt.Errorf("extracting html text: %w", err)
		}
	}
	if strings.TrimSpace(content) == "" {
		return knowledge.Document{}, fmt.Errorf("%w: %s", knowledge.ErrEmptyContent, filename)
	}

	if category == "" {
		category = knowledge.CategoryAllStages
	}

	return in.index.Add(ctx, knowledge.Document{
		ID:       contentID(content),
		Title:    titleFromFilename(filename),
		Content:  content,
		Category: category,
		Source:   "upload:" + filepath.Base(filename),
	})
}

// loadFile reads and converts one file into a Document.
func (in *Ingestor) loadFile(path, root string) (knowledge.Document, error) {
	// #nosec G304 -- path comes from walking the operator-chosen knowledge dir
	raw, err := os.ReadFile(path)
	if err != nil {
		return knowledge.Document{}, fmt.Errorf("reading file: %w", err)
	}

	content := string(raw)
	if isHTML(path) {
		content, err = extractHTMLText(content)
		if err != nil {
			return knowledge.Document{}, fmt.Errorf("extracting html text: %w", err)
		}
	}
	if strings.TrimSpace(content) == "" {
		return knowledge.Document{}, knowledge.ErrEmptyContent
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	return knowledge.Document{
		ID:       contentID(content),
		Title:    titleFromFilename(path),
		Content:  content,
		Category: categoryFromPath(rel),
		Source:   rel,
	}, nil
}

func supportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".html", ".htm":
		return true
	}
	return false
}

func isHTML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm"
}

// contentID derives a stable document ID from the content hash.
func contentID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "doc:" + hex.EncodeToString(sum[:8])
}

// titleFromFilename turns "location_scouting.md" into "Location Scouting".
func titleFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")

	words := strings.Fields(base)
	for i, w := range words {
		runes := []rune(w)
		words[i] = strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
	return strings.Join(words, " ")
}

// categoryFromPath maps path segments onto production stages.
// post-production is checked before production since the former contains
// the latter as a substring.
func categoryFromPath(rel string) knowledge.Category {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		lower := strings.ToLower(part)
		switch {
		case strings.Contains(lower, "pre-production") || strings.Contains(lower, "preproduction"):
			return knowledge.CategoryPreProduction
		case strings.Contains(lower, "post-production") || strings.Contains(lower, "postproduction"):
			return knowledge.CategoryPostProduction
		case strings.Contains(lower, "production"):
			return knowledge.CategoryProduction
		case strings.Contains(lower, "all-stages"):
			return knowledge.CategoryAllStages
		}
	}
	return knowledge.CategoryAllStages
}
