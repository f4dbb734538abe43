package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/reelwise/reelwise/internal/ingest"
	"github.com/reelwise/reelwise/internal/knowledge"
	"github.com/reelwise/reelwise/internal/log"
)

const (
	maxDocumentBodyBytes = 1 << 20 // 1MB JSON document
	maxUploadBytes       = 5 << 20 // 5MB uploaded file

	searchMaxTopK = 20
)

// KnowledgeStore is the store surface the knowledge routes consume.
// Satisfied by *knowledge.Store and *knowledge.PGStore.
type KnowledgeStore interface {
	Add(ctx context.Context, doc knowledge.Document) (knowledge.Document, error)
	Get(ctx context.Context, docID string) (knowledge.Document, error)
	Documents(ctx context.Context) ([]knowledge.Document, error)
	DocumentsByCategory(ctx context.Context, category knowledge.Category) ([]knowledge.Document, error)
	Delete(ctx context.Context, docID string) error
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
	Stats(ctx context.Context) (knowledge.Stats, error)
}

// knowledgeHandler serves the /api/v1/knowledge routes.
type knowledgeHandler struct {
	store       KnowledgeStore
	ingestor    *ingest.Ingestor
	defaultTopK int
	logger      log.Logger
}

// docSummary is a document without its content, for listings.
type docSummary struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Category  knowledge.Category `json:"category"`
	Source    string             `json:"source,omitempty"`
	Chunks    int                `json:"chunks"`
	CreatedAt time.Time          `json:"created_at"`
}

type docListResponse struct {
	Documents []docSummary `json:"documents"`
	Count     int          `json:"count"`
}

type addDocumentRequest struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
}

// searchResult is one chunk hit in wire form.
type searchResult struct {
	DocumentID string             `json:"document_id"`
	ChunkID    string             `json:"chunk_id"`
	Title      string             `json:"title"`
	Content    string             `json:"content"`
	Category   knowledge.Category `json:"category"`
	Similarity float32            `json:"similarity"`
}

type searchResponse struct {
	Query   string         `json:"query"`
	Results []searchResult `json:"results"`
}

func summarize(docs []knowledge.Document) []docSummary {
	out := make([]docSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, docSummary{
			ID:        d.ID,
			Title:     d.Title,
			Category:  d.Category,
			Source:    d.Source,
			Chunks:    d.Chunks,
			CreatedAt: d.CreateAt,
		})
	}
	return out
}

func (h *knowledgeHandler) list(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.Documents(r.Context())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	summaries := summarize(docs)
	writeJSON(w, http.StatusOK, docListResponse{Documents: summaries, Count: len(summaries)}, h.logger)
}

func (h *knowledgeHandler) listByCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := knowledge.ParseCategory(r.PathValue("category"))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	docs, err := h.store.DocumentsByCategory(r.Context(), cat)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	summaries := summarize(docs)
	writeJSON(w, http.StatusOK, docListResponse{Documents: summaries, Count: len(summaries)}, h.logger)
}

func (h *knowledgeHandler) add(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBodyBytes)

	var req addDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	cat, err := knowledge.ParseCategory(req.Category)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	doc, err := h.ingestor.IngestDocument(r.Context(), knowledge.Document{
		ID:       req.ID,
		Title:    req.Title,
		Content:  req.Content,
		Category: cat,
		Source:   "api",
	})
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("document added", "id", doc.ID, "category", doc.Category, "chunks", doc.Chunks)
	writeJSON(w, http.StatusCreated, summarize([]knowledge.Document{doc})[0], h.logger)
}

func (h *knowledgeHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_form", "invalid multipart form", h.logger)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file", "file field is required", h.logger)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read_failed", "failed to read uploaded file", h.logger)
		return
	}

	cat, err := knowledge.ParseCategory(r.FormValue("category"))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	doc, err := h.ingestor.IngestUpload(r.Context(), header.Filename, data, cat)
	if err != nil {
		if errors.Is(err, knowledge.ErrEmptyContent) {
			writeDomainError(w, err, h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "ingest_failed", err.Error(), h.logger)
		return
	}

	h.logger.Info("document uploaded", "id", doc.ID, "file", header.Filename, "chunks", doc.Chunks)
	writeJSON(w, http.StatusCreated, summarize([]knowledge.Document{doc})[0], h.logger)
}

func (h *knowledgeHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	h.logger.Info("document deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *knowledgeHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "q parameter is required", h.logger)
		return
	}

	topK := h.defaultTopK
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > searchMaxTopK {
			writeError(w, http.StatusBadRequest, "invalid_top_k", "top_k must be an integer between 1 and 20", h.logger)
			return
		}
		topK = n
	}

	cat, err := knowledge.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	results, err := h.store.Search(r.Context(), query,
		knowledge.WithTopK(topK),
		knowledge.WithCategory(cat),
	)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	hits := make([]searchResult, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchResult{
			DocumentID: res.DocumentID,
			ChunkID:    res.ChunkID,
			Title:      res.Title,
			Content:    res.Content,
			Category:   res.Category,
			Similarity: res.Similarity,
		})
	}

	writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: hits}, h.logger)
}

func (h *knowledgeHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, stats, h.logger)
}
