package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/reelwise/reelwise/internal/log"
)

// Metadata keys stored on every chunk.
const (
	metaDocID    = "doc_id"
	metaCategory = "category"
	metaTitle    = "title"
	metaSequence = "seq"
)

// Store manages knowledge documents with vector search capabilities.
// Documents are chunked, embedded, and stored in an embedded chromem-go
// index; a document catalog persisted alongside the index tracks
// document-level metadata that the vector store cannot enumerate.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	collection *chromem.Collection
	catalog    *Catalog
	chunker    *Chunker
	embedder   ai.Embedder
	logger     log.Logger
}

// Options configures a Store.
type Options struct {
	// DataDir is the persistence directory. Empty means in-memory only
	// (used by tests).
	DataDir string

	// Collection is the chromem collection name.
	Collection string

	// ChunkWords is the chunk size in words. Zero uses the default (400).
	ChunkWords int
}

// NewStore creates a Store backed by chromem-go.
//
// When opts.DataDir is set, the index and the document catalog are
// persisted there and an exclusive file lock guards the directory
// against concurrent processes.
//
// Example:
//
//	store, err := knowledge.NewStore(embedder, knowledge.Options{
//	    DataDir:    cfg.DataDir,
//	    Collection: cfg.Collection,
//	    ChunkWords: cfg.ChunkWords,
//	}, logger)
func NewStore(embedder ai.Embedder, opts Options, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if opts.Collection == "" {
		opts.Collection = "movie_production"
	}

	var db *chromem.DB
	var err error
	if opts.DataDir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(opts.DataDir, true)
		if err != nil {
			return nil, fmt.Errorf("opening vector index at %q: %w", opts.DataDir, err)
		}
	}

	collection, err := db.GetOrCreateCollection(opts.Collection, nil, NewEmbeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("opening collection %q: %w", opts.Collection, err)
	}

	catalog, err := NewCatalog(opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening document catalog: %w", err)
	}

	return &Store{
		collection: collection,
		catalog:    catalog,
		chunker:    NewChunker(opts.ChunkWords),
		embedder:   embedder,
		logger:     logger,
	}, nil
}

// Add adds a document to the knowledge store.
// The content is chunked and each chunk is embedded and indexed.
// An empty doc.ID gets a generated UUID; re-adding an existing ID
// replaces the previous chunks.
//
// Returns the stored document with ID, Chunks, and CreateAt populated.
func (s *Store) Add(ctx context.Context, doc Document) (Document, error) {
	if WordCount(doc.Content) == 0 {
		return Document{}, ErrEmptyContent
	}
	if doc.Category == "" {
		doc.Category = CategoryAllStages
	}
	if _, err := ParseCategory(string(doc.Category)); err != nil {
		return Document{}, err
	}

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	} else if s.catalog.Has(doc.ID) {
		// Replace semantics: drop the old chunks before re-indexing
		if err := s.deleteChunks(ctx, doc.ID); err != nil {
			return Document{}, fmt.Errorf("replacing document %q: %w", doc.ID, err)
		}
	}

	chunks := s.chunker.Split(doc.Content)
	seq := s.catalog.NextSequence()

	for i, chunk := range chunks {
		meta := map[string]string{
			metaDocID:    doc.ID,
			metaCategory: string(doc.Category),
			metaTitle:    doc.Title,
			metaSequence: strconv.FormatInt(seq, 10),
		}
		for k, v := range doc.Metadata {
			meta[k] = v
		}

		err := s.collection.AddDocument(ctx, chromem.Document{
			ID:       fmt.Sprintf("%s#%d", doc.ID, i),
			Metadata: meta,
			Content:  chunk,
		})
		if err != nil {
			// Best-effort rollback of chunks indexed so far
			if delErr := s.deleteChunks(ctx, doc.ID); delErr != nil {
				s.logger.Warn("rollback after failed add left partial chunks",
					"doc_id", doc.ID, "error", delErr)
			}
			return Document{}, fmt.Errorf("indexing chunk %d of document %q: %w", i, doc.ID, err)
		}
	}

	doc.Chunks = len(chunks)
	if doc.CreateAt.IsZero() {
		doc.CreateAt = time.Now()
	}

	if err := s.catalog.Put(doc, seq); err != nil {
		// Index and catalog must not drift; undo the chunks
		if delErr := s.deleteChunks(ctx, doc.ID); delErr != nil {
			s.logger.Warn("rollback after catalog failure left partial chunks",
				"doc_id", doc.ID, "error", delErr)
		}
		return Document{}, fmt.Errorf("recording document %q: %w", doc.ID, err)
	}

	s.logger.Debug("added document",
		"id", doc.ID, "category", doc.Category, "chunks", doc.Chunks)
	return doc, nil
}

// Search performs semantic search on the knowledge store.
// It returns the most similar chunks to the query, ordered by similarity
// score with ties broken by insertion order (earlier documents first).
// An empty index or zero matches yields an empty slice, not an error.
//
// Example usage:
//
//	results, err := store.Search(ctx, "storyboarding basics",
//	    knowledge.WithTopK(10),
//	    knowledge.WithCategory(knowledge.CategoryPreProduction))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)
	if cfg.topK <= 0 {
		return []Result{}, nil
	}

	// Bound vector search latency so a stuck embedder cannot block the turn
	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	resp, err := s.embedder.Embed(queryCtx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(query, nil),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned for query")
	}

	return s.searchEmbedding(queryCtx, resp.Embeddings[0].Embedding, cfg)
}

// searchEmbedding runs the vector query against chromem.
// chromem errors when asked for more results than stored, so topK is
// clamped to the collection size.
func (s *Store) searchEmbedding(ctx context.Context, embedding []float32, cfg *searchConfig) ([]Result, error) {
	count := s.collection.Count()
	if count == 0 {
		return []Result{}, nil
	}

	n := min(cfg.topK, count)

	var where map[string]string
	if cfg.category != "" && cfg.category != CategoryAllStages {
		where = map[string]string{metaCategory: string(cfg.category)}
	}

	rows, err := s.collection.QueryEmbedding(ctx, embedding, n, where, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, s.rowToResult(row))
	}

	// chromem orders by similarity but leaves equal scores in arbitrary
	// order; break ties by insertion sequence for determinism
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].sequence < results[j].sequence
	})

	return results, nil
}

// rowToResult converts a chromem query result to the business model.
func (s *Store) rowToResult(row chromem.Result) Result {
	seq, err := strconv.ParseInt(row.Metadata[metaSequence], 10, 64)
	if err != nil {
		s.logger.Warn("chunk missing insertion sequence", "chunk_id", row.ID)
		seq = 0
	}
	return Result{
		DocumentID: row.Metadata[metaDocID],
		ChunkID:    row.ID,
		Title:      row.Metadata[metaTitle],
		Content:    row.Content,
		Category:   Category(row.Metadata[metaCategory]),
		Metadata:   row.Metadata,
		Similarity: row.Similarity,
		sequence:   seq,
	}
}

// Get returns a document's catalog entry by ID.
// The chunked content is not reassembled; Content is empty.
func (s *Store) Get(_ context.Context, docID string) (Document, error) {
	doc, ok := s.catalog.Get(docID)
	if !ok {
		return Document{}, fmt.Errorf("document %q: %w", docID, ErrNotFound)
	}
	return doc, nil
}

// Documents lists all documents in insertion order.
func (s *Store) Documents(_ context.Context) ([]Document, error) {
	return s.catalog.List(), nil
}

// DocumentsByCategory lists documents in the given category, in
// insertion order. CategoryAllStages lists everything.
func (s *Store) DocumentsByCategory(_ context.Context, category Category) ([]Document, error) {
	all := s.catalog.List()
	if category == CategoryAllStages {
		return all, nil
	}
	docs := make([]Document, 0, len(all))
	for _, doc := range all {
		if doc.Category == category {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Delete removes a document and all of its chunks.
// Returns ErrNotFound if the document does not exist.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if !s.catalog.Has(docID) {
		return fmt.Errorf("document %q: %w", docID, ErrNotFound)
	}

	if err := s.deleteChunks(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete document %q: %w", docID, err)
	}
	if err := s.catalog.Remove(docID); err != nil {
		return fmt.Errorf("failed to remove document %q from catalog: %w", docID, err)
	}

	s.logger.Debug("deleted document", "id", docID)
	return nil
}

// deleteChunks removes every chunk belonging to docID from the index.
func (s *Store) deleteChunks(ctx context.Context, docID string) error {
	if s.collection.Count() == 0 {
		return nil
	}
	return s.collection.Delete(ctx, map[string]string{metaDocID: docID}, nil)
}

// Count returns the number of documents in the catalog.
func (s *Store) Count(_ context.Context) (int, error) {
	return s.catalog.Len(), nil
}

// Stats summarizes the index: document count, chunk count, and the
// per-category document breakdown.
func (s *Store) Stats(_ context.Context) (Stats, error) {
	stats := Stats{
		Chunks:     s.collection.Count(),
		ByCategory: make(map[Category]int),
	}
	for _, doc := range s.catalog.List() {
		stats.Documents++
		stats.ByCategory[doc.Category]++
	}
	return stats, nil
}

// Close releases the catalog's directory lock.
func (s *Store) Close() error {
	return s.catalog.Close()
}
