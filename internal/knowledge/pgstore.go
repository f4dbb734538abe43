package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/reelwise/reelwise/internal/log"
)

// Querier defines the database operations PGStore depends on.
// *Queries satisfies it in production; tests supply mocks.
type Querier interface {
	UpsertDocument(ctx context.Context, doc Document) (int64, error)
	InsertChunk(ctx context.Context, chunkID, docID string, ord int, content string, embedding []float32) error
	SearchChunks(ctx context.Context, embedding []float32, category string, limit int) ([]SearchChunkRow, error)
	GetDocument(ctx context.Context, id string) (DocumentRow, error)
	ListDocuments(ctx context.Context) ([]DocumentRow, error)
	ListDocumentsByCategory(ctx context.Context, category string) ([]DocumentRow, error)
	DeleteDocument(ctx context.Context, id string) error
	DeleteChunks(ctx context.Context, docID string) error
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)
	CountByCategory(ctx context.Context) ([]CategoryCount, error)
}

// PGStore is the PostgreSQL + pgvector implementation of the knowledge
// index. It offers the same operations as Store for deployments that
// want shared, durable storage instead of the embedded index.
//
// PGStore is safe for concurrent use; concurrency control is delegated
// to PostgreSQL.
type PGStore struct {
	queries  Querier
	embedder ai.Embedder
	chunker  *Chunker
	logger   log.Logger
}

// NewPGStore creates a PGStore.
//
// Example (production):
//
//	store := knowledge.NewPGStore(knowledge.NewQueries(pool), embedder, cfg.ChunkWords, logger)
//
// Example (testing with mock):
//
//	store := knowledge.NewPGStore(mockQuerier, mockEmbedder, 0, logger)
func NewPGStore(querier Querier, embedder ai.Embedder, chunkWords int, logger log.Logger) *PGStore {
	if logger == nil {
		logger = log.NewNop()
	}
	return &PGStore{
		queries:  querier,
		embedder: embedder,
		chunker:  NewChunker(chunkWords),
		logger:   logger,
	}
}

// Add chunks, embeds, and stores a document.
// Re-adding an existing ID replaces its chunks.
func (s *PGStore) Add(ctx context.Context, doc Document) (Document, error) {
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
	}
	if doc.CreateAt.IsZero() {
		doc.CreateAt = time.Now()
	}

	chunks := s.chunker.Split(doc.Content)
	doc.Chunks = len(chunks)

	// Embed every chunk before touching the database so a mid-batch
	// provider failure cannot leave a half-indexed document
	embeddings := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
			Input: []*ai.Document{ai.DocumentFromText(chunk, nil)},
		})
		if err != nil {
			return Document{}, fmt.Errorf("embedding chunk %d of document %q: %w", i, doc.ID, err)
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
			return Document{}, fmt.Errorf("empty embedding returned for document %q", doc.ID)
		}
		embeddings[i] = resp.Embeddings[0].Embedding
	}

	if _, err := s.queries.UpsertDocument(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("failed to upsert document %q: %w", doc.ID, err)
	}
	if err := s.queries.DeleteChunks(ctx, doc.ID); err != nil {
		return Document{}, fmt.Errorf("failed to clear old chunks of %q: %w", doc.ID, err)
	}
	for i, chunk := range chunks {
		chunkID := fmt.Sprintf("%s#%d", doc.ID, i)
		if err := s.queries.InsertChunk(ctx, chunkID, doc.ID, i, chunk, embeddings[i]); err != nil {
			return Document{}, fmt.Errorf("failed to store chunk %d of %q: %w", i, doc.ID, err)
		}
	}

	s.logger.Debug("added document",
		"id", doc.ID, "category", doc.Category, "chunks", doc.Chunks)
	return doc, nil
}

// Search performs cosine similarity search over chunk embeddings.
// Zero matches yields an empty slice, not an error.
func (s *PGStore) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)
	if cfg.topK <= 0 {
		return []Result{}, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	resp, err := s.embedder.Embed(queryCtx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(query, nil)},
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

	category := ""
	if cfg.category != "" && cfg.category != CategoryAllStages {
		category = string(cfg.category)
	}

	rows, err := s.queries.SearchChunks(queryCtx, resp.Embeddings[0].Embedding, category, cfg.topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			DocumentID: row.DocID,
			ChunkID:    row.ChunkID,
			Title:      row.Title,
			Content:    row.Content,
			Category:   Category(row.Category),
			Similarity: row.Similarity,
			sequence:   row.Seq,
		})
	}
	return results, nil
}

// Get returns a document record by ID.
func (s *PGStore) Get(ctx context.Context, docID string) (Document, error) {
	row, err := s.queries.GetDocument(ctx, docID)
	if err != nil {
		return Document{}, err
	}
	return rowToDocument(row, s.logger), nil
}

// Documents lists all documents in insertion order.
func (s *PGStore) Documents(ctx context.Context) ([]Document, error) {
	rows, err := s.queries.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, rowToDocument(row, s.logger))
	}
	return docs, nil
}

// DocumentsByCategory lists documents in the given category, in
// insertion order. CategoryAllStages lists everything.
func (s *PGStore) DocumentsByCategory(ctx context.Context, category Category) ([]Document, error) {
	if category == CategoryAllStages {
		return s.Documents(ctx)
	}
	rows, err := s.queries.ListDocumentsByCategory(ctx, string(category))
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, rowToDocument(row, s.logger))
	}
	return docs, nil
}

// Delete removes a document and its chunks.
// Returns ErrNotFound if the document does not exist.
func (s *PGStore) Delete(ctx context.Context, docID string) error {
	if err := s.queries.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	s.logger.Debug("deleted document", "id", docID)
	return nil
}

// Count returns the number of documents.
func (s *PGStore) Count(ctx context.Context) (int, error) {
	n, err := s.queries.CountDocuments(ctx)
	if err != nil {
		return 0, err
	}
	// Overflow protection for 32-bit platforms
	if n > math.MaxInt {
		return 0, fmt.Errorf("document count %d exceeds platform int capacity", n)
	}
	return int(n), nil
}

// Stats summarizes the index contents.
func (s *PGStore) Stats(ctx context.Context) (Stats, error) {
	chunks, err := s.queries.CountChunks(ctx)
	if err != nil {
		return Stats{}, err
	}
	counts, err := s.queries.CountByCategory(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Chunks:     int(chunks),
		ByCategory: make(map[Category]int, len(counts)),
	}
	for _, c := range counts {
		stats.Documents += int(c.Count)
		stats.ByCategory[Category(c.Category)] = int(c.Count)
	}
	return stats, nil
}

// Close closes the PGStore (no-op, database pool managed externally).
func (*PGStore) Close() error {
	return nil
}

// rowToDocument converts a database row to the business model.
func rowToDocument(row DocumentRow, logger log.Logger) Document {
	var metadata map[string]string
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			logger.Warn("failed to parse metadata", "doc_id", row.ID, "error", err)
			metadata = nil
		}
	}
	return Document{
		ID:       row.ID,
		Title:    row.Title,
		Category: Category(row.Category),
		Source:   row.Source,
		Metadata: metadata,
		Chunks:   int(row.Chunks),
		CreateAt: row.CreatedAt,
	}
}
