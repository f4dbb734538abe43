package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DBTX abstracts a pgx connection or pool so Queries can run against
// either (and against a transaction in tests).
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the knowledge SQL against PostgreSQL.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// DocumentRow is a documents table row.
type DocumentRow struct {
	ID        string
	Title     string
	Category  string
	Source    string
	Chunks    int32
	Seq       int64
	Metadata  []byte
	CreatedAt time.Time
}

// SearchChunkRow is a vector search result row.
type SearchChunkRow struct {
	ChunkID    string
	DocID      string
	Title      string
	Category   string
	Content    string
	Seq        int64
	Similarity float32
}

// CategoryCount is one row of the per-category breakdown.
type CategoryCount struct {
	Category string
	Count    int64
}

const upsertDocumentSQL = `
INSERT INTO documents (id, title, category, source, chunks, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    category = EXCLUDED.category,
    source = EXCLUDED.source,
    chunks = EXCLUDED.chunks,
    metadata = EXCLUDED.metadata
RETURNING seq
`

// UpsertDocument inserts or replaces a document record and returns its
// insertion sequence.
func (q *Queries) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	meta := doc.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	var seq int64
	err = q.db.QueryRow(ctx, upsertDocumentSQL,
		doc.ID, doc.Title, string(doc.Category), doc.Source,
		int32(doc.Chunks), metaJSON, doc.CreateAt,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("upsert document: %w", err)
	}
	return seq, nil
}

const insertChunkSQL = `
INSERT INTO chunks (id, doc_id, ord, content, embedding)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    content = EXCLUDED.content,
    embedding = EXCLUDED.embedding
`

// InsertChunk stores one embedded chunk.
func (q *Queries) InsertChunk(ctx context.Context, chunkID, docID string, ord int, content string, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	if _, err := q.db.Exec(ctx, insertChunkSQL, chunkID, docID, int32(ord), content, vec); err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

const searchChunksSQL = `
SELECT c.id, c.doc_id, d.title, d.category, c.content, d.seq,
       1 - (c.embedding <=> $1) AS similarity
FROM chunks c
JOIN documents d ON d.id = c.doc_id
WHERE $2 = '' OR d.category = $2
ORDER BY similarity DESC, d.seq ASC
LIMIT $3
`

// SearchChunks performs cosine similarity search. An empty category
// searches all stages. Ties are broken by document insertion order.
func (q *Queries) SearchChunks(ctx context.Context, embedding []float32, category string, limit int) ([]SearchChunkRow, error) {
	vec := pgvector.NewVector(embedding)
	rows, err := q.db.Query(ctx, searchChunksSQL, vec, category, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var results []SearchChunkRow
	for rows.Next() {
		var r SearchChunkRow
		if err := rows.Scan(&r.ChunkID, &r.DocID, &r.Title, &r.Category, &r.Content, &r.Seq, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

const getDocumentSQL = `
SELECT id, title, category, source, chunks, seq, metadata, created_at
FROM documents WHERE id = $1
`

// GetDocument fetches one document record.
// Returns ErrNotFound if no row matches.
func (q *Queries) GetDocument(ctx context.Context, id string) (DocumentRow, error) {
	var row DocumentRow
	err := q.db.QueryRow(ctx, getDocumentSQL, id).Scan(
		&row.ID, &row.Title, &row.Category, &row.Source,
		&row.Chunks, &row.Seq, &row.Metadata, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DocumentRow{}, fmt.Errorf("document %q: %w", id, ErrNotFound)
		}
		return DocumentRow{}, fmt.Errorf("get document: %w", err)
	}
	return row, nil
}

const listDocumentsSQL = `
SELECT id, title, category, source, chunks, seq, metadata, created_at
FROM documents ORDER BY seq ASC
`

// ListDocuments returns every document in insertion order.
func (q *Queries) ListDocuments(ctx context.Context) ([]DocumentRow, error) {
	rows, err := q.db.Query(ctx, listDocumentsSQL)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentRow
	for rows.Next() {
		var row DocumentRow
		if err := rows.Scan(&row.ID, &row.Title, &row.Category, &row.Source,
			&row.Chunks, &row.Seq, &row.Metadata, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}
	return docs, nil
}

const listDocumentsByCategorySQL = `
SELECT id, title, category, source, chunks, seq, metadata, created_at
FROM documents WHERE category = $1 ORDER BY seq ASC
`

// ListDocumentsByCategory returns documents in one category, in
// insertion order.
func (q *Queries) ListDocumentsByCategory(ctx context.Context, category string) ([]DocumentRow, error) {
	rows, err := q.db.Query(ctx, listDocumentsByCategorySQL, category)
	if err != nil {
		return nil, fmt.Errorf("list documents by category: %w", err)
	}
	defer rows.Close()

	var docs []DocumentRow
	for rows.Next() {
		var row DocumentRow
		if err := rows.Scan(&row.ID, &row.Title, &row.Category, &row.Source,
			&row.Chunks, &row.Seq, &row.Metadata, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}
	return docs, nil
}

const deleteDocumentSQL = `DELETE FROM documents WHERE id = $1`

// DeleteDocument removes a document; chunks cascade.
// Returns ErrNotFound if the document does not exist.
func (q *Queries) DeleteDocument(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, deleteDocumentSQL, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	return nil
}

const deleteChunksSQL = `DELETE FROM chunks WHERE doc_id = $1`

// DeleteChunks removes every chunk belonging to docID.
// Used when replacing a document's content in place.
func (q *Queries) DeleteChunks(ctx context.Context, docID string) error {
	if _, err := q.db.Exec(ctx, deleteChunksSQL, docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

const countDocumentsSQL = `SELECT count(*) FROM documents`

// CountDocuments returns the number of documents.
func (q *Queries) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRow(ctx, countDocumentsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

const countChunksSQL = `SELECT count(*) FROM chunks`

// CountChunks returns the number of stored chunks.
func (q *Queries) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRow(ctx, countChunksSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

const countByCategorySQL = `
SELECT category, count(*) FROM documents GROUP BY category
`

// CountByCategory returns the per-category document breakdown.
func (q *Queries) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	rows, err := q.db.Query(ctx, countByCategorySQL)
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return counts, nil
}
