// Package knowledge provides semantic search and document management
// for the movie production knowledge base.
//
// Documents are chunked on word boundaries, embedded with an AI
// embedder, and stored in a vector index. Questions are answered by
// retrieving the most similar chunks, optionally filtered to a single
// production stage (pre-production, production, post-production).
//
// # Overview
//
// The package offers two interchangeable index implementations:
//
//   - Store: embedded chromem-go index persisted on local disk (default)
//   - PGStore: PostgreSQL + pgvector backend for shared deployments
//
// Both expose the same operations:
//
//	Add(ctx, document)       - Chunk, embed, and index a document
//	Search(ctx, query, opts) - Semantic search with category filter
//	Get(ctx, id)             - Fetch a document record
//	Documents(ctx)           - List documents in insertion order
//	Delete(ctx, id)          - Remove a document and its chunks
//	Count(ctx)               - Number of documents
//	Stats(ctx)               - Document/chunk counts per category
//
// # Retrieval Flow
//
//	Document (content + category)
//	     |
//	     v
//	Chunker (word-bounded chunks, default 400 words)
//	     |
//	     v
//	Embedding Generation (via AI Embedder)
//	     |
//	     v
//	Vector Storage (chromem-go or PostgreSQL + pgvector)
//	     |
//	     | (when searching)
//	     v
//	Query Embedding -> Cosine Similarity Search -> Ranked Results
//
// Results are ordered by similarity (0 to 1, higher = more similar);
// equal scores are broken by insertion order so retrieval is
// deterministic. Search uses a 10-second timeout to prevent blocking.
//
// # Search Operations
//
//	results, err := store.Search(ctx, "how to plan a shooting schedule",
//	    knowledge.WithTopK(5),
//	    knowledge.WithCategory(knowledge.CategoryPreProduction))
//
// CategoryAllStages (the default) searches the whole index. An empty
// index or zero matches returns an empty slice, never an error.
//
// # Document Catalog
//
// The chromem backend keeps a JSON document catalog next to the index.
// chromem only knows chunks; the catalog is the authoritative document
// list and records insertion order. The data directory is guarded with
// an exclusive file lock via [github.com/gofrs/flock] so two processes
// cannot corrupt the index.
//
// # Embedding Retry
//
// RetryEmbedder wraps any ai.Embedder with bounded exponential backoff
// for transient provider failures (rate limits, 5xx, network resets).
// Wire it between the provider embedder and the store:
//
//	embedder := knowledge.NewRetryEmbedder(providerEmbedder, 2, logger)
//
// # Thread Safety
//
// Store and PGStore are safe for concurrent use. Store serializes
// catalog mutations with a mutex; PGStore delegates to PostgreSQL.
package knowledge
