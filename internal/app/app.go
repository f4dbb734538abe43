// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles every reelwise component: Genkit and
// the configured AI provider, the knowledge index (embedded chromem or
// pgvector), the conversation store, the chat pipeline, and the ingestion
// path. Entry points (serve, ingest) call Setup and work with the
// resulting App.
package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelwise/reelwise/internal/chat"
	"github.com/reelwise/reelwise/internal/config"
	"github.com/reelwise/reelwise/internal/conversation"
	"github.com/reelwise/reelwise/internal/ingest"
	"github.com/reelwise/reelwise/internal/knowledge"
	"github.com/reelwise/reelwise/internal/log"
	"github.com/reelwise/reelwise/internal/websearch"
)

// KnowledgeStore is the index surface the application wires together.
// Satisfied by *knowledge.Store and *knowledge.PGStore.
type KnowledgeStore interface {
	Add(ctx context.Context, doc knowledge.Document) (knowledge.Document, error)
	Get(ctx context.Context, docID string) (knowledge.Document, error)
	Documents(ctx context.Context) ([]knowledge.Document, error)
	DocumentsByCategory(ctx context.Context, category knowledge.Category) ([]knowledge.Document, error)
	Delete(ctx context.Context, docID string) error
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
	Count(ctx context.Context) (int, error)
	Stats(ctx context.Context) (knowledge.Stats, error)
}

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Knowledge     KnowledgeStore
	Conversations *conversation.Store
	Pipeline      *chat.Pipeline
	Ingestor      *ingest.Ingestor
	Seeder        *knowledge.Seeder
	WebSearch     *websearch.Client // nil when SearXNG is not configured

	// DBPool is set only with the postgres backend; /ready pings it.
	DBPool *pgxpool.Pool

	// cleanups run in reverse registration order on Close.
	cleanups []func()
}

// onClose registers a cleanup to run during Close.
func (a *App) onClose(fn func()) {
	a.cleanups = append(a.cleanups, fn)
}

// Close releases all resources in reverse initialization order.
func (a *App) Close() error {
	a.logger().Info("shutting down application")
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
	return nil
}

func (a *App) logger() log.Logger {
	if a.Logger == nil {
		return log.NewNop()
	}
	return a.Logger
}
