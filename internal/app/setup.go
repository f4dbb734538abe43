package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelwise/reelwise/db"
	"github.com/reelwise/reelwise/internal/chat"
	"github.com/reelwise/reelwise/internal/config"
	"github.com/reelwise/reelwise/internal/conversation"
	"github.com/reelwise/reelwise/internal/ingest"
	"github.com/reelwise/reelwise/internal/knowledge"
	"github.com/reelwise/reelwise/internal/log"
	"github.com/reelwise/reelwise/internal/observability"
	"github.com/reelwise/reelwise/internal/websearch"
)

// Setup creates and initializes the application.
// The returned App holds cleanup functions; call Close to release them.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be wired before Genkit initialization so its
	// TracerProvider picks up the span processor.
	if cfg.Tracing.Enabled {
		provideTracing(ctx, a)
	}

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = knowledge.NewRetryEmbedder(embedder, cfg.EmbedRetries, logger.With("component", "embedder"))

	if err := provideKnowledge(ctx, a); err != nil {
		return nil, err
	}

	a.Conversations = conversation.New()
	a.Ingestor = ingest.New(a.Knowledge, logger.With("component", "ingest"))
	a.Seeder = knowledge.NewSeeder(a.Knowledge, logger.With("component", "seeder"))

	if cfg.SearXNG.Enabled() {
		a.WebSearch = websearch.NewClient(cfg.SearXNG.BaseURL, 0, logger.With("component", "websearch"))
	}

	pipeline, err := providePipeline(a)
	if err != nil {
		return nil, err
	}
	a.Pipeline = pipeline

	return a, nil
}

// provideTracing wires OTLP export into Genkit's TracerProvider.
func provideTracing(ctx context.Context, a *App) {
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    a.Config.Tracing.Endpoint,
		Environment: a.Config.Tracing.Environment,
		ServiceName: a.Config.Tracing.ServiceName,
	}, a.Logger.With("component", "tracing"))
	if err != nil {
		a.Logger.Warn("tracing setup failed, continuing without", "error", err)
		return
	}

	a.onClose(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("shutting down tracer provider", "error", err)
		}
	})
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
// Supports gemini (default), ollama, and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var g *genkit.Genkit

	switch provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // "gemini"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider plugin.
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // "gemini"
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideKnowledge creates the knowledge index for the configured backend.
func provideKnowledge(ctx context.Context, a *App) error {
	cfg := a.Config
	logger := a.Logger.With("component", "knowledge")

	switch cfg.KnowledgeBackend {
	case config.BackendPostgres:
		pool, err := provideDBPool(ctx, cfg)
		if err != nil {
			return err
		}
		a.DBPool = pool
		a.onClose(pool.Close)

		a.Knowledge = knowledge.NewPGStore(knowledge.NewQueries(pool), a.Embedder, cfg.ChunkWords, logger)
		logger.Info("knowledge index ready", "backend", "postgres", "database", cfg.PostgresDBName)
		return nil

	default: // "chromem"
		store, err := knowledge.NewStore(a.Embedder, knowledge.Options{
			DataDir:    cfg.DataDir,
			Collection: cfg.Collection,
			ChunkWords: cfg.ChunkWords,
		}, logger)
		if err != nil {
			return fmt.Errorf("creating knowledge store: %w", err)
		}
		a.onClose(func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing knowledge store", "error", err)
			}
		})

		a.Knowledge = store
		logger.Info("knowledge index ready", "backend", "chromem", "dataDir", cfg.DataDir)
		return nil
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// providePipeline assembles the chat pipeline on top of the index.
func providePipeline(a *App) (*chat.Pipeline, error) {
	cfg := a.Config

	pipelineCfg := chat.Config{
		Genkit:        a.Genkit,
		Conversations: a.Conversations,
		Retriever:     a.Knowledge,
		Logger:        a.Logger.With("component", "chat"),
		ModelName:     cfg.FullModelName(),
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		HistoryWindow: cfg.HistoryWindow,
	}
	if a.WebSearch != nil {
		pipelineCfg.WebSearch = a.WebSearch
	}

	pipeline, err := chat.NewPipeline(pipelineCfg)
	if err != nil {
		return nil, fmt.Errorf("creating chat pipeline: %w", err)
	}
	return pipeline, nil
}

// SeedIfEmpty indexes the built-in documents when the store has none.
// Seed documents use fixed IDs, so re-running against a seeded store is
// a no-op at the caller's discretion rather than a duplication risk.
func (a *App) SeedIfEmpty(ctx context.Context) error {
	count, err := a.Knowledge.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	if count > 0 {
		a.Logger.Debug("knowledge index already populated, skipping seed", "documents", count)
		return nil
	}

	seeded, err := a.Seeder.SeedAll(ctx)
	if err != nil {
		return fmt.Errorf("seeding knowledge index: %w", err)
	}
	a.Logger.Info("seeded built-in knowledge documents", "count", seeded)
	return nil
}
