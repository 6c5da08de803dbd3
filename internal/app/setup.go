package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recaplabs/recap/db"
	"github.com/recaplabs/recap/internal/agent"
	"github.com/recaplabs/recap/internal/config"
	"github.com/recaplabs/recap/internal/index"
	"github.com/recaplabs/recap/internal/ingest"
	"github.com/recaplabs/recap/internal/retrieval"
	"github.com/recaplabs/recap/internal/server"
	"github.com/recaplabs/recap/internal/store"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
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

	pool, dbCleanup, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Index = index.New(cfg.IndexDir, index.NewEmbeddingFunc(embedder), logger.With("component", "index"))
	a.Pipeline = ingest.NewPipeline(a.Index, ingest.Config{}, logger.With("component", "ingest"))
	a.Store = store.New(store.NewQueries(pool), logger.With("component", "store"))

	reformulator := retrieval.NewReformulator(g, cfg.FullModelName(), logger.With("component", "reformulator"))
	tool := retrieval.NewTool(reformulator, a.Index, cfg.TopK, logger.With("component", "retrieval"))

	orch, err := agent.New(agent.Config{
		Genkit:    g,
		ModelName: cfg.FullModelName(),
		Retriever: tool,
		Logger:    logger.With("component", "agent"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Orchestrator = orch

	srv, err := server.New(server.Config{
		Logger:            logger.With("component", "server"),
		Store:             a.Store,
		Runner:            orch,
		Titler:            agent.NewTitler(g, cfg.FullModelName(), logger.With("component", "titler")),
		Pool:              pool,
		CORSOrigins:       cfg.CORSOrigins,
		TrustProxy:        cfg.TrustProxy,
		ChatRatePerMinute: cfg.ChatRatePerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	a.Server = srv

	return a, nil
}

// SetupIngest builds only the pieces ingestion needs: Genkit, the
// embedder, the vector index, and the chunking pipeline. No database
// connection is made, so documents can be indexed before the service's
// storage is up.
func SetupIngest(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ingest.Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	idx := index.New(cfg.IndexDir, index.NewEmbeddingFunc(embedder), logger.With("component", "index"))
	return ingest.NewPipeline(idx, ingest.Config{}, logger.With("component", "ingest")), nil
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool
// with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default) and ollama.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
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

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider
// plugin. Ollama embedders are keyed by server address (registered in
// provideGenkit); gemini embedders by model name.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	if cfg.Provider == config.ProviderOllama {
		return ollama.Embedder(g, cfg.OllamaHost)
	}
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}
