// Package app wires the application together: configuration, database,
// Genkit, the vector index, retrieval, the orchestrator, and the HTTP
// server. Construction happens once at startup; components receive
// their dependencies explicitly.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recaplabs/recap/internal/agent"
	"github.com/recaplabs/recap/internal/config"
	"github.com/recaplabs/recap/internal/index"
	"github.com/recaplabs/recap/internal/ingest"
	"github.com/recaplabs/recap/internal/server"
	"github.com/recaplabs/recap/internal/store"
)

// App is the assembled application.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	DBPool       *pgxpool.Pool
	Store        *store.Store
	Index        *index.Index
	Pipeline     *ingest.Pipeline
	Orchestrator *agent.Orchestrator
	Server       *server.Server

	dbCleanup func()
}

// Close releases resources in reverse construction order.
// Safe to call on a partially constructed App.
func (a *App) Close() error {
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	return nil
}
