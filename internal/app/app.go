// Package app provides application initialization and dependency wiring.
//
// App is the container every entry point (CLI commands, HTTP server) builds
// on. Setup initializes Genkit with the configured AI provider, runs
// database migrations, opens the connection pool, and wires the store,
// the question-answering pipeline, the ingestors, and the embedding
// backfiller together.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finsight/finsight/internal/backfill"
	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/ingest"
	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/pipeline"
	"github.com/finsight/finsight/internal/store"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool
	Store    *store.Store

	// Question answering
	Pipeline *pipeline.Pipeline

	// Ingestion and embedding backfill
	Feeds      *ingest.FeedFetcher
	Aggregator *ingest.AggregatorScraper
	Glossary   *ingest.GlossaryScraper
	Social     *ingest.SocialFetcher
	Backfiller *backfill.Backfiller
	Supervisor *backfill.Supervisor
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.Supervisor != nil {
		a.Supervisor.Stop()
	}
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
