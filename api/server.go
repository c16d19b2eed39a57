// Package api provides the HTTP REST API for finsight.
//
// Endpoints:
//
//	POST /api/ask      ->  answer a financial question
//	GET  /api/news     ->  recent news items
//	GET  /api/terms    ->  glossary terms
//	GET  /api/refresh  ->  background refresh supervisor state
//	GET  /health       ->  liveness probe
//	GET  /ready        ->  readiness probe (pings the database)
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (request id, logging, recovery)
//   - health.go: health check endpoints
//   - ask.go: question answering endpoint
//   - content.go: stored content endpoints and refresh state
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finsight/finsight/internal/backfill"
	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/pipeline"
	"github.com/finsight/finsight/internal/store"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to prevent Slowloris attacks.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because answering a question involves
	// several model round-trips.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for finsight's REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health  *HealthHandler
	ask     *AskHandler
	content *ContentHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(p *pipeline.Pipeline, st *store.Store, sup *backfill.Supervisor, pool *pgxpool.Pool, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	mux := http.NewServeMux()

	// Typed nils must not end up inside the handler interfaces.
	var answerer QuestionAnswerer
	if p != nil {
		answerer = p
	}
	var lister ContentLister
	if st != nil {
		lister = st
	}
	var refresh RefreshStatus
	if sup != nil {
		refresh = sup
	}

	s := &Server{
		mux:     mux,
		logger:  logger,
		health:  NewHealthHandler(pool, logger),
		ask:     NewAskHandler(answerer, logger),
		content: NewContentHandler(lister, refresh, logger),
	}

	s.health.RegisterRoutes(mux)
	s.ask.RegisterRoutes(mux)
	s.content.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery -> request id -> logging -> handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware,
		loggingMiddleware(s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
