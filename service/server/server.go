package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/tronlink/service/metrics"
	natspkg "github.com/brojonat/tronlink/service/nats"
	"github.com/brojonat/tronlink/service/search"
	"github.com/google/uuid"
)

// SearchRunner runs one connection search. *search.Orchestrator implements it.
type SearchRunner interface {
	Run(ctx context.Context, req search.Request) (*search.Report, error)
}

// ReportStore persists search reports. *db.Store implements it.
type ReportStore interface {
	CreateSearch(ctx context.Context, report *search.Report) error
	GetSearch(ctx context.Context, id uuid.UUID) (*search.Report, error)
	ListSearches(ctx context.Context, limit int) ([]*search.Report, error)
}

// Defaults are applied to search requests that leave a field unset.
type Defaults struct {
	MaxDepth int
	Workers  int
}

// Server represents the HTTP server for the connection search service.
type Server struct {
	addr      string
	runner    SearchRunner
	store     ReportStore
	publisher natspkg.Publisher
	defaults  Defaults
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The store is optional - if nil, searches are not persisted and the
// read endpoints return 503.
// The publisher is optional - if nil, completed searches are not published.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, runner SearchRunner, store ReportStore, publisher natspkg.Publisher, defaults Defaults, m *metrics.Metrics, logger *slog.Logger) *Server {
	if defaults.MaxDepth == 0 {
		defaults.MaxDepth = search.DefaultMaxDepth
	}
	if defaults.Workers == 0 {
		defaults.Workers = search.DefaultWorkers
	}
	return &Server{
		addr:      addr,
		runner:    runner,
		store:     store,
		publisher: publisher,
		defaults:  defaults,
		metrics:   m,
		logger:    logger,
	}
}

// Handler builds the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Search routes
	mux.Handle("POST /api/v1/searches", metrics.InstrumentHandler(s.metrics, "create_search",
		handleCreateSearch(s.runner, s.store, s.publisher, s.defaults, s.logger)))
	mux.Handle("GET /api/v1/searches", metrics.InstrumentHandler(s.metrics, "list_searches",
		handleListSearches(s.store, s.logger)))
	mux.Handle("GET /api/v1/searches/{id}", metrics.InstrumentHandler(s.metrics, "get_search",
		handleGetSearch(s.store, s.logger)))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler(nil))
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	if s.store == nil {
		s.logger.Warn("report store not configured, searches will not be persisted")
	}
	if s.publisher == nil {
		s.logger.Warn("NATS publisher not configured, search events disabled")
	}

	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// Searches run synchronously within the request.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
