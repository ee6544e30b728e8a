package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/tronlink/service/config"
	"github.com/brojonat/tronlink/service/db"
	"github.com/brojonat/tronlink/service/metrics"
	natspkg "github.com/brojonat/tronlink/service/nats"
	"github.com/brojonat/tronlink/service/search"
	"github.com/brojonat/tronlink/service/server"
	"github.com/brojonat/tronlink/service/tronscan"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// FETCH_RETRY_DELAY=0 means no pause; ClientConfig reads zero as the default.
	retryDelay := cfg.FetchRetryDelay
	if retryDelay == 0 {
		retryDelay = -1
	}

	// Each search gets its own fetch cache so a TronScan outage or a stale
	// page does not outlive the request that saw it.
	explorer := tronscan.NewClient(tronscan.ClientConfig{
		BaseURL:     cfg.TronScanAPIURL,
		APIKey:      cfg.TronScanAPIKey,
		Timeout:     cfg.HTTPTimeout,
		MaxAttempts: cfg.FetchMaxAttempts,
		RetryDelay:  retryDelay,
		PageLimit:   cfg.FetchPageLimit,
	}, m, logger)
	logger.Info("initialized TronScan client", "url", cfg.TronScanAPIURL)

	orchestrator := search.NewSessionOrchestrator(func() search.TransactionSource {
		return explorer.Session()
	}, m, logger)

	// Optional report store. Left as a nil interface when disabled.
	var store server.ReportStore
	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		dbStore := db.NewStore(dbPool, m)
		if err := dbStore.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure database schema", "error", err)
			os.Exit(1)
		}
		store = dbStore
		logger.Info("connected to database")
	}

	// Optional event publisher
	var publisher natspkg.Publisher
	if cfg.NATSURL != "" {
		jsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to initialize NATS publisher", "error", err)
			os.Exit(1)
		}
		defer jsPublisher.Close()
		publisher = jsPublisher
	}

	httpServer := server.New(cfg.ServerAddr, orchestrator, store, publisher, server.Defaults{
		MaxDepth: cfg.SearchMaxDepth,
		Workers:  cfg.SearchWorkers,
	}, m, logger)

	logger.Info("server initialized, all dependencies ready",
		"tronscan_api", cfg.TronScanAPIURL,
		"store_enabled", store != nil,
		"nats_enabled", publisher != nil,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
