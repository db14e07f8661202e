package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/rawtx/service/config"
	"github.com/brojonat/rawtx/service/db"
	"github.com/brojonat/rawtx/service/metrics"
	natspkg "github.com/brojonat/rawtx/service/nats"
	"github.com/brojonat/rawtx/service/reconstruct"
	"github.com/brojonat/rawtx/service/solana"
	"github.com/brojonat/rawtx/service/temporal"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load and validate configuration from environment
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting temporal worker",
		"temporal_host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Start metrics HTTP server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("starting metrics HTTP server", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	endpoint := solana.EndpointLabel(cfg.SolanaRPCURL)
	ledger := solana.NewLedger(solana.NewRPCClient(cfg.SolanaRPCURL, cfg.RPCTimeout), endpoint, metricsCollector, logger)
	reconstructor := reconstruct.New(ledger, metricsCollector, logger)
	logger.Info("initialized solana RPC client", "endpoint", endpoint)

	workerConfig := temporal.WorkerConfig{
		TemporalHost:      cfg.TemporalHost,
		TemporalNamespace: cfg.TemporalNamespace,
		TaskQueue:         cfg.TemporalTaskQueue,
		Reconstructor:     reconstructor,
		Metrics:           metricsCollector,
		Logger:            logger,
	}

	// Archive and publish activities are no-ops unless configured
	if cfg.ArchiveEnabled() {
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

		store := db.NewStore(dbPool, metricsCollector)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		workerConfig.Store = store
		logger.Info("connected to database")
	}

	if cfg.PublishEnabled() {
		natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		workerConfig.Publisher = natsPublisher
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	worker, err := temporal.NewWorker(workerConfig)
	if err != nil {
		logger.Error("failed to create temporal worker", "error", err)
		os.Exit(1)
	}

	logger.Info("temporal worker initialized, all dependencies ready",
		"archive", cfg.ArchiveEnabled(),
		"publish", cfg.PublishEnabled(),
	)

	// Start worker in background
	workerErrors := make(chan error, 1)
	go func() {
		workerErrors <- worker.Start()
	}()

	// Wait for shutdown signal or worker error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-workerErrors:
		// Run returns nil once it has handled the interrupt itself
		if err != nil {
			logger.Error("temporal worker error", "error", err)
			os.Exit(1)
		}
		logger.Info("temporal worker stopped")
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
		worker.Stop()
		logger.Info("temporal worker stopped")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
