package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/rawtx/service/config"
	"github.com/brojonat/rawtx/service/db"
	"github.com/brojonat/rawtx/service/metrics"
	natspkg "github.com/brojonat/rawtx/service/nats"
	"github.com/brojonat/rawtx/service/reconstruct"
	"github.com/brojonat/rawtx/service/server"
	"github.com/brojonat/rawtx/service/solana"
	"github.com/brojonat/rawtx/service/temporal"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"network", cfg.SolanaNetwork,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Initialize Solana ledger and reconstructor
	// Note: For premium RPC endpoints, include API key in the URL
	endpoint := solana.EndpointLabel(cfg.SolanaRPCURL)
	rpcClient := solana.NewRPCClient(cfg.SolanaRPCURL, cfg.RPCTimeout)
	ledger := solana.NewLedger(rpcClient, endpoint, metricsCollector, logger)
	reconstructor := reconstruct.New(ledger, metricsCollector, logger)
	logger.Info("initialized solana RPC client", "endpoint", endpoint, "timeout", cfg.RPCTimeout)

	deps := server.Deps{
		Reconstructor: reconstructor,
		Metrics:       metricsCollector,
		Logger:        logger,
	}

	// Optional reconstruction archive
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
		deps.Store = store
		logger.Info("connected to database, archive enabled")
	}

	// Optional event publishing
	if cfg.PublishEnabled() {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		deps.Publisher = publisher
		logger.Info("connected to NATS, publishing enabled", "url", cfg.NATSURL)
	}

	// Batch endpoints need Temporal; the server runs without them
	temporalClient, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
	if err != nil {
		logger.Warn("temporal unavailable, batch endpoints disabled", "host", cfg.TemporalHost, "error", err)
	} else {
		defer temporalClient.Close()
		deps.BatchRunner = temporalClient
	}

	httpServer := server.New(cfg.ServerAddr, cfg.SolanaNetwork, deps)

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
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
