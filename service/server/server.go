package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/rawtx/service/db"
	"github.com/brojonat/rawtx/service/metrics"
	natspkg "github.com/brojonat/rawtx/service/nats"
	"github.com/brojonat/rawtx/service/temporal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reconstructor rebuilds raw transactions from signatures.
type Reconstructor interface {
	ReconstructBytes(ctx context.Context, signatureID string) ([]byte, error)
}

// ArchiveStore is the subset of db.Store used by the server.
type ArchiveStore interface {
	SaveReconstruction(ctx context.Context, params db.SaveReconstructionParams) (*db.Reconstruction, error)
	GetReconstruction(ctx context.Context, signature, network string) (*db.Reconstruction, error)
	ListReconstructions(ctx context.Context, params db.ListReconstructionsParams) ([]*db.Reconstruction, error)
}

// EventPublisher announces reconstructions.
type EventPublisher interface {
	PublishReconstruction(ctx context.Context, event *natspkg.ReconstructionEvent) error
}

// Deps holds the server's collaborators. Only Reconstructor is required;
// archive, publish and batch routes are enabled when their dependency is set.
type Deps struct {
	Reconstructor Reconstructor
	Store         ArchiveStore
	Publisher     EventPublisher
	BatchRunner   temporal.BatchRunner
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Server represents the HTTP server for the reconstruction service.
type Server struct {
	addr    string
	network string
	deps    Deps
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new HTTP server. network labels archived and published
// reconstructions ("mainnet", "devnet", "testnet").
func New(addr, network string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    addr,
		network: network,
		deps:    deps,
		logger:  logger,
	}
}

// Handler builds the routed handler, wrapped with CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	m := s.deps.Metrics

	reconstruct := handleReconstruct(s.deps.Reconstructor, s.sink(), s.logger)
	mux.Handle("GET /api/reconstruct", metrics.HTTPMetricsMiddleware(m, "/api/reconstruct")(reconstruct))
	mux.Handle("GET /api/v1/reconstruct", metrics.HTTPMetricsMiddleware(m, "/api/v1/reconstruct")(reconstruct))
	mux.Handle("POST /api/v1/decode", metrics.HTTPMetricsMiddleware(m, "/api/v1/decode")(handleDecode(m, s.logger)))

	// Archive routes (if a database is configured)
	if s.deps.Store != nil {
		mux.Handle("GET /api/v1/reconstructions", metrics.HTTPMetricsMiddleware(m, "/api/v1/reconstructions")(
			handleListReconstructions(s.deps.Store, s.network, s.logger)))
		mux.Handle("GET /api/v1/reconstructions/{signature}", metrics.HTTPMetricsMiddleware(m, "/api/v1/reconstructions/{signature}")(
			handleGetReconstruction(s.deps.Store, s.network, s.logger)))
		s.logger.Info("archive endpoints enabled")
	} else {
		s.logger.Warn("database not configured, archive endpoints disabled")
	}

	// Batch routes (if Temporal is configured)
	if s.deps.BatchRunner != nil {
		mux.Handle("POST /api/v1/batches", metrics.HTTPMetricsMiddleware(m, "/api/v1/batches")(
			handleStartBatch(s.deps.BatchRunner, s.network, s.logger)))
		mux.Handle("GET /api/v1/batches/{workflow_id}", metrics.HTTPMetricsMiddleware(m, "/api/v1/batches/{workflow_id}")(
			handleGetBatch(s.deps.BatchRunner, s.logger)))
		s.logger.Info("batch endpoints enabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if m != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server and blocks until it is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr, "network", s.network)
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

func (s *Server) sink() *resultSink {
	return &resultSink{
		store:     s.deps.Store,
		publisher: s.deps.Publisher,
		network:   s.network,
		logger:    s.logger,
	}
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
