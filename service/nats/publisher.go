package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/rawtx/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher publishes reconstruction events.
type Publisher interface {
	// PublishReconstruction publishes one event to "reconstructions.{network}".
	PublishReconstruction(ctx context.Context, event *ReconstructionEvent) error

	// PublishReconstructionBatch publishes several events. A failed event is
	// logged and skipped.
	PublishReconstructionBatch(ctx context.Context, events []*ReconstructionEvent) error

	Close() error
}

const (
	// StreamName is the name of the JetStream stream for reconstructions.
	StreamName = "RECONSTRUCTIONS"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = SubjectPrefix + ".*"

	// StreamRetention is how long messages are retained.
	StreamRetention = 7 * 24 * time.Hour
)

// JetStreamPublisher publishes reconstruction events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Connect dials NATS with the reconnect settings shared by publishers and subscribers.
func Connect(natsURL, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NewPublisher connects to NATS and ensures the stream exists.
// If m is nil, no metrics are recorded.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := Connect(natsURL, "rawtx-publisher")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}

	if err := EnsureStream(context.Background(), js, logger); err != nil {
		nc.Close()
		return nil, err
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// EnsureStream creates the reconstruction stream if it doesn't exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stream, err := js.Stream(ctx, StreamName)
	if err == nil {
		if info, err := stream.Info(ctx); err == nil {
			logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	logger.Info("creating JetStream stream", "stream", StreamName)

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Raw transactions reconstructed from signatures",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// PublishReconstruction publishes a single reconstruction event.
func (p *JetStreamPublisher) PublishReconstruction(ctx context.Context, event *ReconstructionEvent) error {
	subject := Subject(event.Network)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal reconstruction event: %w", err)
	}

	start := time.Now()
	_, err = p.js.Publish(ctx, subject, data)
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(subject, status, time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("failed to publish reconstruction: %w", err)
	}

	p.logger.Debug("published reconstruction event",
		"subject", subject,
		"signature", event.Signature,
	)
	return nil
}

// PublishReconstructionBatch publishes events one by one, skipping failures.
func (p *JetStreamPublisher) PublishReconstructionBatch(ctx context.Context, events []*ReconstructionEvent) error {
	for _, event := range events {
		if err := p.PublishReconstruction(ctx, event); err != nil {
			p.logger.Error("failed to publish reconstruction in batch",
				"signature", event.Signature,
				"error", err,
			)
		}
	}
	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
