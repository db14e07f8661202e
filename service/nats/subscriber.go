package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// SubscribeOptions selects which events a Subscriber receives.
type SubscribeOptions struct {
	// Network filters to one network. Empty receives every network.
	Network string

	// Durable names a consumer that survives restarts. Empty creates an
	// ephemeral consumer that only sees new messages.
	Durable string
}

// Subscriber consumes reconstruction events from JetStream.
type Subscriber struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewSubscriber connects to NATS.
func NewSubscriber(natsURL string, logger *slog.Logger) (*Subscriber, error) {
	nc, err := Connect(natsURL, "rawtx-subscriber")
	if err != nil {
		return nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return &Subscriber{nc: nc, js: js, logger: logger}, nil
}

// ConsumerConfig builds the JetStream consumer for opts.
func ConsumerConfig(opts SubscribeOptions) jetstream.ConsumerConfig {
	cfg := jetstream.ConsumerConfig{
		FilterSubject: StreamSubjects,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}
	if opts.Network != "" {
		cfg.FilterSubject = Subject(opts.Network)
	}
	if opts.Durable != "" {
		cfg.Durable = opts.Durable
		cfg.Name = opts.Durable
		cfg.DeliverPolicy = jetstream.DeliverAllPolicy
	}
	return cfg
}

// Subscribe delivers events to handle until ctx is done. Messages that fail
// to decode are acked and skipped.
func (s *Subscriber) Subscribe(ctx context.Context, opts SubscribeOptions, handle func(*ReconstructionEvent)) error {
	cons, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, ConsumerConfig(opts))
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	msgs := make(chan jetstream.Msg, 10)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		msgs <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer cc.Stop()

	for {
		select {
		case msg := <-msgs:
			var event ReconstructionEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				s.logger.Warn("skipping malformed reconstruction event",
					"subject", msg.Subject(),
					"error", err,
				)
			} else {
				handle(&event)
			}
			if err := msg.Ack(); err != nil {
				s.logger.Warn("failed to ack message", "error", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// StreamInfo returns the state of the reconstruction stream.
func (s *Subscriber) StreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := s.js.Stream(ctx, StreamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}
	return stream.Info(ctx)
}

// Close closes the connection to NATS.
func (s *Subscriber) Close() {
	s.nc.Close()
}
