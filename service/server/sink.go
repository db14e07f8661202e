package server

import (
	"context"
	"log/slog"

	"github.com/brojonat/rawtx/service/db"
	natspkg "github.com/brojonat/rawtx/service/nats"
)

// resultSink archives and publishes successful reconstructions. Failures are
// logged and never reach the HTTP caller.
type resultSink struct {
	store     ArchiveStore
	publisher EventPublisher
	network   string
	logger    *slog.Logger
}

func (s *resultSink) enabled() bool {
	return s != nil && (s.store != nil || s.publisher != nil)
}

func (s *resultSink) record(ctx context.Context, signature string, raw []byte) {
	if !s.enabled() {
		return
	}

	params, err := db.NewSaveParams(signature, s.network, raw)
	if err != nil {
		s.logger.WarnContext(ctx, "reconstructed bytes did not decode, not archiving",
			"signature", signature,
			"error", err,
		)
		return
	}

	if s.store != nil {
		if _, err := s.store.SaveReconstruction(ctx, params); err != nil {
			s.logger.ErrorContext(ctx, "failed to archive reconstruction",
				"signature", signature,
				"error", err,
			)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishReconstruction(ctx, natspkg.FromSaveParams(params)); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish reconstruction",
				"signature", signature,
				"error", err,
			)
		}
	}
}
