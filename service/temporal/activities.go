package temporal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/rawtx/service/db"
	"github.com/brojonat/rawtx/service/metrics"
	natspkg "github.com/brojonat/rawtx/service/nats"
	"github.com/brojonat/rawtx/service/reconstruct"
	"github.com/brojonat/rawtx/service/txcodec"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// Error types that are never worth retrying.
const (
	ErrTypeTransactionNotFound = "TransactionNotFound"
	ErrTypeInvalidTransaction  = "InvalidTransaction"
)

// ReconstructInput contains the input for the Reconstruct activity.
type ReconstructInput struct {
	Signature string `json:"signature"`
}

// ReconstructResult contains the Base64 wire form of a reconstructed transaction.
type ReconstructResult struct {
	Signature      string `json:"signature"`
	RawTransaction string `json:"raw_transaction"`
}

// StoreReconstructionInput is shared by the archive and publish activities.
type StoreReconstructionInput struct {
	Signature      string `json:"signature"`
	Network        string `json:"network"`
	RawTransaction string `json:"raw_transaction"` // Base64
}

// ReconstructorInterface rebuilds raw transactions from signatures.
type ReconstructorInterface interface {
	ReconstructBytes(ctx context.Context, signatureID string) ([]byte, error)
}

// StoreInterface defines the database operations needed by activities.
type StoreInterface interface {
	SaveReconstruction(ctx context.Context, params db.SaveReconstructionParams) (*db.Reconstruction, error)
}

// PublisherInterface defines the NATS publishing operations needed by activities.
type PublisherInterface interface {
	PublishReconstruction(ctx context.Context, event *natspkg.ReconstructionEvent) error
}

// Activities holds the dependencies needed by Temporal activities.
// Store and publisher may be nil, in which case their activities are no-ops.
type Activities struct {
	reconstructor ReconstructorInterface
	store         StoreInterface
	publisher     PublisherInterface
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
func NewActivities(
	reconstructor ReconstructorInterface,
	store StoreInterface,
	publisher PublisherInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		reconstructor: reconstructor,
		store:         store,
		publisher:     publisher,
		metrics:       m,
		logger:        logger,
	}
}

// Reconstruct fetches one transaction from the ledger and serializes it.
// Missing transactions and malformed ledger data fail without retry.
func (a *Activities) Reconstruct(ctx context.Context, input ReconstructInput) (*ReconstructResult, error) {
	start := time.Now()
	raw, err := a.reconstructor.ReconstructBytes(ctx, input.Signature)
	a.recordDuration("Reconstruct", start, err)

	switch {
	case errors.Is(err, reconstruct.ErrTransactionNotFound):
		return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeTransactionNotFound, nil)
	case errors.Is(err, reconstruct.ErrInvalidSignature), errors.Is(err, txcodec.ErrFieldOverflow):
		return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidTransaction, nil)
	case err != nil:
		return nil, err
	}

	return &ReconstructResult{
		Signature:      input.Signature,
		RawTransaction: base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// ArchiveReconstruction writes a reconstruction to Postgres.
func (a *Activities) ArchiveReconstruction(ctx context.Context, input StoreReconstructionInput) error {
	if a.store == nil {
		a.logger.DebugContext(ctx, "archive not configured, skipping", "signature", input.Signature)
		return nil
	}

	start := time.Now()
	params, err := saveParams(input)
	if err == nil {
		_, err = a.store.SaveReconstruction(ctx, params)
	}
	a.recordDuration("ArchiveReconstruction", start, err)
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", input.Signature, err)
	}

	a.logger.InfoContext(ctx, "archived reconstruction",
		"signature", input.Signature,
		"network", input.Network,
	)
	return nil
}

// PublishReconstruction publishes a reconstruction event to NATS.
func (a *Activities) PublishReconstruction(ctx context.Context, input StoreReconstructionInput) error {
	if a.publisher == nil {
		a.logger.DebugContext(ctx, "publisher not configured, skipping", "signature", input.Signature)
		return nil
	}

	start := time.Now()
	params, err := saveParams(input)
	if err == nil {
		err = a.publisher.PublishReconstruction(ctx, natspkg.FromSaveParams(params))
	}
	a.recordDuration("PublishReconstruction", start, err)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", input.Signature, err)
	}
	return nil
}

func saveParams(input StoreReconstructionInput) (db.SaveReconstructionParams, error) {
	raw, err := base64.StdEncoding.DecodeString(input.RawTransaction)
	if err != nil {
		return db.SaveReconstructionParams{}, temporalsdk.NewNonRetryableApplicationError(
			fmt.Sprintf("raw transaction is not base64: %v", err), ErrTypeInvalidTransaction, nil)
	}
	params, err := db.NewSaveParams(input.Signature, input.Network, raw)
	if err != nil {
		return db.SaveReconstructionParams{}, temporalsdk.NewNonRetryableApplicationError(
			err.Error(), ErrTypeInvalidTransaction, nil)
	}
	return params, nil
}

func (a *Activities) recordDuration(activity string, start time.Time, err error) {
	if a.metrics != nil {
		a.metrics.RecordActivityDuration(activity, err, time.Since(start).Seconds())
	}
}
