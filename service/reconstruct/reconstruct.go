// Package reconstruct rebuilds the canonical raw bytes of a confirmed
// transaction from the message and signatures reported by a ledger.
package reconstruct

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/rawtx/service/metrics"
	"github.com/brojonat/rawtx/service/txcodec"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

var (
	// ErrTransactionNotFound is returned when the ledger has no record of the signature.
	ErrTransactionNotFound = errors.New("Transaction not found")

	// ErrInvalidSignature is returned when a requested or ledger signature is not
	// 64 Base58-encoded bytes.
	ErrInvalidSignature = errors.New("invalid signature")
)

// MaxSupportedTransactionVersion is the highest message version requested from the ledger.
const MaxSupportedTransactionVersion uint64 = 0

// QueryOptions are passed through to the ledger on every lookup.
type QueryOptions struct {
	MaxSupportedTransactionVersion uint64
}

// ConfirmedTransaction is what the ledger reports for a signature.
// Signatures are Base58 strings, in the order the ledger returned them.
type ConfirmedTransaction struct {
	Message    txcodec.Message
	Signatures []string
}

// Ledger looks up confirmed transactions. A nil result with a nil error means
// the ledger has no such transaction.
type Ledger interface {
	GetConfirmedTransaction(ctx context.Context, signature string, opts QueryOptions) (*ConfirmedTransaction, error)
}

// Reconstructor turns a transaction signature into its raw wire bytes.
type Reconstructor struct {
	ledger  Ledger
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Reconstructor. If m is nil, no metrics are recorded.
func New(ledger Ledger, m *metrics.Metrics, logger *slog.Logger) *Reconstructor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconstructor{
		ledger:  ledger,
		metrics: m,
		logger:  logger,
	}
}

// Reconstruct returns the Base64 wire form of the transaction identified by signatureID.
func (r *Reconstructor) Reconstruct(ctx context.Context, signatureID string) (string, error) {
	raw, err := r.ReconstructBytes(ctx, signatureID)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ReconstructBytes issues exactly one ledger query and serializes the result.
//
// The signatures are used as returned. Their count is not checked against the
// message header, so partially signed records serialize as they are.
func (r *Reconstructor) ReconstructBytes(ctx context.Context, signatureID string) ([]byte, error) {
	start := time.Now()
	raw, err := r.reconstruct(ctx, signatureID)

	status := "success"
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	if r.metrics != nil {
		r.metrics.RecordReconstruction(status, time.Since(start).Seconds())
	}

	if err != nil {
		r.logger.WarnContext(ctx, "reconstruction failed",
			"signature", signatureID,
			"error", err,
		)
		return nil, err
	}

	r.logger.DebugContext(ctx, "reconstructed transaction",
		"signature", signatureID,
		"bytes", len(raw),
	)
	return raw, nil
}

func (r *Reconstructor) reconstruct(ctx context.Context, signatureID string) ([]byte, error) {
	confirmed, err := r.ledger.GetConfirmedTransaction(ctx, signatureID, QueryOptions{
		MaxSupportedTransactionVersion: MaxSupportedTransactionVersion,
	})
	if err != nil {
		return nil, err
	}
	if confirmed == nil {
		return nil, ErrTransactionNotFound
	}

	sigs, err := DecodeSignatures(confirmed.Signatures)
	if err != nil {
		return nil, err
	}

	return txcodec.Serialize(&txcodec.Transaction{
		Signatures: sigs,
		Message:    confirmed.Message,
	})
}

// DecodeSignatures converts Base58 signature strings into raw signatures.
func DecodeSignatures(encoded []string) ([]solana.Signature, error) {
	sigs := make([]solana.Signature, len(encoded))
	for i, s := range encoded {
		b, err := base58.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("%w: signature %d: %v", ErrInvalidSignature, i, err)
		}
		if len(b) != txcodec.SignatureLength {
			return nil, fmt.Errorf("%w: signature %d is %d bytes", ErrInvalidSignature, i, len(b))
		}
		sigs[i] = solana.SignatureFromBytes(b)
	}
	return sigs, nil
}
