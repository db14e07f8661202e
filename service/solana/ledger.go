// Package solana implements the reconstruction ledger on top of a Solana
// JSON-RPC node.
package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/rawtx/service/metrics"
	"github.com/brojonat/rawtx/service/reconstruct"
	"github.com/brojonat/rawtx/service/txcodec"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrUnsupportedVersion is returned when the node reports a message version
// this codec cannot represent.
var ErrUnsupportedVersion = errors.New("unsupported message version")

// Ledger answers reconstruct.Ledger queries with a single getTransaction call.
// Failures are returned as-is; there are no retries.
type Ledger struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // metrics label, e.g. "mainnet"
}

var _ reconstruct.Ledger = (*Ledger)(nil)

// NewLedger creates a Ledger. If m is nil, no metrics are recorded.
func NewLedger(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Ledger {
	return &Ledger{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// GetConfirmedTransaction fetches the transaction for signature. It returns
// nil, nil when the node has no record of it.
func (l *Ledger) GetConfirmedTransaction(ctx context.Context, signature string, opts reconstruct.QueryOptions) (*reconstruct.ConfirmedTransaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", reconstruct.ErrInvalidSignature, signature, err)
	}

	maxVersion := opts.MaxSupportedTransactionVersion
	start := time.Now()
	result, err := l.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	l.recordCall(err, time.Since(start).Seconds())

	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		l.logger.ErrorContext(ctx, "getTransaction failed",
			"signature", signature,
			"error", err,
		)
		return nil, err
	}
	if result == nil || result.Transaction == nil {
		return nil, nil
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", signature, err)
	}
	if tx == nil {
		return nil, nil
	}

	msg, err := ConvertMessage(&tx.Message)
	if err != nil {
		return nil, fmt.Errorf("convert transaction %s: %w", signature, err)
	}

	sigs := make([]string, len(tx.Signatures))
	for i, s := range tx.Signatures {
		sigs[i] = s.String()
	}

	l.logger.DebugContext(ctx, "fetched confirmed transaction",
		"signature", signature,
		"slot", result.Slot,
		"version", msg.Version.String(),
	)

	return &reconstruct.ConfirmedTransaction{
		Message:    msg,
		Signatures: sigs,
	}, nil
}

func (l *Ledger) recordCall(err error, duration float64) {
	if l.metrics == nil {
		return
	}
	status := "success"
	switch {
	case errors.Is(err, rpc.ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
		if strings.Contains(err.Error(), "429") {
			l.metrics.RecordRateLimitHit(l.endpoint)
		}
	}
	l.metrics.RecordRPCCall("GetTransaction", status, l.endpoint, duration)
}

// ConvertMessage maps a solana-go message onto the codec's message model.
// Index values wider than a byte cannot appear on the wire and are rejected.
func ConvertMessage(m *solana.Message) (txcodec.Message, error) {
	out := txcodec.Message{
		Version: txcodec.Legacy(),
		Header: txcodec.MessageHeader{
			NumRequiredSignatures:       m.Header.NumRequiredSignatures,
			NumReadonlySignedAccounts:   m.Header.NumReadonlySignedAccounts,
			NumReadonlyUnsignedAccounts: m.Header.NumReadonlyUnsignedAccounts,
		},
		AccountKeys:     append([]solana.PublicKey{}, m.AccountKeys...),
		RecentBlockhash: m.RecentBlockhash,
		Instructions:    make([]txcodec.CompiledInstruction, len(m.Instructions)),
	}

	if m.IsVersioned() {
		// solana-go counts legacy as 0, so v0 is reported as 1.
		v := int(m.GetVersion()) - 1
		if v < 0 || v > txcodec.MaxVersion {
			return txcodec.Message{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.GetVersion())
		}
		out.Version = txcodec.Versioned(uint8(v))
	}

	for i, ix := range m.Instructions {
		if ix.ProgramIDIndex > 0xff {
			return txcodec.Message{}, fmt.Errorf("instruction %d: program index %d out of range", i, ix.ProgramIDIndex)
		}
		accounts := make([]uint8, len(ix.Accounts))
		for j, a := range ix.Accounts {
			if a > 0xff {
				return txcodec.Message{}, fmt.Errorf("instruction %d: account index %d out of range", i, a)
			}
			accounts[j] = uint8(a)
		}
		out.Instructions[i] = txcodec.CompiledInstruction{
			ProgramIDIndex: uint8(ix.ProgramIDIndex),
			Accounts:       accounts,
			Data:           append([]byte{}, ix.Data...),
		}
	}

	if out.Version.IsVersioned() {
		out.AddressTableLookups = make([]txcodec.AddressTableLookup, len(m.AddressTableLookups))
		for i, lut := range m.AddressTableLookups {
			out.AddressTableLookups[i] = txcodec.AddressTableLookup{
				AccountKey:      lut.AccountKey,
				WritableIndexes: append([]uint8{}, lut.WritableIndexes...),
				ReadonlyIndexes: append([]uint8{}, lut.ReadonlyIndexes...),
			}
		}
	}

	return out, nil
}
