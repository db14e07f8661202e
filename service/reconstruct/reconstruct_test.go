package reconstruct

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/brojonat/rawtx/service/metrics"
	"github.com/brojonat/rawtx/service/txcodec"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger returns canned results and counts queries.
type fakeLedger struct {
	result *ConfirmedTransaction
	err    error

	calls    int
	lastSig  string
	lastOpts QueryOptions
}

func (f *fakeLedger) GetConfirmedTransaction(ctx context.Context, signature string, opts QueryOptions) (*ConfirmedTransaction, error) {
	f.calls++
	f.lastSig = signature
	f.lastOpts = opts
	return f.result, f.err
}

func newTestReconstructor(ledger Ledger) *Reconstructor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(ledger, metrics.NewMetrics(prometheus.NewRegistry()), logger)
}

func testMessage() txcodec.Message {
	return txcodec.Message{
		Version: txcodec.Versioned(0),
		Header: txcodec.MessageHeader{
			NumRequiredSignatures:       2,
			NumReadonlyUnsignedAccounts: 1,
		},
		AccountKeys: []solana.PublicKey{
			solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"),
			solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"),
			solana.SystemProgramID,
		},
		RecentBlockhash: solana.MustHashFromBase58("EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"),
		Instructions: []txcodec.CompiledInstruction{
			{ProgramIDIndex: 2, Accounts: []uint8{0, 1}, Data: []byte{2, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0}},
		},
		AddressTableLookups: []txcodec.AddressTableLookup{},
	}
}

var (
	sigA = solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")
	sigB = solana.MustSignatureFromBase58("2TgM4N8qCMqLvfR8dxqTQgKygPNzT5KQkN5b5sT7eZPEkdxyLTXGnNQB3j7KG4DPFg5Qez5yNJBQRQ5r7DDnFfjG")
)

func TestReconstruct_Success(t *testing.T) {
	ledger := &fakeLedger{result: &ConfirmedTransaction{
		Message:    testMessage(),
		Signatures: []string{sigA.String(), sigB.String()},
	}}
	r := newTestReconstructor(ledger)

	got, err := r.Reconstruct(context.Background(), sigA.String())
	require.NoError(t, err)

	want, err := txcodec.Serialize(&txcodec.Transaction{
		Signatures: []solana.Signature{sigA, sigB},
		Message:    testMessage(),
	})
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(want), got)

	assert.Equal(t, 1, ledger.calls)
	assert.Equal(t, sigA.String(), ledger.lastSig)
	assert.Equal(t, uint64(0), ledger.lastOpts.MaxSupportedTransactionVersion)

	// the output decodes back to the same transaction
	raw, err := base64.StdEncoding.DecodeString(got)
	require.NoError(t, err)
	tx, err := txcodec.Deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, []solana.Signature{sigA, sigB}, tx.Signatures)
	assert.Equal(t, testMessage(), tx.Message)
}

func TestReconstruct_NotFound(t *testing.T) {
	ledger := &fakeLedger{}
	r := newTestReconstructor(ledger)

	got, err := r.Reconstruct(context.Background(), sigA.String())
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	assert.Equal(t, "Transaction not found", err.Error())
	assert.Empty(t, got)
	assert.Equal(t, 1, ledger.calls)
}

func TestReconstruct_LedgerErrorSurfacedVerbatim(t *testing.T) {
	ledgerErr := errors.New("rpc call getTransaction() on https://api.mainnet-beta.solana.com: 429 Too Many Requests")
	ledger := &fakeLedger{err: ledgerErr}
	r := newTestReconstructor(ledger)

	_, err := r.Reconstruct(context.Background(), sigA.String())
	assert.Equal(t, ledgerErr, err)
	assert.Equal(t, 1, ledger.calls, "no retries")
}

func TestReconstruct_PartiallySigned(t *testing.T) {
	ledger := &fakeLedger{result: &ConfirmedTransaction{
		Message:    testMessage(),
		Signatures: []string{sigA.String()},
	}}
	r := newTestReconstructor(ledger)

	raw, err := r.ReconstructBytes(context.Background(), sigA.String())
	require.NoError(t, err)
	assert.Equal(t, byte(1), raw[0])

	tx, err := txcodec.Deserialize(raw)
	require.NoError(t, err)
	assert.Len(t, tx.Signatures, 1)
	assert.Equal(t, uint8(2), tx.Message.Header.NumRequiredSignatures)
}

func TestReconstruct_InvalidSignature(t *testing.T) {
	tests := []struct {
		name string
		sig  string
	}{
		{"not base58", "0OIl"},
		{"wrong length", solana.SystemProgramID.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{result: &ConfirmedTransaction{
				Message:    testMessage(),
				Signatures: []string{tt.sig},
			}}
			_, err := newTestReconstructor(ledger).Reconstruct(context.Background(), "sig")
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestReconstruct_ContextPassedThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ledger := &ctxLedger{}
	_, err := New(ledger, nil, nil).Reconstruct(ctx, "sig")
	assert.ErrorIs(t, err, context.Canceled)
}

type ctxLedger struct{}

func (ctxLedger) GetConfirmedTransaction(ctx context.Context, signature string, opts QueryOptions) (*ConfirmedTransaction, error) {
	return nil, ctx.Err()
}
