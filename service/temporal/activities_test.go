package temporal

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/brojonat/rawtx/service/db"
	natspkg "github.com/brojonat/rawtx/service/nats"
	"github.com/brojonat/rawtx/service/reconstruct"
	ledgerpkg "github.com/brojonat/rawtx/service/solana"
	"github.com/brojonat/rawtx/service/txcodec"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// Mock Reconstructor
type MockReconstructor struct {
	mock.Mock
}

func (m *MockReconstructor) ReconstructBytes(ctx context.Context, signatureID string) ([]byte, error) {
	args := m.Called(ctx, signatureID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Mock Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveReconstruction(ctx context.Context, params db.SaveReconstructionParams) (*db.Reconstruction, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Reconstruction), args.Error(1)
}

const testSig = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testRawTx returns the wire form of a one-signature legacy transfer.
func testRawTx(t *testing.T) []byte {
	t.Helper()
	raw, err := txcodec.Serialize(&txcodec.Transaction{
		Signatures: []solana.Signature{solana.MustSignatureFromBase58(testSig)},
		Message: txcodec.Message{
			Version: txcodec.Legacy(),
			Header:  txcodec.MessageHeader{NumRequiredSignatures: 1, NumReadonlyUnsignedAccounts: 1},
			AccountKeys: []solana.PublicKey{
				solana.MustPublicKeyFromBase58("EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"),
				solana.SystemProgramID,
			},
			RecentBlockhash: solana.MustHashFromBase58("EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"),
			Instructions: []txcodec.CompiledInstruction{
				{ProgramIDIndex: 1, Accounts: []uint8{0}, Data: []byte{2, 0, 0, 0}},
			},
		},
	})
	require.NoError(t, err)
	return raw
}

func TestActivities_Reconstruct(t *testing.T) {
	raw := []byte{1, 2, 3}

	tests := []struct {
		name          string
		setupMock     func(*MockReconstructor)
		expectedRaw   string
		expectedError bool
		nonRetryable  bool
	}{
		{
			name: "success",
			setupMock: func(m *MockReconstructor) {
				m.On("ReconstructBytes", mock.Anything, testSig).Return(raw, nil)
			},
			expectedRaw: base64.StdEncoding.EncodeToString(raw),
		},
		{
			name: "not found is not retried",
			setupMock: func(m *MockReconstructor) {
				m.On("ReconstructBytes", mock.Anything, testSig).Return(nil, reconstruct.ErrTransactionNotFound)
			},
			expectedError: true,
			nonRetryable:  true,
		},
		{
			name: "invalid signature is not retried",
			setupMock: func(m *MockReconstructor) {
				m.On("ReconstructBytes", mock.Anything, testSig).
					Return(nil, errors.Join(reconstruct.ErrInvalidSignature, errors.New("bad")))
			},
			expectedError: true,
			nonRetryable:  true,
		},
		{
			name: "ledger error is retried",
			setupMock: func(m *MockReconstructor) {
				m.On("ReconstructBytes", mock.Anything, testSig).Return(nil, errors.New("connection refused"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(MockReconstructor)
			tt.setupMock(rec)

			activities := NewActivities(rec, nil, nil, nil, testLogger())
			result, err := activities.Reconstruct(context.Background(), ReconstructInput{Signature: testSig})

			if tt.expectedError {
				require.Error(t, err)
				assert.Nil(t, result)
				var appErr *temporalsdk.ApplicationError
				assert.Equal(t, tt.nonRetryable, errors.As(err, &appErr) && appErr.NonRetryable())
			} else {
				require.NoError(t, err)
				assert.Equal(t, testSig, result.Signature)
				assert.Equal(t, tt.expectedRaw, result.RawTransaction)
			}
			rec.AssertExpectations(t)
		})
	}
}

// countingRPC fails every call and counts how often the node was asked.
type countingRPC struct {
	calls int
}

func (c *countingRPC) GetTransaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	c.calls++
	return nil, errors.New("connection refused")
}

func TestActivities_Reconstruct_MalformedSignatureNotRetried(t *testing.T) {
	node := &countingRPC{}
	ledger := ledgerpkg.NewLedger(node, "test", nil, testLogger())
	activities := NewActivities(reconstruct.New(ledger, nil, testLogger()), nil, nil, nil, testLogger())

	result, err := activities.Reconstruct(context.Background(), ReconstructInput{Signature: "not-a-signature"})
	require.Error(t, err)
	assert.Nil(t, result)

	var appErr *temporalsdk.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, ErrTypeInvalidTransaction, appErr.Type())
	assert.Equal(t, 0, node.calls)
}

func TestActivities_ArchiveReconstruction(t *testing.T) {
	raw := testRawTx(t)
	input := StoreReconstructionInput{
		Signature:      testSig,
		Network:        "mainnet",
		RawTransaction: base64.StdEncoding.EncodeToString(raw),
	}

	t.Run("saves derived params", func(t *testing.T) {
		store := new(MockStore)
		store.On("SaveReconstruction", mock.Anything, mock.MatchedBy(func(p db.SaveReconstructionParams) bool {
			return p.Signature == testSig &&
				p.Network == "mainnet" &&
				p.MessageVersion == "legacy" &&
				p.NumSignatures == 1 &&
				p.NumRequiredSignatures == 1 &&
				assert.ObjectsAreEqual(raw, p.RawTransaction)
		})).Return(&db.Reconstruction{Signature: testSig}, nil)

		activities := NewActivities(nil, store, nil, nil, testLogger())
		require.NoError(t, activities.ArchiveReconstruction(context.Background(), input))
		store.AssertExpectations(t)
	})

	t.Run("store error", func(t *testing.T) {
		store := new(MockStore)
		store.On("SaveReconstruction", mock.Anything, mock.Anything).Return(nil, errors.New("database error"))

		activities := NewActivities(nil, store, nil, nil, testLogger())
		err := activities.ArchiveReconstruction(context.Background(), input)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database error")
	})

	t.Run("undecodable raw transaction", func(t *testing.T) {
		store := new(MockStore)
		activities := NewActivities(nil, store, nil, nil, testLogger())

		bad := input
		bad.RawTransaction = "%%%"
		err := activities.ArchiveReconstruction(context.Background(), bad)
		require.Error(t, err)
		store.AssertNotCalled(t, "SaveReconstruction", mock.Anything, mock.Anything)
	})

	t.Run("no store configured", func(t *testing.T) {
		activities := NewActivities(nil, nil, nil, nil, testLogger())
		assert.NoError(t, activities.ArchiveReconstruction(context.Background(), input))
	})
}

func TestActivities_PublishReconstruction(t *testing.T) {
	raw := testRawTx(t)
	input := StoreReconstructionInput{
		Signature:      testSig,
		Network:        "devnet",
		RawTransaction: base64.StdEncoding.EncodeToString(raw),
	}

	t.Run("publishes event", func(t *testing.T) {
		pub := natspkg.NewMockPublisher()
		activities := NewActivities(nil, nil, pub, nil, testLogger())

		require.NoError(t, activities.PublishReconstruction(context.Background(), input))

		events := pub.GetPublishedEvents()
		require.Len(t, events, 1)
		assert.Equal(t, testSig, events[0].Signature)
		assert.Equal(t, "devnet", events[0].Network)
		assert.Equal(t, input.RawTransaction, events[0].RawTransaction)
		assert.Equal(t, "legacy", events[0].MessageVersion)
	})

	t.Run("publish error", func(t *testing.T) {
		pub := natspkg.NewMockPublisher()
		pub.SetPublishError(errors.New("nats down"))
		activities := NewActivities(nil, nil, pub, nil, testLogger())

		err := activities.PublishReconstruction(context.Background(), input)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nats down")
	})

	t.Run("no publisher configured", func(t *testing.T) {
		activities := NewActivities(nil, nil, nil, nil, testLogger())
		assert.NoError(t, activities.PublishReconstruction(context.Background(), input))
	})
}
