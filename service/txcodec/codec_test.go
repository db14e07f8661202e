package txcodec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filledKey(b byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = b
	}
	return k
}

func filledSignature(b byte) solana.Signature {
	var s solana.Signature
	for i := range s {
		s[i] = b
	}
	return s
}

// legacyFixture is a legacy message with header (1,0,1), two static keys and a
// single instruction without accounts or data.
func legacyFixture() *Transaction {
	return &Transaction{
		Signatures: []solana.Signature{{}},
		Message: Message{
			Version: Legacy(),
			Header: MessageHeader{
				NumRequiredSignatures:       1,
				NumReadonlySignedAccounts:   0,
				NumReadonlyUnsignedAccounts: 1,
			},
			AccountKeys:     []solana.PublicKey{filledKey(0x11), filledKey(0xff)},
			RecentBlockhash: solana.Hash{},
			Instructions: []CompiledInstruction{
				{ProgramIDIndex: 1, Accounts: []uint8{}, Data: []byte{}},
			},
		},
	}
}

// versionedFixture is a v0 message loading three accounts from one lookup table.
func versionedFixture() *Transaction {
	return &Transaction{
		Signatures: []solana.Signature{filledSignature(0x55)},
		Message: Message{
			Version: Versioned(0),
			Header: MessageHeader{
				NumRequiredSignatures:       1,
				NumReadonlySignedAccounts:   0,
				NumReadonlyUnsignedAccounts: 1,
			},
			AccountKeys:     []solana.PublicKey{filledKey(0x11), filledKey(0x22)},
			RecentBlockhash: solana.Hash(filledKey(0x33)),
			Instructions: []CompiledInstruction{
				{
					ProgramIDIndex: 1,
					Accounts:       []uint8{0, 2, 3, 4},
					Data:           []byte{0x02, 0x00, 0x00, 0x00, 0x40, 0x42, 0x0f, 0x00, 0x00, 0x00, 0x00, 0x00},
				},
			},
			AddressTableLookups: []AddressTableLookup{
				{
					AccountKey:      filledKey(0x44),
					WritableIndexes: []uint8{5, 7},
					ReadonlyIndexes: []uint8{9},
				},
			},
		},
	}
}

func TestSerialize_LegacyLayout(t *testing.T) {
	var want []byte
	want = append(want, 0x01)
	want = append(want, make([]byte, 64)...)
	want = append(want, 0x01, 0x00, 0x01)
	want = append(want, 0x02)
	want = append(want, bytes.Repeat([]byte{0x11}, 32)...)
	want = append(want, bytes.Repeat([]byte{0xff}, 32)...)
	want = append(want, make([]byte, 32)...)
	want = append(want, 0x01, 0x01, 0x00, 0x00)

	got, err := Serialize(legacyFixture())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSerialize_VersionPrefix(t *testing.T) {
	tx := versionedFixture()
	b, err := Serialize(tx)
	require.NoError(t, err)
	assert.Equal(t, byte(0x80), b[1+SignatureLength])

	tx.Message.Version = Versioned(5)
	b, err = Serialize(tx)
	require.NoError(t, err)
	assert.Equal(t, byte(0x85), b[1+SignatureLength])
}

func TestSerialize_VersionOverflow(t *testing.T) {
	tx := versionedFixture()
	tx.Message.Version = Versioned(200)
	_, err := Serialize(tx)
	assert.ErrorIs(t, err, ErrFieldOverflow)
}

func TestSerialize_LegacyOmitsLookups(t *testing.T) {
	tx := legacyFixture()
	withLookups := legacyFixture()
	withLookups.Message.AddressTableLookups = []AddressTableLookup{{AccountKey: filledKey(0x44)}}

	a, err := Serialize(tx)
	require.NoError(t, err)
	b, err := Serialize(withLookups)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSerialize_DoesNotEnforceSignatureCount(t *testing.T) {
	tx := legacyFixture()
	tx.Signatures = nil

	b, err := Serialize(tx)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), b[0])

	decoded, err := Deserialize(b)
	require.NoError(t, err)
	assert.Empty(t, decoded.Signatures)
	assert.Equal(t, uint8(1), decoded.Message.Header.NumRequiredSignatures)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tx   *Transaction
	}{
		{"legacy", legacyFixture()},
		{"versioned", versionedFixture()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Serialize(tt.tx)
			require.NoError(t, err)

			decoded, err := Deserialize(b)
			require.NoError(t, err)
			assert.Equal(t, tt.tx, decoded)
		})
	}
}

func TestRoundTrip_LongFields(t *testing.T) {
	tx := versionedFixture()
	tx.Message.Instructions[0].Data = bytes.Repeat([]byte{0xab}, 300)
	keys := make([]solana.PublicKey, 130)
	for i := range keys {
		keys[i] = filledKey(byte(i))
	}
	tx.Message.AccountKeys = keys

	b, err := Serialize(tx)
	require.NoError(t, err)

	decoded, err := Deserialize(b)
	require.NoError(t, err)
	assert.Equal(t, tx, decoded)
}

func TestDeserialize_VersionedLookups(t *testing.T) {
	b, err := Serialize(versionedFixture())
	require.NoError(t, err)

	decoded, err := Deserialize(b)
	require.NoError(t, err)

	assert.True(t, decoded.Message.Version.IsVersioned())
	assert.Equal(t, uint8(0), decoded.Message.Version.Number())
	require.Len(t, decoded.Message.AddressTableLookups, 1)
	lookup := decoded.Message.AddressTableLookups[0]
	assert.Equal(t, filledKey(0x44), lookup.AccountKey)
	assert.Equal(t, []uint8{5, 7}, lookup.WritableIndexes)
	assert.Equal(t, []uint8{9}, lookup.ReadonlyIndexes)
}

func TestDeserialize_Empty(t *testing.T) {
	_, err := Deserialize(nil)
	assert.ErrorIs(t, err, ErrEmptyBuffer)

	_, err = Deserialize([]byte{})
	assert.ErrorIs(t, err, ErrEmptyBuffer)
}

func TestDeserialize_EveryTruncation(t *testing.T) {
	for _, tx := range []*Transaction{legacyFixture(), versionedFixture()} {
		b, err := Serialize(tx)
		require.NoError(t, err)

		for n := 1; n < len(b); n++ {
			_, err := Deserialize(b[:n])
			if !errors.Is(err, ErrTruncatedBuffer) && !errors.Is(err, ErrMalformedVarint) {
				t.Fatalf("Deserialize(b[:%d]) of %d bytes: got %v", n, len(b), err)
			}
		}
	}
}

func TestDeserialize_FieldInError(t *testing.T) {
	b, err := Serialize(legacyFixture())
	require.NoError(t, err)

	// cut inside the blockhash
	cut := 1 + 64 + 3 + 1 + 64 + 10
	_, err = Deserialize(b[:cut])
	require.Error(t, err)

	var fieldErr *FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "recent blockhash", fieldErr.Field)
	assert.Equal(t, 1+64+3+1+64, fieldErr.Offset)
	assert.ErrorIs(t, err, ErrTruncatedBuffer)
}

func TestDeserialize_SignatureCountBeyondBuffer(t *testing.T) {
	_, err := Deserialize([]byte{0x05, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrTruncatedBuffer)
}

func TestDeserialize_MalformedCount(t *testing.T) {
	_, err := Deserialize([]byte{0xff, 0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrMalformedVarint)
}

func TestDeserialize_TrailingBytesIgnored(t *testing.T) {
	b, err := Serialize(legacyFixture())
	require.NoError(t, err)

	decoded, err := Deserialize(append(b, 0xde, 0xad))
	require.NoError(t, err)
	assert.Equal(t, legacyFixture(), decoded)
}

func TestDeserialize_PreservesOutOfRangeIndexes(t *testing.T) {
	tx := legacyFixture()
	tx.Message.Instructions[0].ProgramIDIndex = 200
	tx.Message.Instructions[0].Accounts = []uint8{250, 251}

	b, err := Serialize(tx)
	require.NoError(t, err)

	decoded, err := Deserialize(b)
	require.NoError(t, err)
	assert.Equal(t, uint8(200), decoded.Message.Instructions[0].ProgramIDIndex)
	assert.Equal(t, []uint8{250, 251}, decoded.Message.Instructions[0].Accounts)
}

func TestDeserialize_DoesNotAliasInput(t *testing.T) {
	b, err := Serialize(versionedFixture())
	require.NoError(t, err)

	decoded, err := Deserialize(b)
	require.NoError(t, err)

	for i := range b {
		b[i] = 0
	}
	assert.Equal(t, versionedFixture(), decoded)
}

func TestDeserializeMessage(t *testing.T) {
	tx := versionedFixture()
	b, err := SerializeMessage(&tx.Message)
	require.NoError(t, err)
	assert.Equal(t, byte(0x80), b[0])

	msg, err := DeserializeMessage(b)
	require.NoError(t, err)
	assert.Equal(t, &tx.Message, msg)

	_, err = DeserializeMessage(nil)
	assert.ErrorIs(t, err, ErrEmptyBuffer)
}

// The bytes must be accepted by solana-go and re-encode identically.
func TestSerialize_MatchesSolanaGo(t *testing.T) {
	for _, tx := range []*Transaction{legacyFixture(), versionedFixture()} {
		b, err := Serialize(tx)
		require.NoError(t, err)

		theirs, err := solana.TransactionFromBytes(b)
		require.NoError(t, err)
		assert.Equal(t, tx.Message.Version.IsVersioned(), theirs.Message.IsVersioned())
		assert.Len(t, theirs.Message.AddressTableLookups, len(tx.Message.AddressTableLookups))

		out, err := theirs.MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, b, out)
	}
}
