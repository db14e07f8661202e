package txcodec

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// reader walks a buffer front to back. Every read names its field so failures
// say what was being decoded.
type reader struct {
	buf []byte
	off int
}

func (r *reader) fail(field string, err error) error {
	return &FieldError{Field: field, Offset: r.off, Err: err}
}

func (r *reader) bytes(field string, n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, r.fail(field, ErrTruncatedBuffer)
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *reader) u8(field string) (uint8, error) {
	b, err := r.bytes(field, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) peek(field string) (byte, error) {
	if r.off >= len(r.buf) {
		return 0, r.fail(field, ErrTruncatedBuffer)
	}
	return r.buf[r.off], nil
}

func (r *reader) length(field string) (int, error) {
	if r.off >= len(r.buf) {
		return 0, r.fail(field, ErrTruncatedBuffer)
	}
	v, n, err := DecodeCompactU16(r.buf, r.off)
	if err != nil {
		return 0, r.fail(field, err)
	}
	r.off += n
	return int(v), nil
}

// indexes reads a compact-u16 count followed by that many one-byte indexes.
// The result is a copy so decoded values never alias the input buffer.
func (r *reader) indexes(field string) ([]uint8, error) {
	n, err := r.length(field + " count")
	if err != nil {
		return nil, err
	}
	b, err := r.bytes(field, n)
	if err != nil {
		return nil, err
	}
	return append(make([]uint8, 0, n), b...), nil
}

func (r *reader) publicKey(field string) (solana.PublicKey, error) {
	b, err := r.bytes(field, PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

// Deserialize parses a legacy or versioned transaction.
//
// Only the layout is checked. Header counts, signature counts and instruction
// indexes are preserved as found; use Validate for semantic checks.
func Deserialize(buf []byte) (*Transaction, error) {
	if len(buf) == 0 {
		return nil, ErrEmptyBuffer
	}
	r := &reader{buf: buf}

	numSigs, err := r.length("signature count")
	if err != nil {
		return nil, err
	}
	sigs := make([]solana.Signature, numSigs)
	for i := range sigs {
		b, err := r.bytes(fmt.Sprintf("signature %d", i), SignatureLength)
		if err != nil {
			return nil, err
		}
		sigs[i] = solana.SignatureFromBytes(b)
	}

	msg, err := r.message()
	if err != nil {
		return nil, err
	}

	return &Transaction{Signatures: sigs, Message: *msg}, nil
}

// DeserializeMessage parses a message without the leading signature section.
func DeserializeMessage(buf []byte) (*Message, error) {
	if len(buf) == 0 {
		return nil, ErrEmptyBuffer
	}
	r := &reader{buf: buf}
	return r.message()
}

func (r *reader) message() (*Message, error) {
	msg := &Message{}

	first, err := r.peek("message prefix")
	if err != nil {
		return nil, err
	}
	if first&VersionPrefixMask != 0 {
		r.off++
		msg.Version = Versioned(first &^ VersionPrefixMask)
	}

	header, err := r.bytes("message header", 3)
	if err != nil {
		return nil, err
	}
	msg.Header = MessageHeader{
		NumRequiredSignatures:       header[0],
		NumReadonlySignedAccounts:   header[1],
		NumReadonlyUnsignedAccounts: header[2],
	}

	numKeys, err := r.length("account key count")
	if err != nil {
		return nil, err
	}
	msg.AccountKeys = make([]solana.PublicKey, numKeys)
	for i := range msg.AccountKeys {
		if msg.AccountKeys[i], err = r.publicKey(fmt.Sprintf("account key %d", i)); err != nil {
			return nil, err
		}
	}

	blockhash, err := r.bytes("recent blockhash", PublicKeyLength)
	if err != nil {
		return nil, err
	}
	msg.RecentBlockhash = solana.HashFromBytes(blockhash)

	numInstructions, err := r.length("instruction count")
	if err != nil {
		return nil, err
	}
	msg.Instructions = make([]CompiledInstruction, numInstructions)
	for i := range msg.Instructions {
		ix := &msg.Instructions[i]
		if ix.ProgramIDIndex, err = r.u8(fmt.Sprintf("instruction %d program id index", i)); err != nil {
			return nil, err
		}
		if ix.Accounts, err = r.indexes(fmt.Sprintf("instruction %d account indexes", i)); err != nil {
			return nil, err
		}
		dataLen, err := r.length(fmt.Sprintf("instruction %d data length", i))
		if err != nil {
			return nil, err
		}
		data, err := r.bytes(fmt.Sprintf("instruction %d data", i), dataLen)
		if err != nil {
			return nil, err
		}
		ix.Data = append(make([]byte, 0, dataLen), data...)
	}

	if msg.Version.IsLegacy() {
		return msg, nil
	}

	numLookups, err := r.length("address table lookup count")
	if err != nil {
		return nil, err
	}
	msg.AddressTableLookups = make([]AddressTableLookup, numLookups)
	for i := range msg.AddressTableLookups {
		lookup := &msg.AddressTableLookups[i]
		if lookup.AccountKey, err = r.publicKey(fmt.Sprintf("address table lookup %d account key", i)); err != nil {
			return nil, err
		}
		if lookup.WritableIndexes, err = r.indexes(fmt.Sprintf("address table lookup %d writable indexes", i)); err != nil {
			return nil, err
		}
		if lookup.ReadonlyIndexes, err = r.indexes(fmt.Sprintf("address table lookup %d readonly indexes", i)); err != nil {
			return nil, err
		}
	}

	return msg, nil
}
