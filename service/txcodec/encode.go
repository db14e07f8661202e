package txcodec

import (
	"fmt"
	"math"
)

// Serialize writes tx in wire order: signatures, optional version prefix,
// header, account keys, blockhash, instructions and, for versioned messages,
// address table lookups.
//
// No consistency checks are made between the header, the signatures and the
// account list; the structure is written exactly as given.
func Serialize(tx *Transaction) ([]byte, error) {
	if len(tx.Signatures) > math.MaxUint16 {
		return nil, fmt.Errorf("signature count %d: %w", len(tx.Signatures), ErrFieldOverflow)
	}
	buf := make([]byte, 0, estimateSize(tx))
	buf = AppendCompactU16(buf, uint16(len(tx.Signatures)))
	for _, sig := range tx.Signatures {
		buf = append(buf, sig[:]...)
	}
	return appendMessage(buf, &tx.Message)
}

// SerializeMessage writes only the message portion, the bytes covered by signatures.
func SerializeMessage(msg *Message) ([]byte, error) {
	return appendMessage(nil, msg)
}

func appendMessage(buf []byte, msg *Message) ([]byte, error) {
	if msg.Version.IsVersioned() {
		if msg.Version.Number() > MaxVersion {
			return nil, fmt.Errorf("message version %d: %w", msg.Version.Number(), ErrFieldOverflow)
		}
		buf = append(buf, VersionPrefixMask|msg.Version.Number())
	}

	buf = append(buf,
		msg.Header.NumRequiredSignatures,
		msg.Header.NumReadonlySignedAccounts,
		msg.Header.NumReadonlyUnsignedAccounts,
	)

	var err error
	if buf, err = appendLength(buf, "account key count", len(msg.AccountKeys)); err != nil {
		return nil, err
	}
	for _, key := range msg.AccountKeys {
		buf = append(buf, key[:]...)
	}

	buf = append(buf, msg.RecentBlockhash[:]...)

	if buf, err = appendLength(buf, "instruction count", len(msg.Instructions)); err != nil {
		return nil, err
	}
	for i, ix := range msg.Instructions {
		buf = append(buf, ix.ProgramIDIndex)
		if buf, err = appendIndexes(buf, fmt.Sprintf("instruction %d account indexes", i), ix.Accounts); err != nil {
			return nil, err
		}
		if buf, err = appendLength(buf, fmt.Sprintf("instruction %d data length", i), len(ix.Data)); err != nil {
			return nil, err
		}
		buf = append(buf, ix.Data...)
	}

	if msg.Version.IsLegacy() {
		return buf, nil
	}

	if buf, err = appendLength(buf, "address table lookup count", len(msg.AddressTableLookups)); err != nil {
		return nil, err
	}
	for i, lookup := range msg.AddressTableLookups {
		buf = append(buf, lookup.AccountKey[:]...)
		if buf, err = appendIndexes(buf, fmt.Sprintf("address table lookup %d writable indexes", i), lookup.WritableIndexes); err != nil {
			return nil, err
		}
		if buf, err = appendIndexes(buf, fmt.Sprintf("address table lookup %d readonly indexes", i), lookup.ReadonlyIndexes); err != nil {
			return nil, err
		}
	}

	return buf, nil
}

func appendLength(buf []byte, field string, n int) ([]byte, error) {
	if n > math.MaxUint16 {
		return nil, fmt.Errorf("%s %d: %w", field, n, ErrFieldOverflow)
	}
	return AppendCompactU16(buf, uint16(n)), nil
}

func appendIndexes(buf []byte, field string, idx []uint8) ([]byte, error) {
	buf, err := appendLength(buf, field, len(idx))
	if err != nil {
		return nil, err
	}
	return append(buf, idx...), nil
}

func estimateSize(tx *Transaction) int {
	n := MaxCompactU16Bytes + len(tx.Signatures)*SignatureLength
	n += 1 + 3 + MaxCompactU16Bytes + len(tx.Message.AccountKeys)*PublicKeyLength + PublicKeyLength
	for _, ix := range tx.Message.Instructions {
		n += 1 + 2*MaxCompactU16Bytes + len(ix.Accounts) + len(ix.Data)
	}
	for _, lookup := range tx.Message.AddressTableLookups {
		n += PublicKeyLength + 2*MaxCompactU16Bytes + len(lookup.WritableIndexes) + len(lookup.ReadonlyIndexes)
	}
	return n
}
