package txcodec

import (
	"errors"
	"fmt"
)

// ErrInvalidTransaction wraps every problem reported by Validate.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Validate performs the semantic checks Deserialize skips: signature count,
// header consistency and index bounds. All problems are returned together.
func Validate(tx *Transaction) error {
	var errs []error
	msg := &tx.Message
	h := msg.Header
	numKeys := len(msg.AccountKeys)

	if len(tx.Signatures) != int(h.NumRequiredSignatures) {
		errs = append(errs, fmt.Errorf("signature count %d does not match required signatures %d",
			len(tx.Signatures), h.NumRequiredSignatures))
	}
	if h.NumReadonlySignedAccounts > h.NumRequiredSignatures {
		errs = append(errs, fmt.Errorf("readonly signed accounts %d exceed required signatures %d",
			h.NumReadonlySignedAccounts, h.NumRequiredSignatures))
	}
	if int(h.NumRequiredSignatures) > numKeys {
		errs = append(errs, fmt.Errorf("required signatures %d exceed account keys %d",
			h.NumRequiredSignatures, numKeys))
	}
	if int(h.NumRequiredSignatures)+int(h.NumReadonlyUnsignedAccounts) > numKeys {
		errs = append(errs, fmt.Errorf("signed plus readonly unsigned accounts %d exceed account keys %d",
			int(h.NumRequiredSignatures)+int(h.NumReadonlyUnsignedAccounts), numKeys))
	}
	if msg.Version.IsLegacy() && len(msg.AddressTableLookups) > 0 {
		errs = append(errs, fmt.Errorf("legacy message carries %d address table lookups", len(msg.AddressTableLookups)))
	}

	numLoaded := 0
	for _, lookup := range msg.AddressTableLookups {
		numLoaded += len(lookup.WritableIndexes) + len(lookup.ReadonlyIndexes)
	}
	total := numKeys + numLoaded

	for i, ix := range msg.Instructions {
		// programs must be static keys
		if int(ix.ProgramIDIndex) >= numKeys {
			errs = append(errs, fmt.Errorf("instruction %d program id index %d out of range (%d static keys)",
				i, ix.ProgramIDIndex, numKeys))
		}
		for j, idx := range ix.Accounts {
			if int(idx) >= total {
				errs = append(errs, fmt.Errorf("instruction %d account %d index %d out of range (%d accounts)",
					i, j, idx, total))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidTransaction, errors.Join(errs...))
}
