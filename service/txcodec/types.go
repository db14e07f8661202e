// Package txcodec converts Solana transactions between their wire format and
// an inspectable structure. Both legacy and versioned (v0) messages are supported.
package txcodec

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
)

const (
	// SignatureLength is the size of an ed25519 signature on the wire.
	SignatureLength = 64

	// PublicKeyLength is the size of an account key or blockhash on the wire.
	PublicKeyLength = 32

	// VersionPrefixMask marks the first message byte as a version prefix.
	VersionPrefixMask = 0x80

	// MaxVersion is the largest version number that fits the 7-bit prefix.
	MaxVersion = 0x7f
)

// MessageVersion distinguishes legacy messages from versioned ones.
// The zero value is Legacy.
type MessageVersion struct {
	versioned bool
	number    uint8
}

// Legacy returns the version tag of a message without a version prefix.
func Legacy() MessageVersion {
	return MessageVersion{}
}

// Versioned returns the version tag for a message prefixed with version n.
func Versioned(n uint8) MessageVersion {
	return MessageVersion{versioned: true, number: n}
}

// IsLegacy reports whether the message carries no version prefix.
func (v MessageVersion) IsLegacy() bool { return !v.versioned }

// IsVersioned reports whether the message carries a version prefix.
func (v MessageVersion) IsVersioned() bool { return v.versioned }

// Number returns the version number. It is zero for legacy messages.
func (v MessageVersion) Number() uint8 { return v.number }

func (v MessageVersion) String() string {
	if !v.versioned {
		return "legacy"
	}
	return strconv.Itoa(int(v.number))
}

// MarshalJSON encodes legacy as the string "legacy" and versions as numbers.
func (v MessageVersion) MarshalJSON() ([]byte, error) {
	if !v.versioned {
		return []byte(`"legacy"`), nil
	}
	return []byte(strconv.Itoa(int(v.number))), nil
}

// UnmarshalJSON accepts "legacy" or a number in 0..127.
func (v *MessageVersion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "legacy" {
			return fmt.Errorf("unknown message version %q", s)
		}
		*v = Legacy()
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("message version must be \"legacy\" or a number: %w", err)
	}
	if n < 0 || n > MaxVersion {
		return fmt.Errorf("message version %d out of range", n)
	}
	*v = Versioned(uint8(n))
	return nil
}

// MessageHeader holds the three account-class counts of a message.
type MessageHeader struct {
	NumRequiredSignatures       uint8 `json:"numRequiredSignatures"`
	NumReadonlySignedAccounts   uint8 `json:"numReadonlySignedAccounts"`
	NumReadonlyUnsignedAccounts uint8 `json:"numReadonlyUnsignedAccounts"`
}

// CompiledInstruction references its program and accounts by index.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// AddressTableLookup loads extra accounts from an on-chain lookup table.
type AddressTableLookup struct {
	AccountKey      solana.PublicKey
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

// Message is the signed portion of a transaction.
// AddressTableLookups is only encoded for versioned messages.
type Message struct {
	Version             MessageVersion
	Header              MessageHeader
	AccountKeys         []solana.PublicKey
	RecentBlockhash     solana.Hash
	Instructions        []CompiledInstruction
	AddressTableLookups []AddressTableLookup
}

// Transaction is a message together with its signatures.
type Transaction struct {
	Signatures []solana.Signature
	Message    Message
}
