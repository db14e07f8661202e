package txcodec

import (
	"encoding/hex"
)

// DisplayTransaction is the JSON shape shown to people inspecting a transaction.
// Keys, hashes and signatures are Base58; instruction data is hex.
type DisplayTransaction struct {
	Signatures []string       `json:"signatures"`
	Message    DisplayMessage `json:"message"`
	Version    MessageVersion `json:"version"`
	Encoding   Encoding       `json:"encoding,omitempty"`
	Size       int            `json:"size,omitempty"` // wire bytes, set by DecodeDisplay
}

type DisplayMessage struct {
	Header              MessageHeader        `json:"header"`
	AccountKeys         []string             `json:"accountKeys"`
	RecentBlockhash     string               `json:"recentBlockhash"`
	Instructions        []DisplayInstruction `json:"instructions"`
	AddressTableLookups []DisplayLookup      `json:"addressTableLookups"`
}

type DisplayInstruction struct {
	ProgramIDIndex    uint8  `json:"programIdIndex"`
	AccountKeyIndexes []int  `json:"accountKeyIndexes"`
	Data              string `json:"data"`
}

type DisplayLookup struct {
	AccountKey      string `json:"accountKey"`
	WritableIndexes []int  `json:"writableIndexes"`
	ReadonlyIndexes []int  `json:"readonlyIndexes"`
}

// ToDisplay converts tx into its display form.
func ToDisplay(tx *Transaction) *DisplayTransaction {
	msg := &tx.Message
	out := &DisplayTransaction{
		Signatures: make([]string, len(tx.Signatures)),
		Version:    msg.Version,
		Message: DisplayMessage{
			Header:              msg.Header,
			AccountKeys:         make([]string, len(msg.AccountKeys)),
			RecentBlockhash:     msg.RecentBlockhash.String(),
			Instructions:        make([]DisplayInstruction, len(msg.Instructions)),
			AddressTableLookups: make([]DisplayLookup, len(msg.AddressTableLookups)),
		},
	}
	for i, sig := range tx.Signatures {
		out.Signatures[i] = sig.String()
	}
	for i, key := range msg.AccountKeys {
		out.Message.AccountKeys[i] = key.String()
	}
	for i, ix := range msg.Instructions {
		out.Message.Instructions[i] = DisplayInstruction{
			ProgramIDIndex:    ix.ProgramIDIndex,
			AccountKeyIndexes: widen(ix.Accounts),
			Data:              hex.EncodeToString(ix.Data),
		}
	}
	for i, lookup := range msg.AddressTableLookups {
		out.Message.AddressTableLookups[i] = DisplayLookup{
			AccountKey:      lookup.AccountKey.String(),
			WritableIndexes: widen(lookup.WritableIndexes),
			ReadonlyIndexes: widen(lookup.ReadonlyIndexes),
		}
	}
	return out
}

// DecodeDisplay decodes Base58 or Base64 text into its display form.
// With strict set the transaction must also pass Validate.
// Nothing is returned alongside an error.
func DecodeDisplay(input string, strict bool) (*DisplayTransaction, error) {
	raw, enc, err := DecodeString(input)
	if err != nil {
		return nil, err
	}
	tx, err := Deserialize(raw)
	if err != nil {
		return nil, err
	}
	if strict {
		if err := Validate(tx); err != nil {
			return nil, err
		}
	}
	out := ToDisplay(tx)
	out.Encoding = enc
	out.Size = len(raw)
	return out, nil
}

// widen keeps []uint8 from being marshaled as a base64 string.
func widen(idx []uint8) []int {
	out := make([]int, len(idx))
	for i, v := range idx {
		out[i] = int(v)
	}
	return out
}
