package txcodec

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Encoding names the text form a raw transaction was supplied in.
type Encoding string

const (
	EncodingBase58 Encoding = "base58"
	EncodingBase64 Encoding = "base64"
)

// IsBase58 reports whether s decodes under the Bitcoin Base58 alphabet.
func IsBase58(s string) bool {
	if s == "" {
		return false
	}
	_, err := base58.Decode(s)
	return err == nil
}

// DetectEncoding classifies s. Base58 is tried first, so strings that are
// valid in both alphabets are reported as Base58.
func DetectEncoding(s string) Encoding {
	if IsBase58(strings.TrimSpace(s)) {
		return EncodingBase58
	}
	return EncodingBase64
}

// DecodeString decodes s after detecting its encoding.
func DecodeString(s string) ([]byte, Encoding, error) {
	s = strings.TrimSpace(s)
	enc := DetectEncoding(s)
	switch enc {
	case EncodingBase58:
		b, err := base58.Decode(s)
		if err != nil {
			return nil, enc, fmt.Errorf("%w: %v", ErrUnrecognizedEncoding, err)
		}
		return b, enc, nil
	default:
		b, err := decodeBase64(s)
		if err != nil {
			return nil, enc, fmt.Errorf("%w: %v", ErrUnrecognizedEncoding, err)
		}
		return b, enc, nil
	}
}

// decodeBase64 accepts padded or unpadded input in either the standard or
// the URL-safe alphabet.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "-_") {
		return base64.RawURLEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
