package txcodec

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBuffer is returned when Deserialize is given zero bytes.
	ErrEmptyBuffer = errors.New("transaction buffer is empty")

	// ErrTruncatedBuffer is returned when a field read runs past the end of the buffer.
	ErrTruncatedBuffer = errors.New("transaction buffer is truncated")

	// ErrMalformedVarint is returned when a compact-u16 is unterminated, longer
	// than 3 bytes or not minimally encoded.
	ErrMalformedVarint = errors.New("malformed compact-u16")

	// ErrUnrecognizedEncoding is returned when input text is neither Base58 nor Base64.
	ErrUnrecognizedEncoding = errors.New("input is neither valid base58 nor base64")

	// ErrFieldOverflow is returned by Serialize when a length or version cannot be encoded.
	ErrFieldOverflow = errors.New("field does not fit wire format")
)

// FieldError records which field failed to decode and where.
type FieldError struct {
	Field  string
	Offset int
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
