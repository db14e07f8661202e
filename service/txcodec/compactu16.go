package txcodec

import (
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
)

// MaxCompactU16Bytes is the longest encoding of a 16-bit value.
const MaxCompactU16Bytes = 3

// EncodeCompactU16 encodes value as a compact-u16.
//
// Structure of the result
// byte 1:  ext | B06 | B05 | B04 | B03 | B02 | B01 | B00
// byte 2:  ext | B13 | B12 | B11 | B10 | B09 | B08 | B07
// byte 3:    0 |   0 |   0 |   0 |   0 |   0 | B15 | B14
func EncodeCompactU16(value uint16) []byte {
	return AppendCompactU16(make([]byte, 0, MaxCompactU16Bytes), value)
}

// AppendCompactU16 appends the compact-u16 encoding of value to dst.
func AppendCompactU16(dst []byte, value uint16) []byte {
	// only lengths outside 0..65535 are rejected
	_ = bin.EncodeCompactU16Length(&dst, int(value))
	return dst
}

// DecodeCompactU16 reads a compact-u16 starting at buf[offset].
// It returns the value and the number of bytes consumed.
// Non-canonical encodings, such as a redundant zero continuation byte or a
// third byte above 0x03, are rejected so that re-encoding is byte-exact.
func DecodeCompactU16(buf []byte, offset int) (uint16, int, error) {
	if offset < 0 || offset > len(buf) {
		return 0, 0, fmt.Errorf("%w: offset %d outside buffer of %d bytes", ErrMalformedVarint, offset, len(buf))
	}
	value, n, err := bin.DecodeCompactU16(buf[offset:])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrMalformedVarint, err)
	}
	if value < 0 || value > math.MaxUint16 {
		return 0, 0, fmt.Errorf("%w: value %d exceeds 16 bits", ErrMalformedVarint, value)
	}
	return uint16(value), n, nil
}
