package txcodec

import (
	"encoding/base64"
	"math/rand"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectEncoding_RandomSignatures(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		raw := make([]byte, 64)
		rng.Read(raw)

		assert.Equal(t, EncodingBase58, DetectEncoding(base58.Encode(raw)))

		// 64 bytes always pad with "==", which is outside the base58 alphabet
		b64 := base64.StdEncoding.EncodeToString(raw)
		require.True(t, strings.HasSuffix(b64, "=="))
		assert.Equal(t, EncodingBase64, DetectEncoding(b64))
	}
}

func TestDetectEncoding_AmbiguousPrefersBase58(t *testing.T) {
	// valid in both alphabets
	assert.Equal(t, EncodingBase58, DetectEncoding("abcd"))
}

func TestIsBase58(t *testing.T) {
	assert.True(t, IsBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"))
	assert.False(t, IsBase58(""))
	assert.False(t, IsBase58("0OIl"))
	assert.False(t, IsBase58("ab+/"))
}

func TestDecodeString(t *testing.T) {
	raw := []byte{0x01, 0xff, 0xfe, 0x00, 0x10}

	got, enc, err := DecodeString(base58.Encode(raw))
	require.NoError(t, err)
	assert.Equal(t, EncodingBase58, enc)
	assert.Equal(t, raw, got)

	got, enc, err = DecodeString("  " + base64.StdEncoding.EncodeToString(raw) + "\n")
	require.NoError(t, err)
	assert.Equal(t, EncodingBase64, enc)
	assert.Equal(t, raw, got)
}

func TestDecodeString_Base64Variants(t *testing.T) {
	// 0xfb 0xff forces '+' and '/' in the standard alphabet
	raw := []byte{0xfb, 0xff, 0xbf, 0x01, 0x02, 0x03, 0x04}

	tests := []struct {
		name  string
		input string
	}{
		{"padded", base64.StdEncoding.EncodeToString(raw)},
		{"unpadded", base64.RawStdEncoding.EncodeToString(raw)},
		{"url safe padded", base64.URLEncoding.EncodeToString(raw)},
		{"url safe unpadded", base64.RawURLEncoding.EncodeToString(raw)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, enc, err := DecodeString(tt.input)
			require.NoError(t, err)
			assert.Equal(t, EncodingBase64, enc)
			assert.Equal(t, raw, got)
		})
	}
}

func TestDecodeString_UnpaddedTransaction(t *testing.T) {
	b, err := Serialize(versionedFixture())
	require.NoError(t, err)

	got, _, err := DecodeString(base64.RawStdEncoding.EncodeToString(b))
	require.NoError(t, err)
	assert.Equal(t, b, got)

	got, _, err = DecodeString(base64.URLEncoding.EncodeToString(b))
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestDecodeString_Unrecognized(t *testing.T) {
	_, enc, err := DecodeString("not base anything!")
	assert.ErrorIs(t, err, ErrUnrecognizedEncoding)
	assert.Equal(t, EncodingBase64, enc)
}

func TestDecodeString_Empty(t *testing.T) {
	got, _, err := DecodeString("")
	require.NoError(t, err)
	assert.Empty(t, got)
}
