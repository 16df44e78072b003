package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexRoundTrip(t *testing.T) {
	in := []byte{0x01, 0x07, 0x00, 0xff}
	s := HexEncode(in)
	assert.Equal(t, "0x010700ff", s)

	out, err := HexDecode(s)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	empty, err := HexDecode(HexEncode(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHexDecodeOddAndUpper(t *testing.T) {
	out, err := HexDecode("0XABC")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0xbc}, out)
}

func TestHexDecodeRejects(t *testing.T) {
	_, err := HexDecode("abcd")
	assert.ErrorIs(t, err, ErrNotHex)

	_, err = HexDecode("0xzz")
	assert.ErrorIs(t, err, ErrNotHex)
}
