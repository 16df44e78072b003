package codec

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// Compact integers prefix every sequence and text. The two low bits of the
// first byte select the width:
//
//	0b00  single byte, value < 2^6
//	0b01  two bytes,   value < 2^14
//	0b10  four bytes,  value < 2^30
//	0b11  big mode: upper six bits hold (n - 4), followed by n value bytes
//
// All multi-byte forms are little-endian.
const (
	compactSingleMax = 1<<6 - 1
	compactTwoMax    = 1<<14 - 1
	compactFourMax   = 1<<30 - 1
)

// CompactSize returns the encoded width of n.
func CompactSize(n uint64) int {
	switch {
	case n <= compactSingleMax:
		return 1
	case n <= compactTwoMax:
		return 2
	case n <= compactFourMax:
		return 4
	default:
		return 1 + bigModeBytes(n)
	}
}

// AppendCompact appends the compact encoding of n to dst.
func AppendCompact(dst []byte, n uint64) []byte {
	switch {
	case n <= compactSingleMax:
		return append(dst, byte(n<<2))
	case n <= compactTwoMax:
		return binary.LittleEndian.AppendUint16(dst, uint16(n<<2)|0b01)
	case n <= compactFourMax:
		return binary.LittleEndian.AppendUint32(dst, uint32(n<<2)|0b10)
	default:
		size := bigModeBytes(n)
		dst = append(dst, byte(size-4)<<2|0b11)
		for i := 0; i < size; i++ {
			dst = append(dst, byte(n>>(8*i)))
		}
		return dst
	}
}

// DecodeCompact reads a compact integer at data[offset:] and returns the
// value and the number of bytes consumed. Non-minimal encodings are
// rejected so that every value has exactly one wire form.
func DecodeCompact(data []byte, offset int) (uint64, int, error) {
	if offset < 0 || offset >= len(data) {
		return 0, 0, ErrTruncatedInput
	}
	rest := data[offset:]
	switch rest[0] & 0b11 {
	case 0b00:
		return uint64(rest[0] >> 2), 1, nil
	case 0b01:
		if len(rest) < 2 {
			return 0, 0, ErrTruncatedInput
		}
		n := uint64(binary.LittleEndian.Uint16(rest) >> 2)
		if n <= compactSingleMax {
			return 0, 0, fmt.Errorf("%w: %d in two-byte form", ErrNonCanonical, n)
		}
		return n, 2, nil
	case 0b10:
		if len(rest) < 4 {
			return 0, 0, ErrTruncatedInput
		}
		n := uint64(binary.LittleEndian.Uint32(rest) >> 2)
		if n <= compactTwoMax {
			return 0, 0, fmt.Errorf("%w: %d in four-byte form", ErrNonCanonical, n)
		}
		return n, 4, nil
	default:
		size := int(rest[0]>>2) + 4
		if size > 8 {
			return 0, 0, fmt.Errorf("%w: %d value bytes", ErrCompactOverflow, size)
		}
		if len(rest) < 1+size {
			return 0, 0, ErrTruncatedInput
		}
		var n uint64
		for i := 0; i < size; i++ {
			n |= uint64(rest[1+i]) << (8 * i)
		}
		if n <= compactFourMax || bigModeBytes(n) != size {
			return 0, 0, fmt.Errorf("%w: %d in %d-byte big form", ErrNonCanonical, n, size)
		}
		return n, 1 + size, nil
	}
}

// bigModeBytes is the minimal byte count for n in big mode, never below 4.
func bigModeBytes(n uint64) int {
	size := (bits.Len64(n) + 7) / 8
	if size < 4 {
		size = 4
	}
	return size
}
