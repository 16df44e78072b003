// Package encoding holds the 0x-prefixed hex helpers used wherever encoded
// bytes cross a text boundary: JSON-RPC params, CLI input and output.
package encoding

import (
	"encoding/hex"
	"errors"
	"strings"
)

var ErrNotHex = errors.New("not a 0x-prefixed hex string")

// HexEncode renders b as a lower-case 0x-prefixed string. Empty input
// yields "0x".
func HexEncode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// HasHexPrefix reports whether s starts with 0x or 0X.
func HasHexPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// HexDecode parses a 0x-prefixed string. An odd number of digits is
// accepted and treated as having a leading zero nibble.
func HexDecode(s string) ([]byte, error) {
	if !HasHexPrefix(s) {
		return nil, ErrNotHex
	}
	digits := s[2:]
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	out, err := hex.DecodeString(strings.ToLower(digits))
	if err != nil {
		return nil, errors.Join(ErrNotHex, err)
	}
	return out, nil
}
