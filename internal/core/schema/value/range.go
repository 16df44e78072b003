package value

import (
	"math/big"

	"github.com/zeusync/typedrpc/internal/core/schema/registry"
)

// InRange reports whether n is representable by the integer kind k.
func InRange(k registry.PrimitiveKind, n *big.Int) bool {
	bits := k.Size() * 8
	if !k.IsInteger() || n == nil {
		return false
	}
	if !k.Signed() {
		return n.Sign() >= 0 && n.BitLen() <= bits
	}
	// -2^(bits-1) <= n <= 2^(bits-1)-1
	if n.Sign() >= 0 {
		return n.BitLen() < bits
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	return new(big.Int).Neg(n).Cmp(limit) <= 0
}
