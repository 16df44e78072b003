package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	r := nativeRegistry(t)

	dividend := Record(
		Field{Name: "amount", Value: Uint(10)},
		Field{Name: "active", Value: Bool(true)},
		Field{Name: "expires_at", Value: Some(Uint(5))},
	)
	require.NoError(t, Check(r, "Dividend", dividend))
	require.NoError(t, Check(r, "AssetType", EnumWith(1, "Custom", Bytes([]byte("x")))))
	require.NoError(t, Check(r, "Balances", Sequence(Tuple(Text("a"), Uint(1)))))
	require.NoError(t, Check(r, "Ticker", FixedBytes(make([]byte, 12))))

	err := Check(r, "Dividend", Record(
		Field{Name: "amount", Value: Uint(10)},
		Field{Name: "active", Value: Uint(1)},
		Field{Name: "expires_at", Value: None()},
	))
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.Contains(t, err.Error(), "Dividend.active")

	err = Check(r, "Dividend", Record(
		Field{Name: "amount", Value: Uint(10)},
		Field{Name: "active", Value: Bool(true)},
		Field{Name: "expires_at", Value: Some(Int(-1))},
	))
	assert.ErrorIs(t, err, ErrIntegerOverflow)

	assert.ErrorIs(t, Check(r, "Permission", Enum(3, "")), ErrUnknownVariant)
	assert.ErrorIs(t, Check(r, "AssetType", Enum(1, "Custom")), ErrShapeMismatch)
	assert.ErrorIs(t, Check(r, "Ticker", FixedBytes(make([]byte, 11))), ErrShapeMismatch)
	assert.ErrorIs(t, Check(r, "Ticker", Bytes(make([]byte, 12))), ErrShapeMismatch)
	assert.ErrorIs(t, Check(r, "PosRatio", Tuple(Uint(1))), ErrShapeMismatch)
	assert.ErrorIs(t, Check(r, "Text", Text("\xff")), ErrShapeMismatch)
	assert.ErrorIs(t, Check(r, "Option<u64>", Uint(1)), ErrShapeMismatch)
}
