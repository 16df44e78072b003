package codec

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/typedrpc/internal/core/schema/registry"
	"github.com/zeusync/typedrpc/internal/core/schema/value"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	entries := []registry.Entry{
		{Name: "u8", Def: registry.Primitive(registry.U8)},
		{Name: "u16", Def: registry.Primitive(registry.U16)},
		{Name: "u32", Def: registry.Primitive(registry.U32)},
		{Name: "u64", Def: registry.Primitive(registry.U64)},
		{Name: "u128", Def: registry.Primitive(registry.U128)},
		{Name: "i8", Def: registry.Primitive(registry.I8)},
		{Name: "i16", Def: registry.Primitive(registry.I16)},
		{Name: "i32", Def: registry.Primitive(registry.I32)},
		{Name: "i64", Def: registry.Primitive(registry.I64)},
		{Name: "i128", Def: registry.Primitive(registry.I128)},
		{Name: "bool", Def: registry.Primitive(registry.Bool)},
		{Name: "Text", Def: registry.Primitive(registry.Text)},
		{Name: "Balance", Def: registry.Alias("u128")},
		{Name: "Moment", Def: registry.Alias("u64")},
		{Name: "Ticker", Def: registry.FixedArray("u8", 12)},
		{Name: "IdentityId", Def: registry.FixedArray("u8", 32)},
		{Name: "Vec<u8>", Def: registry.Sequence("u8")},
		{Name: "Vec<IdentityId>", Def: registry.Sequence("IdentityId")},
		{Name: "PosRatio", Def: registry.Tuple("u32", "u32")},
		{Name: "Option<u32>", Def: registry.Option("u32")},
		{Name: "Option<Moment>", Def: registry.Option("Moment")},
		{Name: "Transfer", Def: registry.Struct(
			registry.Field{Name: "name", Type: "Text"},
			registry.Field{Name: "amount", Type: "u64"},
		)},
		{Name: "LinkedKeyInfo", Def: registry.Enum(
			registry.Variant{Name: "Unique", Payload: "IdentityId"},
			registry.Variant{Name: "Group", Payload: "Vec<IdentityId>"},
		)},
		{Name: "Permission", Def: registry.UnitEnum("Full", "Admin", "Operator", "SpendFunds")},
		{Name: "TickerRegistration", Def: registry.Struct(
			registry.Field{Name: "owner", Type: "IdentityId"},
			registry.Field{Name: "expiry", Type: "Option<Moment>"},
			registry.Field{Name: "link_id", Type: "u64"},
		)},
		{Name: "(Text, Balance)", Def: registry.Map2("Text", "Balance")},
		{Name: "Balances", Def: registry.Sequence("(Text, Balance)")},
		{Name: "Tree", Def: registry.Struct(
			registry.Field{Name: "label", Type: "Text"},
			registry.Field{Name: "children", Type: "Vec<Tree>"},
		)},
		{Name: "Vec<Tree>", Def: registry.Sequence("Tree")},
		{Name: "Unit", Def: registry.Tuple()},
		{Name: "Flags", Def: registry.FixedArray("bool", 3)},
	}
	require.NoError(t, r.RegisterBatch(entries))
	require.NoError(t, r.Freeze())
	return r
}

func identity(b byte) value.Value {
	id := make([]byte, 32)
	for i := range id {
		id[i] = b
	}
	return value.FixedBytes(id)
}

func roundTripCases() []struct {
	name registry.TypeName
	v    value.Value
} {
	max128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	min128 := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

	return []struct {
		name registry.TypeName
		v    value.Value
	}{
		{"u8", value.Uint(255)},
		{"u16", value.Uint(0xbeef)},
		{"u32", value.Uint(7)},
		{"u64", value.Uint(1<<64 - 1)},
		{"u128", value.BigInt(max128)},
		{"i8", value.Int(-128)},
		{"i16", value.Int(-2)},
		{"i32", value.Int(-123456)},
		{"i64", value.Int(-1 << 63)},
		{"i128", value.BigInt(min128)},
		{"i128", value.Int(-1)},
		{"bool", value.Bool(true)},
		{"Text", value.Text("")},
		{"Text", value.Text("héllo wörld")},
		{"Balance", value.Uint(1_000_000)},
		{"Ticker", value.FixedBytes([]byte("ACME\x00\x00\x00\x00\x00\x00\x00\x00"))},
		{"Vec<u8>", value.Bytes(nil)},
		{"Vec<u8>", value.Bytes(make([]byte, 300))},
		{"PosRatio", value.Tuple(value.Uint(1), value.Uint(3))},
		{"Option<u32>", value.None()},
		{"Option<u32>", value.Some(value.Uint(7))},
		{"Transfer", value.Record(
			value.Field{Name: "name", Value: value.Text("Alice")},
			value.Field{Name: "amount", Value: value.Uint(100)},
		)},
		{"LinkedKeyInfo", value.EnumWith(0, "Unique", identity(1))},
		{"LinkedKeyInfo", value.EnumWith(1, "Group", value.Sequence(identity(2), identity(3)))},
		{"Permission", value.Enum(3, "SpendFunds")},
		{"TickerRegistration", value.Record(
			value.Field{Name: "owner", Value: identity(9)},
			value.Field{Name: "expiry", Value: value.Some(value.Uint(1_700_000_000))},
			value.Field{Name: "link_id", Value: value.Uint(42)},
		)},
		{"Balances", value.Sequence(
			value.Tuple(value.Text("alice"), value.Uint(1)),
			value.Tuple(value.Text("bob"), value.Uint(2)),
		)},
		{"Tree", value.Record(
			value.Field{Name: "label", Value: value.Text("root")},
			value.Field{Name: "children", Value: value.Sequence(
				value.Record(
					value.Field{Name: "label", Value: value.Text("leaf")},
					value.Field{Name: "children", Value: value.Sequence()},
				),
			)},
		)},
		{"Unit", value.Tuple()},
		{"Flags", value.Array(value.Bool(true), value.Bool(false), value.Bool(true))},
	}
}

func TestRoundTrip(t *testing.T) {
	r := testRegistry(t)
	c := New(r)

	for i, tc := range roundTripCases() {
		t.Run(fmt.Sprintf("%d_%s", i, tc.name), func(t *testing.T) {
			wire, err := c.EncodeNamed(tc.name, tc.v)
			require.NoError(t, err)

			got, n, err := c.DecodeNamed(tc.name, wire, 0)
			require.NoError(t, err)
			assert.Equal(t, len(wire), n)
			assert.True(t, tc.v.Equal(got), "want %s, got %s", tc.v, got)

			def, err := r.Resolve(tc.name)
			require.NoError(t, err)
			viaDef, err := c.Encode(def, tc.v)
			require.NoError(t, err)
			assert.Equal(t, wire, viaDef)
		})
	}
}

func TestTruncationAlwaysFails(t *testing.T) {
	r := testRegistry(t)
	c := New(r)

	for _, tc := range roundTripCases() {
		wire, err := c.EncodeNamed(tc.name, tc.v)
		require.NoError(t, err)
		for cut := 0; cut < len(wire); cut++ {
			_, _, err = c.DecodeNamed(tc.name, wire[:cut], 0)
			assert.ErrorIs(t, err, ErrTruncatedInput, "%s cut at %d of %d", tc.name, cut, len(wire))
		}
	}
}

func TestDecodeAtOffset(t *testing.T) {
	c := New(testRegistry(t))
	wire, err := c.EncodeNamed("u32", value.Uint(7))
	require.NoError(t, err)

	data := append([]byte{0xde, 0xad}, wire...)
	v, n, err := c.DecodeNamed("u32", data, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.True(t, v.Equal(value.Uint(7)))

	_, _, err = c.DecodeNamed("u32", data, len(data)+1)
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestStructScenario(t *testing.T) {
	c := New(testRegistry(t))
	v := value.Record(
		value.Field{Name: "name", Value: value.Text("Alice")},
		value.Field{Name: "amount", Value: value.Uint(100)},
	)

	wire, err := c.EncodeNamed("Transfer", v)
	require.NoError(t, err)

	want := append([]byte{5 << 2}, "Alice"...)
	want = append(want, 100, 0, 0, 0, 0, 0, 0, 0)
	assert.Equal(t, want, wire)

	got, err := c.DecodeAllNamed("Transfer", wire)
	require.NoError(t, err)
	assert.True(t, v.Equal(got))
}

func TestOptionScenario(t *testing.T) {
	c := New(testRegistry(t))

	wire, err := c.EncodeNamed("Option<u32>", value.Some(value.Uint(7)))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 7, 0, 0, 0}, wire)

	wire, err = c.EncodeNamed("Option<u32>", value.None())
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, wire)
}

func TestSignedIntegersWireForm(t *testing.T) {
	c := New(testRegistry(t))

	wire, err := c.EncodeNamed("i16", value.Int(-2))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfe, 0xff}, wire)

	wire, err = c.EncodeNamed("i128", value.Int(-1))
	require.NoError(t, err)
	assert.Len(t, wire, 16)
	for _, b := range wire {
		assert.Equal(t, byte(0xff), b)
	}
}

func TestEnumDiscriminantBound(t *testing.T) {
	c := New(testRegistry(t))

	_, _, err := c.DecodeNamed("Permission", []byte{4}, 0)
	assert.ErrorIs(t, err, ErrUnknownVariant)

	_, _, err = c.DecodeNamed("LinkedKeyInfo", []byte{2}, 0)
	assert.ErrorIs(t, err, ErrUnknownVariant)

	_, err = c.EncodeNamed("Permission", value.Enum(4, ""))
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestLargeEnumUsesCompactDiscriminant(t *testing.T) {
	r := registry.New()
	names := make([]string, 300)
	for i := range names {
		names[i] = fmt.Sprintf("V%d", i)
	}
	require.NoError(t, r.Register("Big", registry.UnitEnum(names...)))
	c := New(r)

	wire, err := c.EncodeNamed("Big", value.Enum(299, ""))
	require.NoError(t, err)
	assert.Equal(t, AppendCompact(nil, 299), wire)

	got, err := c.DecodeAllNamed("Big", wire)
	require.NoError(t, err)
	idx, name := got.Variant()
	assert.Equal(t, 299, idx)
	assert.Equal(t, "V299", name)

	_, _, err = c.DecodeNamed("Big", AppendCompact(nil, 300), 0)
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestWireErrors(t *testing.T) {
	c := New(testRegistry(t))

	_, _, err := c.DecodeNamed("bool", []byte{2}, 0)
	assert.ErrorIs(t, err, ErrInvalidBoolean)

	_, _, err = c.DecodeNamed("Option<u32>", []byte{2, 0, 0, 0, 0}, 0)
	assert.ErrorIs(t, err, ErrInvalidOptionTag)

	_, _, err = c.DecodeNamed("Text", []byte{2 << 2, 0xc3, 0x28}, 0)
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	_, err = c.DecodeAllNamed("u8", []byte{1, 2})
	assert.ErrorIs(t, err, ErrTrailingBytes)
}

func TestErrorCarriesLocation(t *testing.T) {
	c := New(testRegistry(t))

	// owner (32 bytes) then an option tag of 7
	wire := append(make([]byte, 32), 7)
	_, _, err := c.DecodeNamed("TickerRegistration", wire, 0)
	require.ErrorIs(t, err, ErrInvalidOptionTag)

	var codecErr *Error
	require.True(t, errors.As(err, &codecErr))
	assert.Equal(t, OpDecode, codecErr.Op)
	assert.Equal(t, 32, codecErr.Offset)
	assert.Equal(t, "TickerRegistration.expiry", codecErr.Path)
	assert.Equal(t, registry.KindOption, codecErr.Constructor)
}

func TestEncodeShapeErrors(t *testing.T) {
	c := New(testRegistry(t))

	_, err := c.EncodeNamed("Ticker", value.FixedBytes([]byte("short")))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = c.EncodeNamed("Ticker", value.Bytes(make([]byte, 12)))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = c.EncodeNamed("u8", value.Uint(256))
	assert.ErrorIs(t, err, ErrIntegerOverflow)

	_, err = c.EncodeNamed("u32", value.Int(-1))
	assert.ErrorIs(t, err, ErrIntegerOverflow)

	_, err = c.EncodeNamed("Transfer", value.Record(
		value.Field{Name: "amount", Value: value.Uint(1)},
		value.Field{Name: "name", Value: value.Text("x")},
	))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = c.EncodeNamed("LinkedKeyInfo", value.Enum(0, "Unique"))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = c.EncodeNamed("Text", value.Text("\xff"))
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	var codecErr *Error
	_, err = c.EncodeNamed("TickerRegistration", value.Record(
		value.Field{Name: "owner", Value: identity(1)},
		value.Field{Name: "expiry", Value: value.Uint(3)},
		value.Field{Name: "link_id", Value: value.Uint(1)},
	))
	require.True(t, errors.As(err, &codecErr))
	assert.Equal(t, "TickerRegistration.expiry", codecErr.Path)
	assert.Equal(t, OpEncode, codecErr.Op)
	assert.Equal(t, 32, codecErr.Offset)
}

func TestDecodeLimits(t *testing.T) {
	r := testRegistry(t)

	c := New(r, WithMaxSequenceLength(4))
	wire := AppendCompact(nil, 5)
	wire = append(wire, 1, 2, 3, 4, 5)
	_, _, err := c.DecodeNamed("Vec<u8>", wire, 0)
	assert.ErrorIs(t, err, ErrSequenceTooLong)

	deep := value.Record(
		value.Field{Name: "label", Value: value.Text("leaf")},
		value.Field{Name: "children", Value: value.Sequence()},
	)
	for i := 0; i < 5; i++ {
		deep = value.Record(
			value.Field{Name: "label", Value: value.Text("n")},
			value.Field{Name: "children", Value: value.Sequence(deep)},
		)
	}
	wire, err = New(r).EncodeNamed("Tree", deep)
	require.NoError(t, err)

	_, _, err = New(r, WithMaxDepth(4)).DecodeNamed("Tree", wire, 0)
	assert.ErrorIs(t, err, ErrDepthExceeded)

	_, err = New(r, WithMaxDepth(4)).EncodeNamed("Tree", deep)
	assert.ErrorIs(t, err, ErrDepthExceeded)
}

func TestHugeLengthPrefixDoesNotAllocate(t *testing.T) {
	c := New(testRegistry(t))
	wire := AppendCompact(nil, 1<<20)
	_, _, err := c.DecodeNamed("Vec<IdentityId>", wire, 0)
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestConcurrentUse(t *testing.T) {
	c := New(testRegistry(t))
	cases := roundTripCases()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, tc := range cases {
				wire, err := c.EncodeNamed(tc.name, tc.v)
				if !assert.NoError(t, err) {
					return
				}
				got, err := c.DecodeAllNamed(tc.name, wire)
				if !assert.NoError(t, err) {
					return
				}
				assert.True(t, tc.v.Equal(got))
			}
		}()
	}
	wg.Wait()
}

func TestZeroWidthElementsAreBudgeted(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.RegisterBatch([]registry.Entry{
		{Name: "()", Def: registry.Tuple()},
		{Name: "Vec<()>", Def: registry.Sequence("()")},
		{Name: "Vec<Vec<()>>", Def: registry.Sequence("Vec<()>")},
		{Name: "Empty", Def: registry.Struct()},
		{Name: "[Empty; 4]", Def: registry.FixedArray("Empty", 4)},
	}))
	require.NoError(t, r.Freeze())

	c := New(r)
	_, _, err := c.DecodeNamed("Vec<()>", AppendCompact(nil, 1<<20), 0)
	assert.ErrorIs(t, err, ErrSequenceTooLong)

	_, _, err = c.DecodeNamed("Vec<()>", AppendCompact(nil, 1<<24), 0)
	assert.ErrorIs(t, err, ErrSequenceTooLong)

	got, err := c.DecodeAllNamed("Vec<()>", AppendCompact(nil, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())

	small := New(r, WithMaxEmptyItems(10))
	var wire []byte
	wire = AppendCompact(wire, 3)
	for i := 0; i < 3; i++ {
		wire = AppendCompact(wire, 4)
	}
	_, _, err = small.DecodeNamed("Vec<Vec<()>>", wire, 0)
	assert.ErrorIs(t, err, ErrSequenceTooLong)

	got, err = small.DecodeAllNamed("[Empty; 4]", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Len())
}

func TestLengthPrefixCheckedAgainstInput(t *testing.T) {
	c := New(testRegistry(t))

	wire := AppendCompact(nil, 3)
	wire = append(wire, make([]byte, 64)...)
	_, _, err := c.DecodeNamed("Vec<IdentityId>", wire, 0)
	require.ErrorIs(t, err, ErrTruncatedInput)

	var codecErr *Error
	require.True(t, errors.As(err, &codecErr))
	assert.Equal(t, 1, codecErr.Offset)
	assert.Equal(t, registry.KindSequence, codecErr.Constructor)
}

func TestErrorPathForItemsAndMembers(t *testing.T) {
	c := New(testRegistry(t))

	_, _, err := c.DecodeNamed("Flags", []byte{1, 0, 2}, 0)
	require.ErrorIs(t, err, ErrInvalidBoolean)
	var codecErr *Error
	require.True(t, errors.As(err, &codecErr))
	assert.Equal(t, "Flags[2]", codecErr.Path)

	wire := AppendCompact(nil, 1)
	wire = append(wire, 1<<2, 'a')
	wire = append(wire, make([]byte, 15)...)
	wire = append(wire, 0xff)
	_, err = c.DecodeAllNamed("Balances", wire[:len(wire)-1])
	require.ErrorIs(t, err, ErrTruncatedInput)
	require.True(t, errors.As(err, &codecErr))
	assert.Equal(t, "Balances[0].1", codecErr.Path)
}
