package methods

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/typedrpc/internal/core/codec"
	"github.com/zeusync/typedrpc/internal/core/schema/registry"
	"github.com/zeusync/typedrpc/internal/core/schema/value"
)

func testTypes(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	require.NoError(t, r.RegisterBatch([]registry.Entry{
		{Name: "u8", Def: registry.Primitive(registry.U8)},
		{Name: "u64", Def: registry.Primitive(registry.U64)},
		{Name: "bool", Def: registry.Primitive(registry.Bool)},
		{Name: "Text", Def: registry.Primitive(registry.Text)},
		{Name: "Ticker", Def: registry.FixedArray("u8", 12)},
		{Name: "IdentityId", Def: registry.FixedArray("u8", 32)},
		{Name: "Option<u64>", Def: registry.Option("u64")},
	}))
	require.NoError(t, r.Freeze())
	return r
}

func getAssetDid() MethodSignature {
	return MethodSignature{
		Name: "asset_getAssetDid",
		Params: []Param{
			{Name: "ticker", Type: "Ticker"},
			{Name: "buffer_time", Type: "u64", Optional: true},
		},
		Return: "IdentityId",
	}
}

func testTable(t *testing.T) *Table {
	t.Helper()
	tbl := NewTable(testTypes(t))
	require.NoError(t, tbl.Register(getAssetDid()))
	return tbl
}

func TestRegisterAndLookup(t *testing.T) {
	tbl := testTable(t)

	sig, err := tbl.Lookup("asset_getAssetDid")
	require.NoError(t, err)
	assert.Equal(t, getAssetDid(), sig)
	assert.Equal(t, 1, sig.Required())
	assert.Equal(t, "asset_getAssetDid(ticker: Ticker, buffer_time?: u64) -> IdentityId", sig.String())

	sig.Params[0].Name = "mutated"
	again, err := tbl.Lookup("asset_getAssetDid")
	require.NoError(t, err)
	assert.Equal(t, "ticker", again.Params[0].Name)

	_, err = tbl.Lookup("asset_missing")
	assert.ErrorIs(t, err, ErrUnknownMethod)

	err = tbl.Register(getAssetDid())
	assert.ErrorIs(t, err, ErrDuplicateMethod)
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, []string{"asset_getAssetDid"}, tbl.Names())
}

func TestRegisterRejectsBadSignatures(t *testing.T) {
	tbl := NewTable(testTypes(t))

	cases := []MethodSignature{
		{Params: nil, Return: "u64"},
		{Name: "x_noReturn"},
		{Name: "x_unknownParam", Params: []Param{{Name: "a", Type: "Nope"}}, Return: "u64"},
		{Name: "x_unknownReturn", Return: "Nope"},
		{Name: "x_dup", Params: []Param{{Name: "a", Type: "u64"}, {Name: "a", Type: "u64"}}, Return: "u64"},
	}
	for _, sig := range cases {
		assert.ErrorIs(t, tbl.Register(sig), ErrInvalidSignature, sig.Name)
	}
	assert.Zero(t, tbl.Len())
}

func TestFrozenTable(t *testing.T) {
	tbl := testTable(t)
	tbl.Freeze()
	assert.True(t, tbl.Frozen())

	err := tbl.Register(MethodSignature{Name: "x_late", Return: "u64"})
	assert.ErrorIs(t, err, ErrTableFrozen)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tbl.Lookup("asset_getAssetDid")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestBindOptionalOmitted(t *testing.T) {
	tbl := testTable(t)
	types := testTypes(t)
	sig := getAssetDid()

	ticker := value.FixedBytes([]byte("ACME\x00\x00\x00\x00\x00\x00\x00\x00"))
	bound, err := tbl.Bind(sig, []Arg{{Name: "ticker", Value: ticker}})
	require.NoError(t, err)
	require.Len(t, bound, 2)

	assert.Equal(t, "ticker", bound[0].Param.Name)
	assert.True(t, bound[0].Value.Equal(ticker))
	assert.Equal(t, registry.KindFixedArray, bound[0].Def.Kind)

	assert.Equal(t, "buffer_time", bound[1].Param.Name)
	assert.Equal(t, registry.KindOption, bound[1].Def.Kind)
	assert.False(t, bound[1].Value.IsSome())

	c := codec.New(types)
	wire, err := c.Encode(bound[1].Def, bound[1].Value)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, wire)
}

func TestBindOptionalSupplied(t *testing.T) {
	tbl := testTable(t)
	sig := getAssetDid()
	ticker := value.FixedBytes(make([]byte, 12))

	bound, err := tbl.Bind(sig, []Arg{
		{Name: "buffer_time", Value: value.Uint(60)},
		{Name: "ticker", Value: ticker},
	})
	require.NoError(t, err)
	assert.True(t, bound[1].Value.Equal(value.Some(value.Uint(60))))

	wire, err := codec.New(testTypes(t)).Encode(bound[1].Def, bound[1].Value)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 60, 0, 0, 0, 0, 0, 0, 0}, wire)

	bound, err = tbl.Bind(sig, []Arg{
		{Name: "ticker", Value: ticker},
		{Name: "buffer_time", Value: value.Some(value.Uint(60))},
	})
	require.NoError(t, err)
	assert.True(t, bound[1].Value.Equal(value.Some(value.Uint(60))))
}

func TestBindErrors(t *testing.T) {
	tbl := testTable(t)
	sig := getAssetDid()
	ticker := value.FixedBytes(make([]byte, 12))

	_, err := tbl.Bind(sig, []Arg{{Name: "buffer_time", Value: value.Uint(1)}})
	require.ErrorIs(t, err, ErrMissingArgument)
	var argErr *ArgumentError
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, "asset_getAssetDid", argErr.Method)
	assert.Equal(t, "ticker", argErr.Param)

	_, err = tbl.Bind(sig, []Arg{{Name: "ticker", Value: ticker}, {Name: "extra", Value: value.Bool(true)}})
	assert.ErrorIs(t, err, ErrUnexpectedArgument)

	_, err = tbl.Bind(sig, []Arg{{Name: "ticker", Value: ticker}, {Name: "ticker", Value: ticker}})
	assert.ErrorIs(t, err, ErrUnexpectedArgument)

	_, err = tbl.Bind(sig, []Arg{{Name: "ticker", Value: value.Text("ACME")}})
	assert.ErrorIs(t, err, ErrArgumentTypeMismatch)
	assert.ErrorIs(t, err, value.ErrShapeMismatch)

	_, err = tbl.Bind(sig, []Arg{{Name: "ticker", Value: value.FixedBytes(make([]byte, 11))}})
	assert.ErrorIs(t, err, ErrArgumentTypeMismatch)

	_, err = tbl.Bind(sig, []Arg{{Name: "ticker", Value: ticker}, {Name: "buffer_time", Value: value.Int(-5)}})
	assert.ErrorIs(t, err, ErrArgumentTypeMismatch)
	assert.ErrorIs(t, err, value.ErrIntegerOverflow)
}

func TestBindNative(t *testing.T) {
	tbl := testTable(t)
	sig := getAssetDid()

	bound, err := tbl.BindNative(sig, map[string]any{"ticker": "ACME"})
	require.NoError(t, err)
	b, ok := bound[0].Value.AsBytes()
	require.True(t, ok)
	assert.Equal(t, []byte("ACME\x00\x00\x00\x00\x00\x00\x00\x00"), b)
	assert.False(t, bound[1].Value.IsSome())

	bound, err = tbl.BindNative(sig, map[string]any{"ticker": "ACME", "buffer_time": nil})
	require.NoError(t, err)
	assert.False(t, bound[1].Value.IsSome())

	_, err = tbl.BindNative(sig, map[string]any{"ticker": "WAY_TOO_LONG_TICKER"})
	assert.ErrorIs(t, err, ErrArgumentTypeMismatch)

	_, err = tbl.BindNative(sig, map[string]any{"buffer_time": 5})
	assert.ErrorIs(t, err, ErrMissingArgument)

	_, err = tbl.BindNative(sig, map[string]any{"ticker": "ACME", "nope": 1})
	assert.ErrorIs(t, err, ErrUnexpectedArgument)
}

func TestBindPositional(t *testing.T) {
	tbl := testTable(t)
	sig := getAssetDid()

	bound, err := tbl.BindPositional(sig, []any{"ACME", 30})
	require.NoError(t, err)
	assert.True(t, bound[1].Value.Equal(value.Some(value.Uint(30))))

	bound, err = tbl.BindPositional(sig, []any{"ACME"})
	require.NoError(t, err)
	assert.False(t, bound[1].Value.IsSome())

	_, err = tbl.BindPositional(sig, []any{"ACME", 1, 2})
	assert.ErrorIs(t, err, ErrUnexpectedArgument)
}

func TestRegisterRacingFreeze(t *testing.T) {
	tbl := NewTable(testTypes(t))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sig := MethodSignature{Name: "x_m" + string(rune('a'+i)), Return: "u64"}
			if err := tbl.Register(sig); err != nil {
				assert.ErrorIs(t, err, ErrTableFrozen)
			}
		}(i)
	}
	tbl.Freeze()
	before := tbl.Len()
	wg.Wait()

	assert.Equal(t, before, tbl.Len())
	for _, name := range tbl.Names() {
		_, err := tbl.Lookup(name)
		assert.NoError(t, err)
	}
}
