package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/typedrpc/internal/core/codec"
	"github.com/zeusync/typedrpc/internal/core/observability/log"
	"github.com/zeusync/typedrpc/internal/core/protocol"
	"github.com/zeusync/typedrpc/internal/core/rpc/methods"
	"github.com/zeusync/typedrpc/internal/core/schema/registry"
	"github.com/zeusync/typedrpc/internal/core/schema/value"
)

type fixture struct {
	types *registry.Registry
	table *methods.Table
	mem   *protocol.MemTransport
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	types := registry.New()
	require.NoError(t, types.RegisterBatch([]registry.Entry{
		{Name: "u8", Def: registry.Primitive(registry.U8)},
		{Name: "u64", Def: registry.Primitive(registry.U64)},
		{Name: "Text", Def: registry.Primitive(registry.Text)},
		{Name: "Ticker", Def: registry.FixedArray("u8", 12)},
		{Name: "IdentityId", Def: registry.FixedArray("u8", 32)},
	}))
	require.NoError(t, types.Freeze())

	table := methods.NewTable(types)
	require.NoError(t, table.Register(methods.MethodSignature{
		Name: "asset_getAssetDid",
		Params: []methods.Param{
			{Name: "ticker", Type: "Ticker"},
			{Name: "buffer_time", Type: "u64", Optional: true},
		},
		Return: "IdentityId",
	}))
	require.NoError(t, table.Register(methods.MethodSignature{
		Name:   "system_name",
		Return: "Text",
	}))
	table.Freeze()

	return fixture{types: types, table: table, mem: protocol.NewMemTransport(nil)}
}

func (f fixture) dispatcher(opts ...Option) *Dispatcher {
	return New(f.types, f.table, f.mem, opts...)
}

func ticker(s string) value.Value {
	b := make([]byte, 12)
	copy(b, s)
	return value.FixedBytes(b)
}

func TestInvokeScenario(t *testing.T) {
	f := newFixture(t)
	did := bytes.Repeat([]byte{0xab}, 32)

	var gotArgs [][]byte
	f.mem.Handle("asset_getAssetDid", func(_ context.Context, _ string, args [][]byte) ([]byte, error) {
		gotArgs = args
		return did, nil
	})

	result, err := f.dispatcher().Invoke(context.Background(), "asset_getAssetDid", []methods.Arg{
		{Name: "ticker", Value: ticker("ACME")},
	})
	require.NoError(t, err)

	require.Len(t, gotArgs, 2)
	assert.Equal(t, []byte("ACME\x00\x00\x00\x00\x00\x00\x00\x00"), gotArgs[0])
	assert.Equal(t, []byte{0}, gotArgs[1], "omitted optional parameter is an absent option")

	b, ok := result.AsBytes()
	require.True(t, ok)
	assert.Equal(t, did, b)
}

func TestInvokeNativeAndPositional(t *testing.T) {
	f := newFixture(t)
	var gotArgs [][]byte
	f.mem.Handle("asset_getAssetDid", func(_ context.Context, _ string, args [][]byte) ([]byte, error) {
		gotArgs = args
		return make([]byte, 32), nil
	})
	d := f.dispatcher()

	_, err := d.InvokeNative(context.Background(), "asset_getAssetDid", map[string]any{"ticker": "ACME", "buffer_time": 7})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 7, 0, 0, 0, 0, 0, 0, 0}, gotArgs[1])

	_, err = d.InvokePositional(context.Background(), "asset_getAssetDid", []any{"ACME"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, gotArgs[1])
}

func TestBindingFailuresNeverReachTransport(t *testing.T) {
	f := newFixture(t)
	d := f.dispatcher()
	ctx := context.Background()

	_, err := d.Invoke(ctx, "asset_getAssetDid", []methods.Arg{{Name: "buffer_time", Value: value.Uint(1)}})
	assert.ErrorIs(t, err, methods.ErrMissingArgument)

	_, err = d.Invoke(ctx, "asset_nope", nil)
	assert.ErrorIs(t, err, methods.ErrUnknownMethod)

	_, err = d.Invoke(ctx, "asset_getAssetDid", []methods.Arg{{Name: "ticker", Value: value.Uint(1)}})
	assert.ErrorIs(t, err, methods.ErrArgumentTypeMismatch)

	assert.Zero(t, f.mem.Calls())
}

func TestTransportFailure(t *testing.T) {
	f := newFixture(t)
	cause := errors.New("connection reset")
	f.mem.Handle("system_name", func(context.Context, string, [][]byte) ([]byte, error) {
		return nil, cause
	})

	_, err := f.dispatcher().Invoke(context.Background(), "system_name", nil)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrCanceled)
	assert.Equal(t, protocol.CategoryTransport, protocol.CategoryOf(err))

	_, err = f.dispatcher().Invoke(context.Background(), "asset_getAssetDid", []methods.Arg{{Name: "ticker", Value: ticker("X")}})
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, protocol.ErrMethodNotFound)
	assert.ErrorIs(t, err, protocol.ErrRemote)
	assert.Equal(t, protocol.ErrorCodeRemoteError, protocol.CodeOf(err))
}

func TestCancellation(t *testing.T) {
	f := newFixture(t)
	f.mem.Handle("system_name", func(ctx context.Context, _ string, _ [][]byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	d := f.dispatcher()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.Invoke(ctx, "system_name", nil)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.Equal(t, protocol.CategoryCanceled, protocol.CategoryOf(err))

	calls := f.mem.Calls()
	done, stop := context.WithCancel(context.Background())
	stop()
	_, err = d.Invoke(done, "system_name", nil)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.Equal(t, calls, f.mem.Calls(), "a dead context never reaches the transport")
}

func TestUndecodableReply(t *testing.T) {
	f := newFixture(t)
	f.mem.Handle("system_name", func(context.Context, string, [][]byte) ([]byte, error) {
		return []byte{5 << 2, 'a', 'b'}, nil
	})
	f.mem.Handle("asset_getAssetDid", func(context.Context, string, [][]byte) ([]byte, error) {
		return make([]byte, 33), nil
	})
	d := f.dispatcher()

	_, err := d.Invoke(context.Background(), "system_name", nil)
	assert.ErrorIs(t, err, codec.ErrTruncatedInput)

	_, err = d.Invoke(context.Background(), "asset_getAssetDid", []methods.Arg{{Name: "ticker", Value: ticker("A")}})
	assert.ErrorIs(t, err, codec.ErrTrailingBytes)
	assert.Equal(t, protocol.CategoryWire, protocol.CategoryOf(err))
}

func TestInvokeLogs(t *testing.T) {
	f := newFixture(t)
	f.mem.Handle("system_name", func(context.Context, string, [][]byte) ([]byte, error) {
		return append([]byte{4 << 2}, "node"...), nil
	})
	core, logs := observer.New(zap.DebugLevel)
	d := f.dispatcher(WithLogger(log.NewWithCore(core, log.LevelDebug)))

	result, err := d.Invoke(context.Background(), "system_name", nil)
	require.NoError(t, err)
	s, _ := result.AsText()
	assert.Equal(t, "node", s)

	entries := logs.FilterMessage("Call completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "system_name", fields["method"])
	assert.Equal(t, "dispatcher", fields["component"])
	assert.Equal(t, fmt.Sprintf("%016x", f.types.Fingerprint()), fields["schema"])
}

func TestConcurrentInvokes(t *testing.T) {
	f := newFixture(t)
	f.mem.Handle("asset_getAssetDid", func(_ context.Context, _ string, args [][]byte) ([]byte, error) {
		out := make([]byte, 32)
		copy(out, args[0])
		return out, nil
	})
	d := f.dispatcher()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("T%02d", i)
			result, err := d.Invoke(context.Background(), "asset_getAssetDid", []methods.Arg{{Name: "ticker", Value: ticker(name)}})
			if !assert.NoError(t, err) {
				return
			}
			b, _ := result.AsBytes()
			assert.Equal(t, name, string(b[:3]))
		}(i)
	}
	wg.Wait()
}
