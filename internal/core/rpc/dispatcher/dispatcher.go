// Package dispatcher performs a remote call end to end: bind the
// arguments, encode them, hand them to the transport and decode the reply.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/typedrpc/internal/core/codec"
	"github.com/zeusync/typedrpc/internal/core/observability/log"
	"github.com/zeusync/typedrpc/internal/core/protocol"
	"github.com/zeusync/typedrpc/internal/core/rpc/methods"
	"github.com/zeusync/typedrpc/internal/core/schema/registry"
	"github.com/zeusync/typedrpc/internal/core/schema/value"
)

var (
	// ErrTransport wraps every failure reported by the transport.
	ErrTransport = protocol.ErrTransport
	// ErrCanceled marks a call abandoned because its context ended. It is
	// never retried.
	ErrCanceled = protocol.ErrCanceled
)

// Schema is the frozen type registry the dispatcher encodes against.
type Schema interface {
	Resolve(name registry.TypeName) (registry.TypeDef, error)
	Fingerprint() uint64
}

// Dispatcher is stateless between calls and safe for concurrent use.
type Dispatcher struct {
	schema    Schema
	methods   *methods.Table
	codec     *codec.Codec
	transport protocol.Transport
	logger    log.Log
}

type Option func(*Dispatcher)

func WithLogger(logger log.Log) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithCodec replaces the default codec, e.g. to change decode limits.
func WithCodec(c *codec.Codec) Option {
	return func(d *Dispatcher) {
		d.codec = c
	}
}

func New(schema Schema, table *methods.Table, transport protocol.Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		schema:    schema,
		methods:   table,
		transport: transport,
		logger:    log.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.codec == nil {
		d.codec = codec.New(schema)
	}
	d.logger = d.logger.With(
		log.Component("dispatcher"),
		log.Hex64("schema", d.schema.Fingerprint()),
	)
	return d
}

// Invoke calls method with named arguments and returns the decoded reply.
func (d *Dispatcher) Invoke(ctx context.Context, method string, args []methods.Arg) (value.Value, error) {
	sig, err := d.methods.Lookup(method)
	if err != nil {
		return value.Value{}, err
	}
	bound, err := d.methods.Bind(sig, args)
	if err != nil {
		return value.Value{}, err
	}
	return d.invoke(ctx, sig, bound)
}

// InvokeNative is Invoke with plain Go arguments keyed by parameter name.
func (d *Dispatcher) InvokeNative(ctx context.Context, method string, args map[string]any) (value.Value, error) {
	sig, err := d.methods.Lookup(method)
	if err != nil {
		return value.Value{}, err
	}
	bound, err := d.methods.BindNative(sig, args)
	if err != nil {
		return value.Value{}, err
	}
	return d.invoke(ctx, sig, bound)
}

// InvokePositional is Invoke with plain Go arguments in declared order.
func (d *Dispatcher) InvokePositional(ctx context.Context, method string, args []any) (value.Value, error) {
	sig, err := d.methods.Lookup(method)
	if err != nil {
		return value.Value{}, err
	}
	bound, err := d.methods.BindPositional(sig, args)
	if err != nil {
		return value.Value{}, err
	}
	return d.invoke(ctx, sig, bound)
}

// Encode produces one wire buffer per bound argument, in declared order.
func (d *Dispatcher) Encode(sig methods.MethodSignature, bound []methods.Bound) ([][]byte, error) {
	encoded := make([][]byte, len(bound))
	for i, b := range bound {
		wire, err := d.codec.Encode(b.Def, b.Value)
		if err != nil {
			return nil, &methods.ArgumentError{Method: sig.Name, Param: b.Param.Name, Err: err}
		}
		encoded[i] = wire
	}
	return encoded, nil
}

func (d *Dispatcher) invoke(ctx context.Context, sig methods.MethodSignature, bound []methods.Bound) (value.Value, error) {
	logger := d.logger.WithContext(ctx)

	if err := ctx.Err(); err != nil {
		return value.Value{}, fmt.Errorf("%w: %s: %w", ErrCanceled, sig.Name, err)
	}

	encoded, err := d.Encode(sig, bound)
	if err != nil {
		return value.Value{}, err
	}
	size := 0
	for _, e := range encoded {
		size += len(e)
	}

	started := time.Now()
	reply, err := d.transport.Send(ctx, sig.Name, encoded)
	elapsed := time.Since(started)
	if err != nil {
		err = d.transportError(ctx, sig.Name, err)
		logger.Warn("Call failed",
			log.String("method", sig.Name),
			log.Duration("duration", elapsed),
			log.Error(err))
		return value.Value{}, err
	}

	result, err := d.codec.DecodeAllNamed(sig.Return, reply)
	if err != nil {
		logger.Warn("Undecodable reply",
			log.String("method", sig.Name),
			log.String("return", string(sig.Return)),
			log.Int("reply_bytes", len(reply)),
			log.Error(err))
		return value.Value{}, err
	}

	logger.Debug("Call completed",
		log.String("method", sig.Name),
		log.Int("args", len(encoded)),
		log.Int("request_bytes", size),
		log.Int("reply_bytes", len(reply)),
		log.Duration("duration", elapsed))
	return result, nil
}

func (d *Dispatcher) transportError(ctx context.Context, method string, err error) error {
	if errors.Is(err, ErrCanceled) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrCanceled, method, err)
	}
	if errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrTransport, method, err)
}

// Methods exposes the method table the dispatcher binds against.
func (d *Dispatcher) Methods() *methods.Table {
	return d.methods
}

// Codec exposes the codec used for arguments and replies.
func (d *Dispatcher) Codec() *codec.Codec {
	return d.codec
}
