// Package client provides a high-level SDK for calling schema-typed remote
// methods with plain Go arguments.
package client

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/zeusync/typedrpc/internal/core/codec"
	"github.com/zeusync/typedrpc/internal/core/observability/log"
	"github.com/zeusync/typedrpc/internal/core/protocol"
	"github.com/zeusync/typedrpc/internal/core/protocol/middlewares"
	"github.com/zeusync/typedrpc/internal/core/protocol/websocket"
	"github.com/zeusync/typedrpc/internal/core/rpc/dispatcher"
	"github.com/zeusync/typedrpc/internal/core/rpc/methods"
	"github.com/zeusync/typedrpc/internal/core/schema/loader"
	"github.com/zeusync/typedrpc/internal/core/schema/value"
	"github.com/zeusync/typedrpc/pkg/concurrent"
)

// Client binds one schema to one transport. It is safe for concurrent use.
type Client struct {
	schema     *loader.Schema
	transport  protocol.Transport
	dispatcher *dispatcher.Dispatcher
	metrics    *middlewares.Collector

	config Config
	logger log.Log
	closed atomic.Bool
}

type Option func(*options)

type options struct {
	logger    log.Log
	schema    *loader.Schema
	transport protocol.Transport
}

func WithLogger(logger log.Log) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSchema uses an already built schema instead of loading Config.Schema.
func WithSchema(schema *loader.Schema) Option {
	return func(o *options) {
		o.schema = schema
	}
}

// WithTransport skips dialing and sends every call through transport.
func WithTransport(transport protocol.Transport) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// Dial loads the schema, connects to the configured endpoint and returns
// a ready client.
func Dial(ctx context.Context, config Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(config.LogLevel)
	}

	if o.schema == nil {
		if config.Schema == "" {
			return nil, ErrNoSchema
		}
		schema, err := loader.Load(config.Schema, loader.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		o.schema = schema
	}

	if o.transport == nil {
		transport, err := websocket.Dial(ctx, config.Transport, o.logger)
		if err != nil {
			return nil, err
		}
		o.transport = transport
	}

	return New(o.schema, o.transport, config, o.logger)
}

// New wraps transport with the logging, metrics and rate limit layers the
// config asks for and builds the dispatcher on top.
func New(schema *loader.Schema, transport protocol.Transport, config Config, logger log.Log) (*Client, error) {
	if schema == nil {
		return nil, ErrNoSchema
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With(log.Component("client"))

	collector := middlewares.NewCollector()
	layers := []middlewares.Middleware{
		middlewares.Metrics(collector),
		middlewares.Logging(logger),
	}
	if config.RateLimit.Requests > 0 {
		layers = append(layers, middlewares.RateLimit(config.RateLimit.Requests, config.RateLimit.Window, logger))
	}
	wrapped := middlewares.Chain(transport, layers...)

	c := &Client{
		schema:    schema,
		transport: wrapped,
		dispatcher: dispatcher.New(schema, schema.Methods, wrapped,
			dispatcher.WithLogger(logger),
			dispatcher.WithCodec(codec.New(schema.Types, config.codecOptions()...)),
		),
		metrics: collector,
		config:  config,
		logger:  logger,
	}

	c.logger.Info("Client created",
		log.Int("methods", schema.Methods.Len()),
		log.Hex64("schema", schema.Fingerprint()),
	)
	return c, nil
}

// Call invokes method with arguments keyed by parameter name and returns
// the reply as plain Go data (see value.ToNative).
func (c *Client) Call(ctx context.Context, method string, args map[string]any) (any, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	v, err := c.dispatcher.InvokeNative(ctx, method, args)
	if err != nil {
		return nil, err
	}
	return c.toNative(method, v)
}

// CallPositional is Call with arguments in declared parameter order.
func (c *Client) CallPositional(ctx context.Context, method string, args ...any) (any, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	v, err := c.dispatcher.InvokePositional(ctx, method, args)
	if err != nil {
		return nil, err
	}
	return c.toNative(method, v)
}

// CallValue works on typed values directly, for callers that build their
// arguments with the value package.
func (c *Client) CallValue(ctx context.Context, method string, args ...methods.Arg) (value.Value, error) {
	if c.closed.Load() {
		return value.Value{}, ErrClientClosed
	}
	return c.dispatcher.Invoke(ctx, method, args)
}

func (c *Client) toNative(method string, v value.Value) (any, error) {
	sig, err := c.schema.Methods.Lookup(method)
	if err != nil {
		return nil, err
	}
	out, err := value.ToNative(c.schema.Types, sig.Return, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

// Request is one entry of a batch.
type Request struct {
	Method string
	Args   map[string]any
}

// Response carries the outcome of the request at the same index.
type Response struct {
	Result any
	Err    error
}

// CallBatch runs the requests concurrently, at most
// Config.BatchConcurrency at a time. A failing request does not stop the
// others; responses are returned in request order.
func (c *Client) CallBatch(ctx context.Context, requests []Request) []Response {
	results := concurrent.Settle(ctx, requests, c.config.BatchConcurrency,
		func(ctx context.Context, i int, req Request) (any, error) {
			return c.Call(batchContext(ctx, i), req.Method, req.Args)
		})

	out := make([]Response, len(results))
	failed := 0
	for i, r := range results {
		out[i] = Response{Result: r.Value, Err: r.Err}
		if r.Err != nil {
			failed++
		}
	}
	c.logger.Debug("Batch completed", log.Int("requests", len(requests)), log.Int("failed", failed))
	return out
}

// batchContext tags the i-th batch entry so its log lines can be told apart.
func batchContext(ctx context.Context, i int) context.Context {
	return log.ContextWithRequestID(ctx, fmt.Sprintf("batch-%d", i))
}

// CallAll is CallBatch that stops at the first failure. Requests still in
// flight see a canceled context and only the first error is returned.
func (c *Client) CallAll(ctx context.Context, requests []Request) ([]any, error) {
	return concurrent.Map(ctx, requests, c.config.BatchConcurrency,
		func(ctx context.Context, i int, req Request) (any, error) {
			return c.Call(batchContext(ctx, i), req.Method, req.Args)
		})
}

// Signature returns the declared signature of method.
func (c *Client) Signature(method string) (methods.MethodSignature, error) {
	return c.schema.Methods.Lookup(method)
}

// Methods lists the callable method names.
func (c *Client) Methods() []string {
	return c.schema.Methods.Names()
}

func (c *Client) Schema() *loader.Schema {
	return c.schema
}

// Metrics returns per-method call statistics gathered so far.
func (c *Client) Metrics() map[string]middlewares.MethodStats {
	return c.metrics.Snapshot()
}

// Close closes the underlying transport. Calls made afterwards fail with
// ErrClientClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}
	c.logger.Info("Client closed")
	return c.transport.Close()
}
