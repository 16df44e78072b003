// Package injector wires the SDK client from a client.Config with
// google/wire.
package injector

import (
	"context"

	"github.com/google/wire"

	"github.com/zeusync/typedrpc/internal/core/observability/log"
	"github.com/zeusync/typedrpc/internal/core/protocol"
	"github.com/zeusync/typedrpc/internal/core/protocol/websocket"
	"github.com/zeusync/typedrpc/internal/core/schema/loader"
	"github.com/zeusync/typedrpc/sdk/go/client"
)

var ClientSet = wire.NewSet(
	ProvideLogger,
	ProvideSchema,
	ProvideTransport,
	ProvideClient,
)

func ProvideLogger(cfg client.Config) log.Log {
	return log.New(cfg.LogLevel)
}

func ProvideSchema(cfg client.Config, logger log.Log) (*loader.Schema, error) {
	if cfg.Schema == "" {
		return nil, client.ErrNoSchema
	}
	return loader.Load(cfg.Schema, loader.WithLogger(logger))
}

func ProvideTransport(ctx context.Context, cfg client.Config, logger log.Log) (protocol.Transport, error) {
	return websocket.Dial(ctx, cfg.Transport, logger)
}

// ProvideClient takes ownership of transport: it is closed on failure and
// by the returned cleanup.
func ProvideClient(schema *loader.Schema, transport protocol.Transport, cfg client.Config, logger log.Log) (*client.Client, func(), error) {
	c, err := client.New(schema, transport, cfg, logger)
	if err != nil {
		_ = transport.Close()
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}
