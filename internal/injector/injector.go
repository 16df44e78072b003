//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"context"

	"github.com/google/wire"

	"github.com/zeusync/typedrpc/sdk/go/client"
)

// InitializeClient builds a connected client from cfg. The returned
// cleanup closes it.
func InitializeClient(ctx context.Context, cfg client.Config) (*client.Client, func(), error) {
	wire.Build(ClientSet)
	return nil, nil, nil
}
