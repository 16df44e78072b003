// Package middlewares decorates a protocol.Transport with cross-cutting
// behavior: call logging, per-method rate limiting and call metrics.
package middlewares

import "github.com/zeusync/typedrpc/internal/core/protocol"

// Middleware wraps a transport.
type Middleware func(next protocol.Transport) protocol.Transport

// Chain applies middlewares so that the first one is outermost.
func Chain(t protocol.Transport, middlewares ...Middleware) protocol.Transport {
	for i := len(middlewares) - 1; i >= 0; i-- {
		t = middlewares[i](t)
	}
	return t
}
