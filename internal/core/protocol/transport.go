// Package protocol defines the contract between the call dispatcher and the
// channel that carries encoded calls to a remote node, together with the
// error taxonomy shared by every layer.
package protocol

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Transport carries one encoded call and returns the encoded response. It
// knows nothing about the schema. Implementations must allow concurrent
// Send calls and must honor ctx cancellation.
type Transport interface {
	Send(ctx context.Context, method string, args [][]byte) ([]byte, error)
	Close() error
}

// HandlerFunc answers one call on the serving side.
type HandlerFunc func(ctx context.Context, method string, args [][]byte) ([]byte, error)

var _ Transport = (*MemTransport)(nil)

// MemTransport delivers calls to in-process handlers. It is used by tests
// and by the CLI when no endpoint is configured.
type MemTransport struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	fallback HandlerFunc
	closed   atomic.Bool
	calls    atomic.Uint64
}

// NewMemTransport creates a transport whose unmatched calls go to fallback.
// A nil fallback rejects unknown methods with ErrMethodNotFound.
func NewMemTransport(fallback HandlerFunc) *MemTransport {
	return &MemTransport{
		handlers: make(map[string]HandlerFunc),
		fallback: fallback,
	}
}

// Handle routes method to handler.
func (t *MemTransport) Handle(method string, handler HandlerFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[method] = handler
}

func (t *MemTransport) Send(ctx context.Context, method string, args [][]byte) ([]byte, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.calls.Add(1)

	t.mu.RLock()
	handler, ok := t.handlers[method]
	t.mu.RUnlock()
	if !ok {
		handler = t.fallback
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, method)
	}

	copied := make([][]byte, len(args))
	for i, a := range args {
		copied[i] = append([]byte(nil), a...)
	}
	return handler(ctx, method, copied)
}

// Calls returns the number of calls delivered so far.
func (t *MemTransport) Calls() uint64 {
	return t.calls.Load()
}

func (t *MemTransport) Close() error {
	t.closed.Store(true)
	return nil
}
