package middlewares

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zeusync/typedrpc/internal/core/observability/log"
	"github.com/zeusync/typedrpc/internal/core/protocol"
)

// ErrRateLimited is returned without contacting the node. It is a
// transport error.
var ErrRateLimited = fmt.Errorf("%w: rate limit exceeded", protocol.ErrTransport)

// RateLimitTransport allows at most limit calls per method in each fixed
// window.
type RateLimitTransport struct {
	next    protocol.Transport
	logger  log.Log
	limit   int
	window  time.Duration
	methods sync.Map // method -> *methodRateLimit
	now     func() time.Time
}

type methodRateLimit struct {
	count  int
	window time.Time
	mu     sync.Mutex
}

func RateLimit(limit int, window time.Duration, logger log.Log) Middleware {
	return func(next protocol.Transport) protocol.Transport {
		return &RateLimitTransport{
			next:   next,
			logger: logger.With(log.Component("rate_limit")),
			limit:  limit,
			window: window,
			now:    time.Now,
		}
	}
}

func (t *RateLimitTransport) Send(ctx context.Context, method string, args [][]byte) ([]byte, error) {
	if !t.allow(method) {
		t.logger.Warn("Rate limit exceeded",
			log.String("method", method),
			log.Int("limit", t.limit),
			log.Duration("window", t.window))
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, method)
	}
	return t.next.Send(ctx, method, args)
}

func (t *RateLimitTransport) allow(method string) bool {
	now := t.now()
	state := t.methodRateLimit(method, now)

	state.mu.Lock()
	defer state.mu.Unlock()

	if now.Sub(state.window) >= t.window {
		state.count = 0
		state.window = now
	}
	if state.count >= t.limit {
		return false
	}
	state.count++
	return true
}

func (t *RateLimitTransport) methodRateLimit(method string, now time.Time) *methodRateLimit {
	if state, ok := t.methods.Load(method); ok {
		return state.(*methodRateLimit)
	}
	state, _ := t.methods.LoadOrStore(method, &methodRateLimit{window: now})
	return state.(*methodRateLimit)
}

func (t *RateLimitTransport) Close() error {
	return t.next.Close()
}
