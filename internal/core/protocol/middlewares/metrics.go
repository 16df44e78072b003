package middlewares

import (
	"context"
	"sync"
	"time"

	"github.com/zeusync/typedrpc/internal/core/protocol"
)

// MethodStats is a snapshot of the calls made to one method.
type MethodStats struct {
	Count       int64
	Errors      int64
	TotalTime   time.Duration
	AverageTime time.Duration
	LastUpdated time.Time
}

// Collector accumulates per-method call statistics. One collector may be
// shared by several transports.
type Collector struct {
	methods sync.Map // method -> *methodMetrics
}

type methodMetrics struct {
	count       int64
	errors      int64
	totalTime   time.Duration
	lastUpdated time.Time
	mu          sync.Mutex
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) record(method string, duration time.Duration, err error) {
	m := c.methodMetrics(method)
	m.mu.Lock()
	m.count++
	m.totalTime += duration
	m.lastUpdated = time.Now()
	if err != nil {
		m.errors++
	}
	m.mu.Unlock()
}

func (c *Collector) methodMetrics(method string) *methodMetrics {
	if m, ok := c.methods.Load(method); ok {
		return m.(*methodMetrics)
	}
	m, _ := c.methods.LoadOrStore(method, &methodMetrics{})
	return m.(*methodMetrics)
}

// Snapshot returns the statistics collected so far, keyed by method.
func (c *Collector) Snapshot() map[string]MethodStats {
	result := make(map[string]MethodStats)
	c.methods.Range(func(key, value any) bool {
		m := value.(*methodMetrics)
		m.mu.Lock()
		stats := MethodStats{
			Count:       m.count,
			Errors:      m.errors,
			TotalTime:   m.totalTime,
			LastUpdated: m.lastUpdated,
		}
		if m.count > 0 {
			stats.AverageTime = m.totalTime / time.Duration(m.count)
		}
		m.mu.Unlock()
		result[key.(string)] = stats
		return true
	})
	return result
}

// MetricsTransport records every call into a Collector.
type MetricsTransport struct {
	next      protocol.Transport
	collector *Collector
}

func Metrics(collector *Collector) Middleware {
	return func(next protocol.Transport) protocol.Transport {
		return &MetricsTransport{next: next, collector: collector}
	}
}

func (t *MetricsTransport) Send(ctx context.Context, method string, args [][]byte) ([]byte, error) {
	started := time.Now()
	out, err := t.next.Send(ctx, method, args)
	t.collector.record(method, time.Since(started), err)
	return out, err
}

func (t *MetricsTransport) Close() error {
	return t.next.Close()
}
