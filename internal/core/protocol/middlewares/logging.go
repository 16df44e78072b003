package middlewares

import (
	"context"
	"time"

	"github.com/zeusync/typedrpc/internal/core/observability/log"
	"github.com/zeusync/typedrpc/internal/core/protocol"
)

// LoggingTransport logs every call crossing the transport.
type LoggingTransport struct {
	next   protocol.Transport
	logger log.Log
}

func Logging(logger log.Log) Middleware {
	return func(next protocol.Transport) protocol.Transport {
		return &LoggingTransport{
			next:   next,
			logger: logger.With(log.Component("transport_log")),
		}
	}
}

func (t *LoggingTransport) Send(ctx context.Context, method string, args [][]byte) ([]byte, error) {
	size := 0
	for _, a := range args {
		size += len(a)
	}
	started := time.Now()

	out, err := t.next.Send(ctx, method, args)

	fields := []log.Field{
		log.String("method", method),
		log.Int("args", len(args)),
		log.Int("request_bytes", size),
		log.Duration("duration", time.Since(started)),
	}
	if err != nil {
		t.logger.WithContext(ctx).Warn("Call failed", append(fields, log.Error(err))...)
		return nil, err
	}
	t.logger.WithContext(ctx).Debug("Call completed", append(fields, log.Int("response_bytes", len(out)))...)
	return out, nil
}

func (t *LoggingTransport) Close() error {
	return t.next.Close()
}
