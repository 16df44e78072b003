// Package websocket carries encoded calls to a node as JSON-RPC 2.0 over a
// websocket connection.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/typedrpc/internal/core/observability/log"
	"github.com/zeusync/typedrpc/internal/core/protocol"
	"github.com/zeusync/typedrpc/pkg/encoding"
)

var _ protocol.Transport = (*Transport)(nil)

// Transport multiplexes concurrent calls over one connection. Responses are
// matched to requests by id, so calls may complete out of order.
type Transport struct {
	conn   *Connection
	config protocol.Config
	logger log.Log

	mu      sync.Mutex
	pending map[string]chan response

	done      chan struct{}
	err       error
	failOnce  sync.Once
	closeOnce sync.Once
}

// Dial connects to config.Endpoint and starts the read loop.
func Dial(ctx context.Context, config protocol.Config, logger log.Log) (*Transport, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: config.DialTimeout,
		ReadBufferSize:   int(config.BufferSize),
		WriteBufferSize:  int(config.BufferSize),
	}
	conn, _, err := dialer.DialContext(ctx, config.Endpoint, nil)
	if err != nil {
		return nil, errors.Wrapf(protocol.ErrDialFailed, "%s: %v", config.Endpoint, err)
	}

	t := &Transport{
		conn:    NewConnection(conn, config),
		config:  config,
		pending: make(map[string]chan response),
		done:    make(chan struct{}),
	}
	t.logger = logger.With(
		log.Component("ws_transport"),
		log.String("endpoint", config.Endpoint),
		log.String("conn_id", t.conn.ID()),
	)

	go t.readLoop()
	if config.PingInterval > 0 {
		go t.pingLoop()
	}

	t.logger.Info("Transport connected")
	return t, nil
}

// Send implements protocol.Transport.
func (t *Transport) Send(ctx context.Context, method string, args [][]byte) ([]byte, error) {
	select {
	case <-t.done:
		return nil, t.closedErr()
	default:
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && t.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.RequestTimeout)
		defer cancel()
	}

	params := make([]string, len(args))
	for i, arg := range args {
		params[i] = encoding.HexEncode(arg)
	}
	req := request{
		JSONRPC: jsonRPCVersion,
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	ch := make(chan response, 1)
	t.mu.Lock()
	t.pending[req.ID] = ch
	t.mu.Unlock()
	defer t.forget(req.ID)

	if err = t.conn.Write(data); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		return decodeResult(resp)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, t.closedErr()
	}
}

func decodeResult(resp response) ([]byte, error) {
	if resp.Error != nil {
		return nil, resp.Error
	}
	var result *string
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, errors.Wrap(protocol.ErrInvalidMessage, "result is not a hex string")
	}
	if result == nil {
		return nil, errors.Wrap(protocol.ErrInvalidMessage, "null result")
	}
	out, err := encoding.HexDecode(*result)
	if err != nil {
		return nil, errors.Wrapf(protocol.ErrInvalidMessage, "result: %v", err)
	}
	return out, nil
}

func (t *Transport) forget(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

func (t *Transport) readLoop() {
	for {
		data, err := t.conn.Read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(errors.Cause(err), websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Error("Read loop failed", log.Error(err))
			}
			t.fail(err)
			return
		}

		var resp response
		if err = json.Unmarshal(data, &resp); err != nil {
			t.logger.Warn("Dropping malformed response", log.Error(err), log.Int("size", len(data)))
			continue
		}

		t.mu.Lock()
		ch, ok := t.pending[resp.ID]
		delete(t.pending, resp.ID)
		t.mu.Unlock()
		if !ok {
			t.logger.Warn("Dropping response for unknown request", log.String("id", resp.ID))
			continue
		}
		ch <- resp
	}
}

func (t *Transport) pingLoop() {
	ticker := time.NewTicker(t.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			timeout := t.config.WriteTimeout
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			if err := t.conn.Ping(time.Now().Add(timeout)); err != nil {
				t.logger.Warn("Failed to send ping", log.Error(err))
				return
			}
		case <-t.done:
			return
		}
	}
}

// fail records the first terminal error and releases every waiter.
func (t *Transport) fail(err error) {
	t.failOnce.Do(func() {
		t.err = err
		close(t.done)
	})
}

func (t *Transport) closedErr() error {
	if t.conn.IsClosed() {
		return protocol.ErrTransportClosed
	}
	return errors.Wrap(protocol.ErrConnectionClosed, t.err.Error())
}

// Close closes the connection. In-flight calls fail with
// protocol.ErrTransportClosed.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.conn.CloseWithReason("client closing")
		t.fail(protocol.ErrTransportClosed)
		t.logger.Info("Transport closed", log.Uint64("sent", t.conn.Stats().MessagesSent))
	})
	return err
}

// Stats returns the connection counters.
func (t *Transport) Stats() ConnectionStats {
	return t.conn.Stats()
}
