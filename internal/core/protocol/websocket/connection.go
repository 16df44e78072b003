package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/typedrpc/internal/core/protocol"
)

// Connection wraps a websocket connection with serialized writes, size
// limits and activity tracking. It is shared by the client transport and
// the server.
type Connection struct {
	id           string
	conn         *websocket.Conn
	config       protocol.Config
	lastActivity int64 // Unix timestamp
	connectedAt  time.Time
	closed       int32

	messagesSent     uint64
	messagesReceived uint64
	bytesSent        uint64
	bytesReceived    uint64

	writeMu sync.Mutex
}

// ConnectionStats is a snapshot of connection counters.
type ConnectionStats struct {
	ConnectedAt      time.Time
	LastActivity     time.Time
	MessagesSent     uint64
	MessagesReceived uint64
	BytesSent        uint64
	BytesReceived    uint64
}

func NewConnection(conn *websocket.Conn, config protocol.Config) *Connection {
	if config.MaxMessageSize > 0 {
		conn.SetReadLimit(int64(config.MaxMessageSize))
	}
	now := time.Now()
	return &Connection{
		id:           uuid.New().String(),
		conn:         conn,
		config:       config,
		lastActivity: now.Unix(),
		connectedAt:  now,
	}
}

func (c *Connection) ID() string {
	return c.id
}

// Write sends one text frame.
func (c *Connection) Write(data []byte) error {
	if c.IsClosed() {
		return protocol.ErrConnectionClosed
	}
	if c.config.MaxMessageSize > 0 && uint32(len(data)) > c.config.MaxMessageSize {
		return errors.Wrapf(protocol.ErrMessageTooLarge, "message size %d exceeds limit %d", len(data), c.config.MaxMessageSize)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}

	atomic.AddUint64(&c.messagesSent, 1)
	atomic.AddUint64(&c.bytesSent, uint64(len(data)))
	atomic.StoreInt64(&c.lastActivity, time.Now().Unix())
	return nil
}

// Read blocks for the next text or binary frame.
func (c *Connection) Read() ([]byte, error) {
	if c.IsClosed() {
		return nil, protocol.ErrConnectionClosed
	}

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read message")
	}
	if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
		return nil, errors.Wrap(protocol.ErrInvalidMessage, "unsupported frame type")
	}

	atomic.AddUint64(&c.messagesReceived, 1)
	atomic.AddUint64(&c.bytesReceived, uint64(len(data)))
	atomic.StoreInt64(&c.lastActivity, time.Now().Unix())
	return data, nil
}

// Ping writes a ping control frame.
func (c *Connection) Ping(deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (c *Connection) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *Connection) LastActivity() time.Time {
	return time.Unix(atomic.LoadInt64(&c.lastActivity), 0)
}

func (c *Connection) Stats() ConnectionStats {
	return ConnectionStats{
		ConnectedAt:      c.connectedAt,
		LastActivity:     c.LastActivity(),
		MessagesSent:     atomic.LoadUint64(&c.messagesSent),
		MessagesReceived: atomic.LoadUint64(&c.messagesReceived),
		BytesSent:        atomic.LoadUint64(&c.bytesSent),
		BytesReceived:    atomic.LoadUint64(&c.bytesReceived),
	}
}

func (c *Connection) Close() error {
	return c.CloseWithReason("connection closed")
}

// CloseWithReason sends a close frame and closes the socket. Repeated calls
// are no-ops.
func (c *Connection) CloseWithReason(reason string) error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	c.writeMu.Lock()
	closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	return c.conn.Close()
}
