package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/zeusync/typedrpc/internal/core/observability/log"
	"github.com/zeusync/typedrpc/internal/core/protocol"
	"github.com/zeusync/typedrpc/pkg/encoding"
)

var _ http.Handler = (*Server)(nil)

// Server answers JSON-RPC calls arriving over websocket with a
// protocol.HandlerFunc. Requests on one connection are handled
// concurrently and answered in completion order.
type Server struct {
	handler  protocol.HandlerFunc
	config   protocol.Config
	logger   log.Log
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	clientsMu sync.Mutex
	clients   map[string]*Connection
	active    int64
	wg        sync.WaitGroup
}

func NewServer(handler protocol.HandlerFunc, config protocol.Config, logger log.Log) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler: handler,
		config:  config,
		logger:  logger.With(log.Component("ws_server")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  int(config.BufferSize),
			WriteBufferSize: int(config.BufferSize),
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[string]*Connection),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", log.Error(err))
		return
	}

	client := NewConnection(conn, s.config)
	s.clientsMu.Lock()
	s.clients[client.ID()] = client
	s.clientsMu.Unlock()
	atomic.AddInt64(&s.active, 1)

	s.logger.Info("Client connected",
		log.String("client_id", client.ID()),
		log.String("remote_addr", r.RemoteAddr))

	s.wg.Add(1)
	go s.handleClient(client)
}

func (s *Server) handleClient(client *Connection) {
	var inflight sync.WaitGroup
	defer func() {
		inflight.Wait()
		s.clientsMu.Lock()
		delete(s.clients, client.ID())
		s.clientsMu.Unlock()
		atomic.AddInt64(&s.active, -1)

		_ = client.Close()
		s.logger.Info("Client disconnected", log.String("client_id", client.ID()))
		s.wg.Done()
	}()

	for {
		data, err := client.Read()
		if err != nil {
			return
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			resp := s.answer(data)
			out, err := json.Marshal(resp)
			if err != nil {
				s.logger.Error("Failed to marshal response", log.Error(err))
				return
			}
			if err = client.Write(out); err != nil {
				s.logger.Warn("Failed to write response", log.String("client_id", client.ID()), log.Error(err))
			}
		}()
	}
}

func (s *Server) answer(data []byte) response {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse("", codeParseError, err.Error())
	}
	if req.JSONRPC != jsonRPCVersion || req.Method == "" {
		return errorResponse(req.ID, codeInvalidRequest, "invalid request")
	}

	args := make([][]byte, len(req.Params))
	for i, p := range req.Params {
		b, err := encoding.HexDecode(p)
		if err != nil {
			return errorResponse(req.ID, codeInvalidParams, err.Error())
		}
		args[i] = b
	}

	result, err := s.handler(s.ctx, req.Method, args)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return response{JSONRPC: jsonRPCVersion, ID: req.ID, Error: rpcErr}
		}
		code := codeInternalError
		if errors.Is(err, protocol.ErrMethodNotFound) {
			code = codeMethodNotFound
		}
		s.logger.Debug("Call failed", log.String("method", req.Method), log.Error(err))
		return errorResponse(req.ID, code, err.Error())
	}

	encoded, _ := json.Marshal(encoding.HexEncode(result))
	return response{JSONRPC: jsonRPCVersion, ID: req.ID, Result: encoded}
}

func errorResponse(id string, code int, message string) response {
	return response{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}

// ActiveConnections returns the number of connected clients.
func (s *Server) ActiveConnections() int {
	return int(atomic.LoadInt64(&s.active))
}

// Close disconnects every client, then cancels in-flight handlers and
// waits for them. Pending calls are never answered.
func (s *Server) Close() error {
	s.clientsMu.Lock()
	for _, c := range s.clients {
		_ = c.CloseWithReason("server shutting down")
	}
	s.clientsMu.Unlock()
	s.cancel()
	s.wg.Wait()
	return nil
}
