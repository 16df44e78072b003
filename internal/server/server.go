// Package server runs a node stand-in that answers JSON-RPC calls over
// websocket from a fixture table. It backs `typedrpc serve` and
// end-to-end tests of the client.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/zeusync/typedrpc/internal/core/observability/log"
	"github.com/zeusync/typedrpc/internal/core/protocol"
	"github.com/zeusync/typedrpc/internal/core/protocol/websocket"
)

// Config holds server configuration
type Config struct {
	ListenAddr string          `yaml:"listen_addr" json:"listen_addr"`
	Transport  protocol.Config `yaml:"transport" json:"transport"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr: "127.0.0.1:9944",
		Transport:  protocol.DefaultConfig(),
	}
}

// Server serves fixtures on "/" (websocket) and reports liveness on
// "/health".
type Server struct {
	node     *protocol.MemTransport
	ws       *websocket.Server
	http     *http.Server
	listener net.Listener

	running atomic.Bool
	closed  atomic.Bool

	config Config
	logger log.Log
}

// NewServer creates a server answering from fixtures. Methods without a
// fixture get a method-not-found error.
func NewServer(config Config, fixtures Fixtures, logger log.Log) (*Server, error) {
	if config.ListenAddr == "" {
		return nil, fmt.Errorf("%w: listen address is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	logger = logger.With(log.Component("server"))

	node := protocol.NewMemTransport(nil)
	for _, method := range fixtures.Methods() {
		h, err := fixtures[method].handler()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}
		node.Handle(method, h)
	}

	s := &Server{
		node:   node,
		ws:     websocket.NewServer(node.Send, config.Transport, logger),
		config: config,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.Handle("/", s.ws)
	mux.HandleFunc("/health", s.handleHealth)
	s.http = &http.Server{Handler: mux}

	s.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.Int("fixtures", len(fixtures)))
	return s, nil
}

// Start begins listening and returns once the listener is bound.
func (s *Server) Start(_ context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		s.running.Store(false)
		s.logger.Error("Failed to create listener", log.Error(err))
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	s.listener = listener

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Serve failed", log.Error(err))
		}
	}()

	s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))
	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the HTTP side down and drops every websocket client.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")
	err := s.http.Shutdown(ctx)
	if cerr := s.ws.Close(); err == nil {
		err = cerr
	}
	s.logger.Info("Server stopped", log.Uint64("calls", s.node.Calls()))
	return err
}

// Close stops the server if needed and releases it for good.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.running.Load() {
		return s.Stop(context.Background())
	}
	return nil
}

// Calls returns the number of calls answered so far.
func (s *Server) Calls() uint64 {
	return s.node.Calls()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"connections": s.ws.ActiveConnections(),
		"calls":       s.node.Calls(),
	})
}
