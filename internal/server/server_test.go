package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/typedrpc/internal/core/protocol"
	"github.com/zeusync/typedrpc/internal/core/protocol/websocket"
	"github.com/zeusync/typedrpc/internal/core/schema/loader"
)

const schemaDoc = `
rpc:
  system:
    name:
      type: Text
    health:
      type: bool
`

func testSchema(t *testing.T) *loader.Schema {
	t.Helper()
	doc, err := loader.LoadYAML(strings.NewReader(schemaDoc))
	require.NoError(t, err)
	s, err := loader.New(doc)
	require.NoError(t, err)
	return s
}

func startServer(t *testing.T, fixtures Fixtures) (*Server, protocol.Config) {
	t.Helper()
	config := DefaultServerConfig()
	config.ListenAddr = "127.0.0.1:0"
	srv, err := NewServer(config, fixtures, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Close() })

	cfg := protocol.DefaultConfig()
	cfg.Endpoint = "ws://" + srv.Addr() + "/"
	return srv, cfg
}

func TestServeFixtures(t *testing.T) {
	srv, cfg := startServer(t, Fixtures{
		"system_name":   {Result: "0x146e6f646531"},
		"system_health": {Error: "node is syncing"},
	})

	tr, err := websocket.Dial(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()

	out, err := tr.Send(context.Background(), "system_name", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x14, 'n', 'o', 'd', 'e', '1'}, out)

	_, err = tr.Send(context.Background(), "system_health", nil)
	var rpcErr *websocket.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, websocket.CodeServerError, rpcErr.Code)
	assert.Equal(t, "node is syncing", rpcErr.Message)

	_, err = tr.Send(context.Background(), "system_version", nil)
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)

	assert.EqualValues(t, 3, srv.Calls())
}

func TestHealth(t *testing.T) {
	srv, _ := startServer(t, nil)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestLifecycle(t *testing.T) {
	config := DefaultServerConfig()
	config.ListenAddr = "127.0.0.1:0"
	srv, err := NewServer(config, nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, srv.Stop(context.Background()), ErrServerNotRunning)
	require.NoError(t, srv.Start(context.Background()))
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerAlreadyRunning)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Close())
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerClosed)

	_, err = NewServer(Config{}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	taken := DefaultServerConfig()
	taken.ListenAddr = "256.0.0.1:0"
	bad, err := NewServer(taken, nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, bad.Start(context.Background()), ErrListenerFailed)
}

func TestFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
system_name:
  result: "0x146e6f646531"
system_health:
  error: node is syncing
`), 0o600))

	fixtures, err := LoadFixtures(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"system_health", "system_name"}, fixtures.Methods())
	require.NoError(t, fixtures.Check(testSchema(t)))

	cases := map[string]Fixtures{
		"unknown method":   {"system_version": {Result: "0x00"}},
		"undecodable":      {"system_name": {Result: "0x1461"}},
		"not hex":          {"system_name": {Result: "nope"}},
		"result and error": {"system_name": {Result: "0x00", Error: "x"}},
		"trailing bytes":   {"system_health": {Result: "0x0100"}},
	}
	for name, fx := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, fx.Check(testSchema(t)), ErrInvalidFixture)
		})
	}

	_, err = NewServer(DefaultServerConfig(), Fixtures{"system_name": {Result: "nope"}}, nil)
	assert.ErrorIs(t, err, ErrInvalidFixture)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("- a\n- b\n"), 0o600))
	_, err = LoadFixtures(bad)
	assert.ErrorIs(t, err, ErrInvalidFixture)
}
