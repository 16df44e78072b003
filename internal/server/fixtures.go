package server

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/typedrpc/internal/core/codec"
	"github.com/zeusync/typedrpc/internal/core/protocol"
	"github.com/zeusync/typedrpc/internal/core/protocol/websocket"
	"github.com/zeusync/typedrpc/internal/core/schema/loader"
	"github.com/zeusync/typedrpc/pkg/encoding"
)

// Fixture is the canned answer to one method. Exactly one of Result (a
// 0x-hex encoded reply) or Error is set.
type Fixture struct {
	Result string `yaml:"result,omitempty" json:"result,omitempty"`
	Error  string `yaml:"error,omitempty" json:"error,omitempty"`
}

// Fixtures maps method names to their canned answers.
type Fixtures map[string]Fixture

// LoadFixtures reads a YAML fixture file.
func LoadFixtures(path string) (Fixtures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var fixtures Fixtures
	if err = yaml.NewDecoder(f).Decode(&fixtures); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidFixture, path, err)
	}
	return fixtures, nil
}

// Methods returns the fixture method names in sorted order.
func (f Fixtures) Methods() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check verifies that every fixture names a known method and that every
// result decodes as that method's return type.
func (f Fixtures) Check(schema *loader.Schema) error {
	c := codec.New(schema.Types)
	for _, method := range f.Methods() {
		fx := f[method]
		reply, err := fx.reply()
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		sig, err := schema.Methods.Lookup(method)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFixture, err)
		}
		if fx.Error != "" {
			continue
		}
		if _, err = c.DecodeAllNamed(sig.Return, reply); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidFixture, method, err)
		}
	}
	return nil
}

func (fx Fixture) reply() ([]byte, error) {
	switch {
	case fx.Error != "" && fx.Result != "":
		return nil, fmt.Errorf("%w: both result and error set", ErrInvalidFixture)
	case fx.Error != "":
		return nil, nil
	}
	reply, err := encoding.HexDecode(fx.Result)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}
	return reply, nil
}

// handler answers with the fixture regardless of the arguments.
func (fx Fixture) handler() (protocol.HandlerFunc, error) {
	reply, err := fx.reply()
	if err != nil {
		return nil, err
	}
	if fx.Error != "" {
		rpcErr := &websocket.RPCError{Code: websocket.CodeServerError, Message: fx.Error}
		return func(context.Context, string, [][]byte) ([]byte, error) {
			return nil, rpcErr
		}, nil
	}
	return func(context.Context, string, [][]byte) ([]byte, error) {
		return append([]byte(nil), reply...), nil
	}, nil
}
