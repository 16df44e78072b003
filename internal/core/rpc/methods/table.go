// Package methods holds the remote method signatures of a schema and binds
// caller arguments to them.
package methods

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/zeusync/typedrpc/internal/core/observability/log"
	"github.com/zeusync/typedrpc/internal/core/schema/registry"
)

// Resolver resolves the parameter and return types of a signature.
type Resolver interface {
	Resolve(name registry.TypeName) (registry.TypeDef, error)
}

// Table maps method names to signatures. Like the type registry it is
// filled once and frozen; lookups on a frozen table take no lock.
type Table struct {
	mu      sync.RWMutex
	methods map[string]MethodSignature
	frozen  atomic.Bool
	types   Resolver
	logger  log.Log
}

type Option func(*Table)

func WithLogger(logger log.Log) Option {
	return func(t *Table) {
		t.logger = logger
	}
}

func NewTable(types Resolver, opts ...Option) *Table {
	t := &Table{
		methods: make(map[string]MethodSignature),
		types:   types,
		logger:  log.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(log.Component("method_table"))
	return t
}

// Register adds sig. Every parameter and the return type must resolve.
func (t *Table) Register(sig MethodSignature) error {
	if t.frozen.Load() {
		return ErrTableFrozen
	}
	if err := sig.check(t.types); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen.Load() {
		return ErrTableFrozen
	}
	if _, exists := t.methods[sig.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMethod, sig.Name)
	}
	t.methods[sig.Name] = sig.clone()

	t.logger.Debug("Method registered",
		log.String("method", sig.Name),
		log.Int("params", len(sig.Params)),
		log.String("return", string(sig.Return)))
	return nil
}

// Lookup returns the signature registered under name.
func (t *Table) Lookup(name string) (MethodSignature, error) {
	if !t.frozen.Load() {
		t.mu.RLock()
		defer t.mu.RUnlock()
	}
	sig, ok := t.methods[name]
	if !ok {
		return MethodSignature{}, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return sig.clone(), nil
}

// Freeze makes the table read-only.
func (t *Table) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen.Store(true)
}

func (t *Table) Frozen() bool {
	return t.frozen.Load()
}

// Names returns the registered method names, sorted.
func (t *Table) Names() []string {
	if !t.frozen.Load() {
		t.mu.RLock()
		defer t.mu.RUnlock()
	}
	names := make([]string, 0, len(t.methods))
	for name := range t.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *Table) Len() int {
	if !t.frozen.Load() {
		t.mu.RLock()
		defer t.mu.RUnlock()
	}
	return len(t.methods)
}
