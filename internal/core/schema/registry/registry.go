// Package registry owns the named type definitions of one schema version.
//
// A Registry is populated during setup, checked with Validate and then
// frozen. Once frozen it is read-only and may be shared by any number of
// goroutines without locking.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/typedrpc/internal/core/observability/log"
)

// Entry is one named definition inside a registration batch.
type Entry struct {
	Name TypeName
	Def  TypeDef
}

type Registry struct {
	mu     sync.RWMutex
	defs   map[TypeName]TypeDef
	order  []TypeName
	frozen atomic.Bool
	logger log.Log
}

type RegistryOption func(*Registry)

// WithLogger routes registration and validation logs to logger.
func WithLogger(logger log.Log) RegistryOption {
	return func(r *Registry) {
		r.logger = logger.With(log.Component("registry"))
	}
}

func New(opts ...RegistryOption) *Registry {
	r := &Registry{
		defs:   make(map[TypeName]TypeDef),
		logger: log.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a single definition. References are not checked here so
// that definitions may point forward; call Validate once the batch is in.
func (r *Registry) Register(name TypeName, def TypeDef) error {
	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register %s", ErrFrozen, name)
	}
	if err := checkEntry(name, def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register %s", ErrFrozen, name)
	}
	if _, exists := r.defs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, name)
	}
	r.defs[name] = def
	r.order = append(r.order, name)
	return nil
}

// RegisterBatch adds all entries or none. The batch is validated against
// the union of existing and new definitions, so entry order is irrelevant.
func (r *Registry) RegisterBatch(entries []Entry) error {
	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register batch", ErrFrozen)
	}

	batch := make(map[TypeName]struct{}, len(entries))
	for _, e := range entries {
		if err := checkEntry(e.Name, e.Def); err != nil {
			return err
		}
		if _, dup := batch[e.Name]; dup {
			return fmt.Errorf("%w: %s repeated in batch", ErrDuplicateType, e.Name)
		}
		batch[e.Name] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register batch", ErrFrozen)
	}
	for _, e := range entries {
		if _, exists := r.defs[e.Name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateType, e.Name)
		}
	}
	for _, e := range entries {
		r.defs[e.Name] = e.Def
		r.order = append(r.order, e.Name)
	}

	if err := r.validateLocked(); err != nil {
		for _, e := range entries {
			delete(r.defs, e.Name)
		}
		r.order = r.order[:len(r.order)-len(entries)]
		return err
	}

	r.logger.Debug("Registered type batch", log.Int("count", len(entries)), log.Int("total", len(r.order)))
	return nil
}

// Lookup returns the definition registered under name without following
// aliases.
func (r *Registry) Lookup(name TypeName) (TypeDef, error) {
	def, ok := r.get(name)
	if !ok {
		return TypeDef{}, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return def, nil
}

// Resolve follows alias chains from name to the first non-alias definition.
func (r *Registry) Resolve(name TypeName) (TypeDef, error) {
	def, ok := r.get(name)
	if !ok {
		return TypeDef{}, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}

	var seen map[TypeName]struct{}
	current := name
	for def.Kind == KindAlias {
		if seen == nil {
			seen = make(map[TypeName]struct{}, 4)
		}
		seen[current] = struct{}{}
		if _, loop := seen[def.Target]; loop {
			return TypeDef{}, fmt.Errorf("%w: %s revisits %s", ErrAliasCycle, name, def.Target)
		}
		next, ok := r.get(def.Target)
		if !ok {
			return TypeDef{}, fmt.Errorf("%w: alias %s -> %s", ErrUnresolvedReference, current, def.Target)
		}
		current, def = def.Target, next
	}
	return def, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name TypeName) bool {
	_, ok := r.get(name)
	return ok
}

// Validate walks every definition and reports all missing references,
// alias cycles and unguarded recursion. It does not mutate the registry,
// so repeated calls on an unchanged registry return the same outcome.
func (r *Registry) Validate() error {
	if r.frozen.Load() {
		return r.validateLocked()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validateLocked()
}

// Freeze validates the registry and makes it read-only.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return nil
	}
	if err := r.validateLocked(); err != nil {
		return err
	}
	r.frozen.Store(true)
	r.logger.Debug("Registry frozen",
		log.Int("types", len(r.order)),
		log.Hex64("fingerprint", r.fingerprintLocked()))
	return nil
}

func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []TypeName {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	return append([]TypeName(nil), r.order...)
}

func (r *Registry) Len() int {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	return len(r.order)
}

// Fingerprint hashes the canonical form of every definition. Two
// registries describing the same schema produce the same fingerprint
// regardless of registration order.
func (r *Registry) Fingerprint() uint64 {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	return r.fingerprintLocked()
}

func (r *Registry) fingerprintLocked() uint64 {
	names := append([]TypeName(nil), r.order...)
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	h := xxhash.New()
	for _, name := range names {
		_, _ = h.WriteString(string(name))
		_, _ = h.WriteString("=")
		_, _ = h.WriteString(r.defs[name].String())
		_, _ = h.WriteString(";")
	}
	return h.Sum64()
}

func (r *Registry) get(name TypeName) (TypeDef, bool) {
	if r.frozen.Load() {
		def, ok := r.defs[name]
		return def, ok
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

func (r *Registry) validateLocked() error {
	var errs []error
	for _, name := range r.order {
		for _, ref := range r.defs[name].References() {
			if _, ok := r.defs[ref]; !ok {
				errs = append(errs, fmt.Errorf("%w: %s references %s", ErrUnresolvedReference, name, ref))
			}
		}
	}
	errs = append(errs, r.findCycles()...)
	errs = append(errs, r.findEmptyEnums()...)
	if len(errs) > 0 {
		r.logger.Debug("Schema validation failed", log.Int("problems", len(errs)))
	}
	return errors.Join(errs...)
}

// unguarded lists the references of def that are embedded inline, i.e.
// whose encoding is required to encode any value of def. Sequence, Option
// and Enum references are guarded by a length, flag or discriminant; an
// enum whose every variant recurses is caught by findEmptyEnums.
func unguarded(def TypeDef) []TypeName {
	switch def.Kind {
	case KindSequence, KindOption, KindEnum:
		return nil
	case KindFixedArray:
		if def.Length == 0 {
			return nil
		}
	}
	return def.References()
}

// findCycles reports each unguarded cycle once, in registration order.
func (r *Registry) findCycles() []error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[TypeName]int, len(r.order))
	var (
		errs  []error
		stack []TypeName
		visit func(name TypeName)
	)
	visit = func(name TypeName) {
		color[name] = grey
		stack = append(stack, name)
		for _, ref := range unguarded(r.defs[name]) {
			if _, ok := r.defs[ref]; !ok {
				continue
			}
			switch color[ref] {
			case white:
				visit(ref)
			case grey:
				errs = append(errs, r.cycleError(stack, ref))
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
	}
	for _, name := range r.order {
		if color[name] == white {
			visit(name)
		}
	}
	return errs
}

// findEmptyEnums reports enums with no finite value: every variant carries
// a payload that in turn needs a value of the enum. Unregistered references
// count as inhabited since they are reported separately.
func (r *Registry) findEmptyEnums() []error {
	inhabited := make(map[TypeName]bool, len(r.order))
	ok := func(name TypeName) bool {
		if _, known := r.defs[name]; !known {
			return true
		}
		return inhabited[name]
	}
	for changed := true; changed; {
		changed = false
		for _, name := range r.order {
			if inhabited[name] {
				continue
			}
			if inhabitedBy(r.defs[name], ok) {
				inhabited[name] = true
				changed = true
			}
		}
	}

	var errs []error
	for _, name := range r.order {
		if !inhabited[name] && r.defs[name].Kind == KindEnum {
			errs = append(errs, fmt.Errorf("%w: every variant of %s recurses into %s", ErrUnguardedRecursion, name, name))
		}
	}
	return errs
}

func inhabitedBy(def TypeDef, ok func(TypeName) bool) bool {
	switch def.Kind {
	case KindPrimitive, KindSequence, KindOption:
		return true
	case KindFixedArray:
		return def.Length == 0 || ok(def.Elem)
	case KindEnum:
		for _, v := range def.Variants {
			if v.IsUnit() || ok(v.Payload) {
				return true
			}
		}
		return false
	}
	for _, ref := range def.References() {
		if !ok(ref) {
			return false
		}
	}
	return true
}

func (r *Registry) cycleError(stack []TypeName, start TypeName) error {
	i := len(stack) - 1
	for i > 0 && stack[i] != start {
		i--
	}
	cycle := append(append([]TypeName(nil), stack[i:]...), start)

	onlyAliases := true
	for _, name := range cycle[:len(cycle)-1] {
		if r.defs[name].Kind != KindAlias {
			onlyAliases = false
			break
		}
	}
	sentinel := ErrUnguardedRecursion
	if onlyAliases {
		sentinel = ErrAliasCycle
	}
	parts := make([]string, len(cycle))
	for j, name := range cycle {
		parts[j] = string(name)
	}
	return fmt.Errorf("%w: %s", sentinel, strings.Join(parts, " -> "))
}

func checkEntry(name TypeName, def TypeDef) error {
	if name == "" {
		return ErrInvalidName
	}
	if err := def.check(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
