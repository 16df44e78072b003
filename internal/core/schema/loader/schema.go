package loader

import (
	"fmt"

	"github.com/zeusync/typedrpc/internal/core/observability/log"
	"github.com/zeusync/typedrpc/internal/core/rpc/methods"
	"github.com/zeusync/typedrpc/internal/core/schema/registry"
)

// Schema is one frozen schema version: its type registry and the method
// table resolved against it.
type Schema struct {
	Types   *registry.Registry
	Methods *methods.Table
}

type Option func(*options)

type options struct {
	logger   log.Log
	builtins bool
}

func WithLogger(logger log.Log) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithoutBuiltins starts from an empty registry. The document must then
// define every primitive it uses.
func WithoutBuiltins() Option {
	return func(o *options) {
		o.builtins = false
	}
}

// New registers doc on a fresh registry, builds its method table and
// freezes both.
func New(doc *Document, opts ...Option) (*Schema, error) {
	o := options{logger: log.NewNop(), builtins: true}
	for _, opt := range opts {
		opt(&o)
	}

	types := registry.New(registry.WithLogger(o.logger))
	if o.builtins {
		if err := RegisterBuiltins(types); err != nil {
			return nil, err
		}
	}
	if err := doc.RegisterTypes(types); err != nil {
		return nil, err
	}
	if err := types.Freeze(); err != nil {
		return nil, err
	}

	table := methods.NewTable(types, methods.WithLogger(o.logger))
	if err := doc.RegisterMethods(table); err != nil {
		return nil, err
	}
	table.Freeze()

	s := &Schema{Types: types, Methods: table}
	o.logger.Info("Schema loaded",
		log.Int("types", types.Len()),
		log.Int("methods", table.Len()),
		log.Hex64("fingerprint", s.Fingerprint()),
	)
	return s, nil
}

// Load reads a JSON or YAML schema file and builds it.
func Load(path string, opts ...Option) (*Schema, error) {
	doc, err := LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", path, err)
	}
	return New(doc, opts...)
}

func (s *Schema) Resolve(name registry.TypeName) (registry.TypeDef, error) {
	return s.Types.Resolve(name)
}

func (s *Schema) Fingerprint() uint64 {
	return s.Types.Fingerprint()
}

// TypeRef is a type expression resolved against a schema. It resolves the
// schema's types plus any anonymous composite the expression introduced,
// so it can stand in for the registry in codec and value calls.
type TypeRef struct {
	Name  registry.TypeName
	Def   registry.TypeDef
	base  *registry.Registry
	extra map[registry.TypeName]registry.TypeDef
}

func (t *TypeRef) Resolve(name registry.TypeName) (registry.TypeDef, error) {
	if def, ok := t.extra[name]; ok {
		return def, nil
	}
	return t.base.Resolve(name)
}

func (t *TypeRef) has(name registry.TypeName) bool {
	if _, ok := t.extra[name]; ok {
		return true
	}
	return t.base.Has(name)
}

// Lookup resolves a type expression such as "Vec<(Ticker, Balance)>" or
// "[u8;12]". Composites the document never spelled out are built for this
// lookup only; the frozen registry is left untouched.
func (s *Schema) Lookup(expr string) (*TypeRef, error) {
	b := newBuilder(s.Types)
	name, err := b.refString(expr)
	if err != nil {
		return nil, err
	}

	ref := &TypeRef{Name: name, base: s.Types}
	if len(b.entries) > 0 {
		ref.extra = make(map[registry.TypeName]registry.TypeDef, len(b.entries))
		for _, e := range b.entries {
			ref.extra[e.Name] = e.Def
		}
		for _, e := range b.entries {
			for _, r := range e.Def.References() {
				if !ref.has(r) {
					return nil, fmt.Errorf("%w: %s references %s", registry.ErrUnresolvedReference, e.Name, r)
				}
			}
		}
	}

	ref.Def, err = ref.Resolve(name)
	if err != nil {
		return nil, err
	}
	return ref, nil
}
