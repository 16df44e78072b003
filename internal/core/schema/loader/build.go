package loader

import (
	"fmt"
	"sort"

	"github.com/zeusync/typedrpc/internal/core/rpc/methods"
	"github.com/zeusync/typedrpc/internal/core/schema/registry"
)

// builder collects the definitions of one document so they can be
// registered as a single batch. Anonymous composites met inside
// expressions are registered under their canonical spelling.
type builder struct {
	types   interface{ Has(registry.TypeName) bool }
	entries []registry.Entry
	pending map[registry.TypeName]struct{}
}

func newBuilder(types interface{ Has(registry.TypeName) bool }) *builder {
	return &builder{types: types, pending: make(map[registry.TypeName]struct{})}
}

func (b *builder) add(name registry.TypeName, def registry.TypeDef) {
	b.pending[name] = struct{}{}
	b.entries = append(b.entries, registry.Entry{Name: name, Def: def})
}

func (b *builder) known(name registry.TypeName) bool {
	if _, ok := b.pending[name]; ok {
		return true
	}
	return b.types.Has(name)
}

// ref returns the name an expression is referenced by, registering any
// anonymous composite it needs.
func (b *builder) ref(e *expr) (registry.TypeName, error) {
	if e.kind == exprName {
		return registry.TypeName(e.name), nil
	}
	name := registry.TypeName(e.String())
	if b.known(name) {
		return name, nil
	}
	def, err := b.define(e)
	if err != nil {
		return "", err
	}
	b.add(name, def)
	return name, nil
}

// define builds the definition an expression stands for. A bare name
// becomes an alias.
func (b *builder) define(e *expr) (registry.TypeDef, error) {
	switch e.kind {
	case exprName:
		return registry.Alias(registry.TypeName(e.name)), nil
	case exprVec, exprOption, exprArray:
		elem, err := b.ref(e.args[0])
		if err != nil {
			return registry.TypeDef{}, err
		}
		switch e.kind {
		case exprVec:
			return registry.Sequence(elem), nil
		case exprOption:
			return registry.Option(elem), nil
		default:
			return registry.FixedArray(elem, e.length), nil
		}
	case exprTuple:
		members := make([]registry.TypeName, len(e.args))
		for i, a := range e.args {
			m, err := b.ref(a)
			if err != nil {
				return registry.TypeDef{}, err
			}
			members[i] = m
		}
		return registry.Tuple(members...), nil
	case exprMap:
		key, err := b.ref(e.args[0])
		if err != nil {
			return registry.TypeDef{}, err
		}
		val, err := b.ref(e.args[1])
		if err != nil {
			return registry.TypeDef{}, err
		}
		entry := registry.TypeName(e.entryName())
		if !b.known(entry) {
			b.add(entry, registry.Map2(key, val))
		}
		return registry.Sequence(entry), nil
	default:
		return registry.TypeDef{}, fmt.Errorf("%w: kind %d", ErrUnsupportedExpr, e.kind)
	}
}

func (b *builder) refString(s string) (registry.TypeName, error) {
	e, err := parseExpr(s)
	if err != nil {
		return "", err
	}
	return b.ref(e)
}

func (b *builder) typeSpec(name string, spec TypeSpec) error {
	switch {
	case spec.Fields != nil:
		fields := make([]registry.Field, len(spec.Fields))
		for i, f := range spec.Fields {
			t, err := b.refString(f.Type)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", name, f.Name, err)
			}
			fields[i] = registry.Field{Name: f.Name, Type: t}
		}
		b.add(registry.TypeName(name), registry.Struct(fields...))
	case spec.Enum != nil:
		variants := make([]registry.Variant, len(spec.Enum))
		for i, v := range spec.Enum {
			variants[i] = registry.Variant{Name: v.Name}
			if v.Type == "" {
				continue
			}
			t, err := b.refString(v.Type)
			if err != nil {
				return fmt.Errorf("%s::%s: %w", name, v.Name, err)
			}
			variants[i].Payload = t
		}
		b.add(registry.TypeName(name), registry.Enum(variants...))
	default:
		e, err := parseExpr(spec.Expr)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		def, err := b.define(e)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		b.add(registry.TypeName(name), def)
	}
	return nil
}

// RegisterTypes registers the types section, plus every anonymous type
// the rpc section mentions, as one batch. Nothing is registered on error.
func (d *Document) RegisterTypes(types *registry.Registry) error {
	b := newBuilder(types)
	for _, t := range d.Types {
		if t.Name == "" {
			return fmt.Errorf("%w: empty type name", ErrInvalidDocument)
		}
		if err := b.typeSpec(t.Name, t.Spec); err != nil {
			return err
		}
	}
	for _, m := range d.methods() {
		for _, p := range m.spec.Params {
			if _, err := b.refString(p.Type); err != nil {
				return fmt.Errorf("%s(%s): %w", m.name, p.Name, err)
			}
		}
		if _, err := b.refString(m.returnType()); err != nil {
			return fmt.Errorf("%s: %w", m.name, err)
		}
	}
	if len(b.entries) == 0 {
		return nil
	}
	return types.RegisterBatch(b.entries)
}

// Signatures turns the rpc section into method signatures named
// section_method, sorted by name. Type expressions are canonicalised so
// they match the names RegisterTypes used.
func (d *Document) Signatures() ([]methods.MethodSignature, error) {
	ms := d.methods()
	out := make([]methods.MethodSignature, 0, len(ms))
	for _, m := range ms {
		sig := methods.MethodSignature{Name: m.name, Description: m.spec.Description}
		for _, p := range m.spec.Params {
			if p.Name == "" {
				return nil, fmt.Errorf("%w: %s has an unnamed parameter", ErrInvalidDocument, m.name)
			}
			t, err := Canonical(p.Type)
			if err != nil {
				return nil, fmt.Errorf("%s(%s): %w", m.name, p.Name, err)
			}
			sig.Params = append(sig.Params, methods.Param{Name: p.Name, Type: t, Optional: p.IsOptional})
		}
		ret, err := Canonical(m.returnType())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.name, err)
		}
		sig.Return = ret
		out = append(out, sig)
	}
	return out, nil
}

// RegisterMethods registers every signature of the rpc section on table.
func (d *Document) RegisterMethods(table *methods.Table) error {
	sigs, err := d.Signatures()
	if err != nil {
		return err
	}
	for _, sig := range sigs {
		if err = table.Register(sig); err != nil {
			return err
		}
	}
	return nil
}

type namedMethod struct {
	name string
	spec MethodSpec
}

// returnType treats a missing return type as the unit tuple.
func (m namedMethod) returnType() string {
	if m.spec.Type == "" {
		return "()"
	}
	return m.spec.Type
}

func (d *Document) methods() []namedMethod {
	var out []namedMethod
	for section, ms := range d.RPC {
		for method, spec := range ms {
			out = append(out, namedMethod{name: section + "_" + method, spec: spec})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
