package methods

import (
	"github.com/zeusync/typedrpc/internal/core/schema/registry"
	"github.com/zeusync/typedrpc/internal/core/schema/value"
)

// Arg is a caller-supplied named argument.
type Arg struct {
	Name  string
	Value value.Value
}

// Bound is one parameter ready for encoding: Def is the wire definition
// (wrapped in an option for optional parameters) and Value conforms to it.
type Bound struct {
	Param Param
	Def   registry.TypeDef
	Value value.Value
}

// Bind matches args against sig by name and returns one Bound per declared
// parameter, in declared order. Missing optional parameters bind to an
// absent option; an optional argument may be given either bare or already
// wrapped in an option value.
func (t *Table) Bind(sig MethodSignature, args []Arg) ([]Bound, error) {
	given := make(map[string]value.Value, len(args))
	for _, a := range args {
		if _, _, ok := sig.Param(a.Name); !ok {
			return nil, argumentError(sig.Name, a.Name, ErrUnexpectedArgument, nil)
		}
		if _, dup := given[a.Name]; dup {
			return nil, argumentError(sig.Name, a.Name, ErrUnexpectedArgument, errGivenTwice)
		}
		given[a.Name] = a.Value
	}

	bound := make([]Bound, len(sig.Params))
	for i, p := range sig.Params {
		v, ok := given[p.Name]
		b, err := t.bindOne(sig, p, v, ok)
		if err != nil {
			return nil, err
		}
		bound[i] = b
	}
	return bound, nil
}

func (t *Table) bindOne(sig MethodSignature, p Param, v value.Value, present bool) (Bound, error) {
	def, err := t.types.Resolve(p.Type)
	if err != nil {
		return Bound{}, argumentError(sig.Name, p.Name, ErrArgumentTypeMismatch, err)
	}

	if !p.Optional {
		if !present {
			return Bound{}, argumentError(sig.Name, p.Name, ErrMissingArgument, nil)
		}
		if err = value.Check(t.types, p.Type, v); err != nil {
			return Bound{}, argumentError(sig.Name, p.Name, ErrArgumentTypeMismatch, err)
		}
		return Bound{Param: p, Def: def, Value: v}, nil
	}

	wire := registry.Option(p.Type)
	switch {
	case !present:
		v = value.None()
	case v.Kind() == value.KindOption && def.Kind != registry.KindOption:
		// already wrapped
	default:
		v = value.Some(v)
	}
	if err = value.CheckDef(t.types, wire, v); err != nil {
		return Bound{}, argumentError(sig.Name, p.Name, ErrArgumentTypeMismatch, err)
	}
	return Bound{Param: p, Def: wire, Value: v}, nil
}

// BindNative coerces plain Go arguments with value.FromNative and binds
// them. A nil entry counts as not supplied.
func (t *Table) BindNative(sig MethodSignature, args map[string]any) ([]Bound, error) {
	for name := range args {
		if _, _, ok := sig.Param(name); !ok {
			return nil, argumentError(sig.Name, name, ErrUnexpectedArgument, nil)
		}
	}

	named := make([]Arg, 0, len(args))
	for _, p := range sig.Params {
		in, ok := args[p.Name]
		if !ok || in == nil {
			continue
		}
		v, err := value.FromNative(t.types, p.Type, in)
		if err != nil {
			return nil, argumentError(sig.Name, p.Name, ErrArgumentTypeMismatch, err)
		}
		named = append(named, Arg{Name: p.Name, Value: v})
	}
	return t.Bind(sig, named)
}

// BindPositional is BindNative with arguments given in declared order.
// Trailing parameters may be left out.
func (t *Table) BindPositional(sig MethodSignature, args []any) ([]Bound, error) {
	if len(args) > len(sig.Params) {
		return nil, argumentError(sig.Name, "", ErrUnexpectedArgument, errTooManyArgs(len(args), len(sig.Params)))
	}
	named := make(map[string]any, len(args))
	for i, in := range args {
		named[sig.Params[i].Name] = in
	}
	return t.BindNative(sig, named)
}
