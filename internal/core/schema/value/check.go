package value

import (
	"fmt"
	"unicode/utf8"

	"github.com/zeusync/typedrpc/internal/core/schema/registry"
)

// Check reports whether v is encodable under the named type without
// producing any bytes. The error wraps ErrShapeMismatch, ErrUnknownVariant
// or ErrIntegerOverflow and is prefixed with the path of the offending
// element.
func Check(r Resolver, name registry.TypeName, v Value) error {
	def, err := r.Resolve(name)
	if err != nil {
		return err
	}
	return check(r, def, string(name), v)
}

// CheckDef is Check against an already resolved definition.
func CheckDef(r Resolver, def registry.TypeDef, v Value) error {
	return check(r, def, def.String(), v)
}

func check(r Resolver, def registry.TypeDef, path string, v Value) error {
	switch def.Kind {
	case registry.KindAlias:
		return checkNamed(r, def.Target, path, v)

	case registry.KindPrimitive:
		return checkPrimitive(def.Primitive, path, v)

	case registry.KindFixedArray:
		if v.kind != KindArray {
			return mismatch(path, "want %s, got %s", def, v.kind)
		}
		if len(v.items) != int(def.Length) {
			return mismatch(path, "%d elements, want %d", len(v.items), def.Length)
		}
		return checkItems(r, def.Elem, path, v.items)

	case registry.KindSequence:
		if v.kind != KindSequence {
			return mismatch(path, "want %s, got %s", def, v.kind)
		}
		return checkItems(r, def.Elem, path, v.items)

	case registry.KindTuple:
		return checkMembers(r, def.Members, path, v)

	case registry.KindMap2:
		return checkMembers(r, []registry.TypeName{def.Key, def.Value}, path, v)

	case registry.KindStruct:
		if v.kind != KindRecord {
			return mismatch(path, "want struct, got %s", v.kind)
		}
		if len(v.items) != len(def.Fields) {
			return mismatch(path, "%d fields, want %d", len(v.items), len(def.Fields))
		}
		for i, f := range def.Fields {
			if v.names[i] != f.Name {
				return mismatch(path, "field %d is %q, want %q", i, v.names[i], f.Name)
			}
			if err := checkNamed(r, f.Type, path+"."+f.Name, v.items[i]); err != nil {
				return err
			}
		}
		return nil

	case registry.KindEnum:
		if v.kind != KindEnum {
			return mismatch(path, "want enum, got %s", v.kind)
		}
		if v.index < 0 || v.index >= len(def.Variants) {
			return fmt.Errorf("%s: %w: index %d of %d", path, ErrUnknownVariant, v.index, len(def.Variants))
		}
		variant := def.Variants[v.index]
		if variant.IsUnit() != (v.payload == nil) {
			return mismatch(path, "payload presence for variant %s", variant.Name)
		}
		if variant.IsUnit() {
			return nil
		}
		return checkNamed(r, variant.Payload, path+"."+variant.Name, *v.payload)

	case registry.KindOption:
		if v.kind != KindOption {
			return mismatch(path, "want option, got %s", v.kind)
		}
		if !v.flag {
			return nil
		}
		return checkNamed(r, def.Elem, path, *v.payload)

	default:
		return mismatch(path, "unsupported definition %s", def.Kind)
	}
}

func checkNamed(r Resolver, name registry.TypeName, path string, v Value) error {
	def, err := r.Resolve(name)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return check(r, def, path, v)
}

func checkItems(r Resolver, elem registry.TypeName, path string, items []Value) error {
	def, err := r.Resolve(elem)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for i, item := range items {
		if err = check(r, def, fmt.Sprintf("%s[%d]", path, i), item); err != nil {
			return err
		}
	}
	return nil
}

func checkMembers(r Resolver, members []registry.TypeName, path string, v Value) error {
	if v.kind != KindTuple {
		return mismatch(path, "want tuple, got %s", v.kind)
	}
	if len(v.items) != len(members) {
		return mismatch(path, "%d members, want %d", len(v.items), len(members))
	}
	for i, m := range members {
		if err := checkNamed(r, m, fmt.Sprintf("%s.%d", path, i), v.items[i]); err != nil {
			return err
		}
	}
	return nil
}

func checkPrimitive(kind registry.PrimitiveKind, path string, v Value) error {
	switch {
	case kind == registry.Bool:
		if v.kind != KindBool {
			return mismatch(path, "want bool, got %s", v.kind)
		}
	case kind == registry.Text:
		if v.kind != KindText {
			return mismatch(path, "want text, got %s", v.kind)
		}
		if !utf8.ValidString(v.text) {
			return mismatch(path, "text is not valid UTF-8")
		}
	default:
		if v.kind != KindInt {
			return mismatch(path, "want %s, got %s", kind, v.kind)
		}
		if !InRange(kind, v.num) {
			return fmt.Errorf("%s: %w: %s does not fit %s", path, ErrIntegerOverflow, v.num, kind)
		}
	}
	return nil
}
