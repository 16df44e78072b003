package value

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"unicode/utf8"

	"github.com/zeusync/typedrpc/internal/core/schema/registry"
	"github.com/zeusync/typedrpc/pkg/encoding"
)

// Resolver is the slice of the registry that coercion needs.
type Resolver interface {
	Resolve(name registry.TypeName) (registry.TypeDef, error)
}

// FromNative coerces a plain Go value into a Value shaped by the named type.
//
// Accepted inputs: Go integers, *big.Int, json.Number and decimal strings
// for integers; bool; string for Text; string, []byte or 0x-hex for u8
// arrays and vectors (plain strings and byte slices shorter than a fixed
// array are zero-padded on the right); slices for arrays, vectors and
// tuples; map[string]any for structs; a variant name or a single-key map
// for enums; nil for an absent option. A Value is passed through as is.
func FromNative(r Resolver, name registry.TypeName, in any) (Value, error) {
	def, err := r.Resolve(name)
	if err != nil {
		return Value{}, err
	}
	return fromNative(r, def, string(name), in)
}

func fromNative(r Resolver, def registry.TypeDef, path string, in any) (Value, error) {
	if v, ok := in.(Value); ok {
		return v, nil
	}

	switch def.Kind {
	case registry.KindPrimitive:
		return primitiveFromNative(def.Primitive, path, in)

	case registry.KindFixedArray:
		if bytesElem(r, def.Elem) {
			if b, ok, err := bytesFromNative(in); ok {
				if err != nil {
					return Value{}, mismatch(path, "%v", err)
				}
				if len(b) > int(def.Length) {
					return Value{}, mismatch(path, "%d bytes do not fit [u8; %d]", len(b), def.Length)
				}
				if s, isString := in.(string); isString && encoding.HasHexPrefix(s) && len(b) != int(def.Length) {
					return Value{}, mismatch(path, "hex value has %d bytes, want %d", len(b), def.Length)
				}
				padded := make([]byte, def.Length)
				copy(padded, b)
				return FixedBytes(padded), nil
			}
		}
		items, ok := asSlice(in)
		if !ok || len(items) != int(def.Length) {
			return Value{}, mismatch(path, "want %d-element list, got %T", def.Length, in)
		}
		out, err := listFromNative(r, def.Elem, path, items)
		if err != nil {
			return Value{}, err
		}
		return Array(out...), nil

	case registry.KindSequence:
		if bytesElem(r, def.Elem) {
			if b, ok, err := bytesFromNative(in); ok {
				if err != nil {
					return Value{}, mismatch(path, "%v", err)
				}
				return Bytes(b), nil
			}
		}
		if m, ok := in.(map[string]any); ok {
			return mapFromNative(r, def.Elem, path, m)
		}
		items, ok := asSlice(in)
		if !ok {
			return Value{}, mismatch(path, "want list, got %T", in)
		}
		out, err := listFromNative(r, def.Elem, path, items)
		if err != nil {
			return Value{}, err
		}
		return Sequence(out...), nil

	case registry.KindTuple:
		items, ok := asSlice(in)
		if !ok || len(items) != len(def.Members) {
			return Value{}, mismatch(path, "want %d-tuple, got %T", len(def.Members), in)
		}
		out := make([]Value, len(items))
		for i, item := range items {
			v, err := namedFromNative(r, def.Members[i], fmt.Sprintf("%s.%d", path, i), item)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return Tuple(out...), nil

	case registry.KindMap2:
		items, ok := asSlice(in)
		if !ok || len(items) != 2 {
			return Value{}, mismatch(path, "want key/value pair, got %T", in)
		}
		k, err := namedFromNative(r, def.Key, path+".key", items[0])
		if err != nil {
			return Value{}, err
		}
		v, err := namedFromNative(r, def.Value, path+".value", items[1])
		if err != nil {
			return Value{}, err
		}
		return Tuple(k, v), nil

	case registry.KindStruct:
		return structFromNative(r, def, path, in)

	case registry.KindEnum:
		return enumFromNative(r, def, path, in)

	case registry.KindOption:
		if in == nil {
			return None(), nil
		}
		inner, err := namedFromNative(r, def.Elem, path, in)
		if err != nil {
			return Value{}, err
		}
		return Some(inner), nil

	default:
		return Value{}, mismatch(path, "unsupported definition %s", def.Kind)
	}
}

func namedFromNative(r Resolver, name registry.TypeName, path string, in any) (Value, error) {
	def, err := r.Resolve(name)
	if err != nil {
		return Value{}, err
	}
	return fromNative(r, def, path, in)
}

func listFromNative(r Resolver, elem registry.TypeName, path string, items []any) ([]Value, error) {
	def, err := r.Resolve(elem)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(items))
	for i, item := range items {
		v, err := fromNative(r, def, fmt.Sprintf("%s[%d]", path, i), item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// mapFromNative turns map[string]any into a sequence of key/value pairs,
// ordered by key so the encoding is deterministic.
func mapFromNative(r Resolver, elem registry.TypeName, path string, m map[string]any) (Value, error) {
	def, err := r.Resolve(elem)
	if err != nil {
		return Value{}, err
	}
	if def.Kind != registry.KindMap2 {
		return Value{}, mismatch(path, "object given for a list of %s", elem)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Value, len(keys))
	for i, k := range keys {
		pair, err := fromNative(r, def, path+"."+k, []any{k, m[k]})
		if err != nil {
			return Value{}, err
		}
		out[i] = pair
	}
	return Sequence(out...), nil
}

func structFromNative(r Resolver, def registry.TypeDef, path string, in any) (Value, error) {
	if items, ok := asSlice(in); ok {
		if len(items) != len(def.Fields) {
			return Value{}, mismatch(path, "struct has %d fields, got %d values", len(def.Fields), len(items))
		}
		fields := make([]Field, len(items))
		for i, f := range def.Fields {
			v, err := namedFromNative(r, f.Type, path+"."+f.Name, items[i])
			if err != nil {
				return Value{}, err
			}
			fields[i] = Field{Name: f.Name, Value: v}
		}
		return Record(fields...), nil
	}

	m, ok := in.(map[string]any)
	if !ok {
		return Value{}, mismatch(path, "want object, got %T", in)
	}
	for k := range m {
		if def.FieldIndex(k) < 0 {
			return Value{}, mismatch(path, "unknown field %q", k)
		}
	}
	fields := make([]Field, len(def.Fields))
	for i, f := range def.Fields {
		raw, present := m[f.Name]
		if !present {
			fdef, err := r.Resolve(f.Type)
			if err != nil {
				return Value{}, err
			}
			if fdef.Kind != registry.KindOption {
				return Value{}, mismatch(path, "missing field %q", f.Name)
			}
		}
		v, err := namedFromNative(r, f.Type, path+"."+f.Name, raw)
		if err != nil {
			return Value{}, err
		}
		fields[i] = Field{Name: f.Name, Value: v}
	}
	return Record(fields...), nil
}

func enumFromNative(r Resolver, def registry.TypeDef, path string, in any) (Value, error) {
	switch t := in.(type) {
	case string:
		index := def.VariantIndex(t)
		if index < 0 {
			return Value{}, fmt.Errorf("%s: %w: %q", path, ErrUnknownVariant, t)
		}
		if !def.Variants[index].IsUnit() {
			return Value{}, mismatch(path, "variant %s requires a payload", t)
		}
		return Enum(index, t), nil
	case map[string]any:
		if len(t) != 1 {
			return Value{}, mismatch(path, "enum object needs exactly one variant key, got %d", len(t))
		}
		for name, raw := range t {
			index := def.VariantIndex(name)
			if index < 0 {
				return Value{}, fmt.Errorf("%s: %w: %q", path, ErrUnknownVariant, name)
			}
			variant := def.Variants[index]
			if variant.IsUnit() {
				if raw != nil {
					return Value{}, mismatch(path, "variant %s carries no payload", name)
				}
				return Enum(index, name), nil
			}
			payload, err := namedFromNative(r, variant.Payload, path+"."+name, raw)
			if err != nil {
				return Value{}, err
			}
			return EnumWith(index, name, payload), nil
		}
	}
	return Value{}, mismatch(path, "want variant name or object, got %T", in)
}

func primitiveFromNative(kind registry.PrimitiveKind, path string, in any) (Value, error) {
	switch kind {
	case registry.Bool:
		b, ok := in.(bool)
		if !ok {
			return Value{}, mismatch(path, "want bool, got %T", in)
		}
		return Bool(b), nil
	case registry.Text:
		switch t := in.(type) {
		case string:
			return Text(t), nil
		case []byte:
			if !utf8.Valid(t) {
				return Value{}, mismatch(path, "bytes are not valid UTF-8")
			}
			return Text(string(t)), nil
		}
		return Value{}, mismatch(path, "want string, got %T", in)
	}

	n, ok := toBig(in)
	if !ok {
		return Value{}, mismatch(path, "want %s, got %T", kind, in)
	}
	if !InRange(kind, n) {
		return Value{}, fmt.Errorf("%s: %w: %s does not fit %s", path, ErrIntegerOverflow, n, kind)
	}
	return Value{kind: KindInt, num: n}, nil
}

func toBig(in any) (*big.Int, bool) {
	switch t := in.(type) {
	case nil:
		return nil, false
	case *big.Int:
		if t == nil {
			return nil, false
		}
		return new(big.Int).Set(t), true
	case big.Int:
		return new(big.Int).Set(&t), true
	case json.Number:
		return new(big.Int).SetString(string(t), 10)
	case string:
		return new(big.Int).SetString(t, 10)
	case float64:
		f := big.NewFloat(t)
		if !f.IsInt() {
			return nil, false
		}
		n, _ := f.Int(nil)
		return n, true
	}

	rv := reflect.ValueOf(in)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Int).SetUint64(rv.Uint()), true
	default:
		return nil, false
	}
}

// bytesFromNative reports ok=false when in is not a byte-ish input at all,
// letting the caller fall back to element-wise list coercion.
func bytesFromNative(in any) ([]byte, bool, error) {
	switch t := in.(type) {
	case []byte:
		return t, true, nil
	case string:
		if encoding.HasHexPrefix(t) {
			b, err := encoding.HexDecode(t)
			return b, true, err
		}
		return []byte(t), true, nil
	default:
		return nil, false, nil
	}
}

func bytesElem(r Resolver, elem registry.TypeName) bool {
	def, err := r.Resolve(elem)
	return err == nil && def.Kind == registry.KindPrimitive && def.Primitive == registry.U8
}

func asSlice(in any) ([]any, bool) {
	switch t := in.(type) {
	case nil:
		return nil, false
	case []any:
		return t, true
	case []Value:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = v
		}
		return out, true
	}
	rv := reflect.ValueOf(in)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func mismatch(path, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", path, ErrShapeMismatch, fmt.Sprintf(format, args...))
}

// ToNative converts a Value into plain Go data suitable for JSON or YAML
// output: integers become uint64, int64 or *big.Int, byte arrays and
// vectors become 0x-hex strings, structs become maps, unit variants become
// their name and payload variants a single-key map.
func ToNative(r Resolver, name registry.TypeName, v Value) (any, error) {
	def, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return toNative(r, def, string(name), v)
}

func toNative(r Resolver, def registry.TypeDef, path string, v Value) (any, error) {
	switch def.Kind {
	case registry.KindPrimitive:
		switch {
		case def.Primitive == registry.Bool && v.kind == KindBool:
			return v.flag, nil
		case def.Primitive == registry.Text && v.kind == KindText:
			return v.text, nil
		case def.Primitive.IsInteger() && v.kind == KindInt:
			if n, ok := v.Uint64(); ok && !def.Primitive.Signed() {
				return n, nil
			}
			if n, ok := v.Int64(); ok && def.Primitive.Signed() {
				return n, nil
			}
			return v.Big(), nil
		}
	case registry.KindFixedArray, registry.KindSequence:
		if v.kind != KindArray && v.kind != KindSequence {
			break
		}
		if bytesElem(r, def.Elem) {
			if b, ok := v.AsBytes(); ok {
				return encoding.HexEncode(b), nil
			}
		}
		elem, err := r.Resolve(def.Elem)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(v.items))
		for i, item := range v.items {
			n, err := toNative(r, elem, fmt.Sprintf("%s[%d]", path, i), item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case registry.KindTuple, registry.KindMap2:
		members := def.Members
		if def.Kind == registry.KindMap2 {
			members = []registry.TypeName{def.Key, def.Value}
		}
		if v.kind != KindTuple || len(v.items) != len(members) {
			break
		}
		out := make([]any, len(members))
		for i, m := range members {
			n, err := namedToNative(r, m, fmt.Sprintf("%s.%d", path, i), v.items[i])
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case registry.KindStruct:
		if v.kind != KindRecord || len(v.items) != len(def.Fields) {
			break
		}
		out := make(map[string]any, len(def.Fields))
		for i, f := range def.Fields {
			n, err := namedToNative(r, f.Type, path+"."+f.Name, v.items[i])
			if err != nil {
				return nil, err
			}
			out[f.Name] = n
		}
		return out, nil
	case registry.KindEnum:
		if v.kind != KindEnum {
			break
		}
		if v.index < 0 || v.index >= len(def.Variants) {
			return nil, fmt.Errorf("%s: %w: index %d", path, ErrUnknownVariant, v.index)
		}
		variant := def.Variants[v.index]
		if variant.IsUnit() {
			return variant.Name, nil
		}
		if v.payload == nil {
			break
		}
		n, err := namedToNative(r, variant.Payload, path+"."+variant.Name, *v.payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{variant.Name: n}, nil
	case registry.KindOption:
		if v.kind != KindOption {
			break
		}
		if !v.flag {
			return nil, nil
		}
		return namedToNative(r, def.Elem, path, *v.payload)
	}
	return nil, mismatch(path, "%s value for %s definition", v.kind, def.Kind)
}

func namedToNative(r Resolver, name registry.TypeName, path string, v Value) (any, error) {
	def, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return toNative(r, def, path, v)
}
