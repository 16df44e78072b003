package registry

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeName identifies a registered type. Names are case-sensitive.
type TypeName string

// PrimitiveKind enumerates the fixed set of leaf types.
type PrimitiveKind uint8

const (
	U8 PrimitiveKind = iota + 1
	U16
	U32
	U64
	U128
	I8
	I16
	I32
	I64
	I128
	Bool
	Text
)

var primitiveNames = map[PrimitiveKind]string{
	U8: "u8", U16: "u16", U32: "u32", U64: "u64", U128: "u128",
	I8: "i8", I16: "i16", I32: "i32", I64: "i64", I128: "i128",
	Bool: "bool", Text: "Text",
}

func (k PrimitiveKind) String() string {
	if name, ok := primitiveNames[k]; ok {
		return name
	}
	return "primitive(" + strconv.Itoa(int(k)) + ")"
}

// IsInteger reports whether k is one of the fixed-width integer kinds.
func (k PrimitiveKind) IsInteger() bool {
	return k >= U8 && k <= I128
}

// Signed reports whether k is a signed integer kind.
func (k PrimitiveKind) Signed() bool {
	return k >= I8 && k <= I128
}

// Size is the wire width in bytes of an integer kind, 1 for Bool and 0 for
// Text, which is length-prefixed.
func (k PrimitiveKind) Size() int {
	switch k {
	case U8, I8, Bool:
		return 1
	case U16, I16:
		return 2
	case U32, I32:
		return 4
	case U64, I64:
		return 8
	case U128, I128:
		return 16
	default:
		return 0
	}
}

// DefKind is the constructor tag of a TypeDef.
type DefKind uint8

const (
	KindAlias DefKind = iota + 1
	KindPrimitive
	KindFixedArray
	KindSequence
	KindTuple
	KindStruct
	KindEnum
	KindOption
	KindMap2
)

func (k DefKind) String() string {
	switch k {
	case KindAlias:
		return "Alias"
	case KindPrimitive:
		return "Primitive"
	case KindFixedArray:
		return "FixedArray"
	case KindSequence:
		return "Sequence"
	case KindTuple:
		return "Tuple"
	case KindStruct:
		return "Struct"
	case KindEnum:
		return "Enum"
	case KindOption:
		return "Option"
	case KindMap2:
		return "Map2"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Field is a named struct member. Declaration order is wire order.
type Field struct {
	Name string
	Type TypeName
}

// Variant is an enum case. An empty Payload marks a unit variant.
type Variant struct {
	Name    string
	Payload TypeName
}

func (v Variant) IsUnit() bool { return v.Payload == "" }

// TypeDef is a closed tagged variant describing one schema type. Only the
// members relevant to Kind are set; use the constructor functions below.
type TypeDef struct {
	Kind      DefKind
	Target    TypeName      // Alias
	Primitive PrimitiveKind // Primitive
	Elem      TypeName      // FixedArray, Sequence, Option
	Length    uint32        // FixedArray
	Members   []TypeName    // Tuple
	Fields    []Field       // Struct
	Variants  []Variant     // Enum
	Key       TypeName      // Map2
	Value     TypeName      // Map2
}

func Alias(target TypeName) TypeDef {
	return TypeDef{Kind: KindAlias, Target: target}
}

func Primitive(kind PrimitiveKind) TypeDef {
	return TypeDef{Kind: KindPrimitive, Primitive: kind}
}

func FixedArray(elem TypeName, length uint32) TypeDef {
	return TypeDef{Kind: KindFixedArray, Elem: elem, Length: length}
}

func Sequence(elem TypeName) TypeDef {
	return TypeDef{Kind: KindSequence, Elem: elem}
}

func Tuple(members ...TypeName) TypeDef {
	return TypeDef{Kind: KindTuple, Members: members}
}

func Struct(fields ...Field) TypeDef {
	return TypeDef{Kind: KindStruct, Fields: fields}
}

func Enum(variants ...Variant) TypeDef {
	return TypeDef{Kind: KindEnum, Variants: variants}
}

// UnitEnum builds an enum whose variants carry no payload.
func UnitEnum(names ...string) TypeDef {
	variants := make([]Variant, len(names))
	for i, name := range names {
		variants[i] = Variant{Name: name}
	}
	return Enum(variants...)
}

func Option(inner TypeName) TypeDef {
	return TypeDef{Kind: KindOption, Elem: inner}
}

func Map2(key, value TypeName) TypeDef {
	return TypeDef{Kind: KindMap2, Key: key, Value: value}
}

// References lists the type names this definition points at, in
// declaration order. Unit variants contribute nothing.
func (d TypeDef) References() []TypeName {
	switch d.Kind {
	case KindAlias:
		return []TypeName{d.Target}
	case KindFixedArray, KindSequence, KindOption:
		return []TypeName{d.Elem}
	case KindTuple:
		return append([]TypeName(nil), d.Members...)
	case KindStruct:
		refs := make([]TypeName, len(d.Fields))
		for i, f := range d.Fields {
			refs[i] = f.Type
		}
		return refs
	case KindEnum:
		refs := make([]TypeName, 0, len(d.Variants))
		for _, v := range d.Variants {
			if !v.IsUnit() {
				refs = append(refs, v.Payload)
			}
		}
		return refs
	case KindMap2:
		return []TypeName{d.Key, d.Value}
	default:
		return nil
	}
}

// FieldIndex returns the position of a struct field, or -1.
func (d TypeDef) FieldIndex(name string) int {
	for i, f := range d.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// VariantIndex returns the discriminant of a named enum variant, or -1.
func (d TypeDef) VariantIndex(name string) int {
	for i, v := range d.Variants {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// String renders the definition in the type-expression syntax used by
// schema sources. The output is canonical and feeds Registry.Fingerprint.
func (d TypeDef) String() string {
	switch d.Kind {
	case KindAlias:
		return string(d.Target)
	case KindPrimitive:
		return d.Primitive.String()
	case KindFixedArray:
		return fmt.Sprintf("[%s; %d]", d.Elem, d.Length)
	case KindSequence:
		return "Vec<" + string(d.Elem) + ">"
	case KindTuple:
		return "(" + joinNames(d.Members) + ")"
	case KindOption:
		return "Option<" + string(d.Elem) + ">"
	case KindMap2:
		return "(" + string(d.Key) + ", " + string(d.Value) + ")"
	case KindStruct:
		parts := make([]string, len(d.Fields))
		for i, f := range d.Fields {
			parts[i] = f.Name + ": " + string(f.Type)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindEnum:
		parts := make([]string, len(d.Variants))
		for i, v := range d.Variants {
			if v.IsUnit() {
				parts[i] = v.Name
			} else {
				parts[i] = v.Name + "(" + string(v.Payload) + ")"
			}
		}
		return "enum{" + strings.Join(parts, " | ") + "}"
	default:
		return d.Kind.String()
	}
}

func joinNames(names []TypeName) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

// check performs the reference-independent sanity checks on a definition.
func (d TypeDef) check() error {
	switch d.Kind {
	case KindAlias:
		if d.Target == "" {
			return fmt.Errorf("%w: alias without target", ErrInvalidDefinition)
		}
	case KindPrimitive:
		if _, ok := primitiveNames[d.Primitive]; !ok {
			return fmt.Errorf("%w: unknown primitive kind %d", ErrInvalidDefinition, d.Primitive)
		}
	case KindFixedArray, KindSequence, KindOption:
		if d.Elem == "" {
			return fmt.Errorf("%w: %s without element type", ErrInvalidDefinition, d.Kind)
		}
	case KindTuple:
		for i, m := range d.Members {
			if m == "" {
				return fmt.Errorf("%w: tuple member %d has no type", ErrInvalidDefinition, i)
			}
		}
	case KindStruct:
		seen := make(map[string]struct{}, len(d.Fields))
		for _, f := range d.Fields {
			if f.Name == "" || f.Type == "" {
				return fmt.Errorf("%w: struct field %q is incomplete", ErrInvalidDefinition, f.Name)
			}
			if _, dup := seen[f.Name]; dup {
				return fmt.Errorf("%w: duplicate struct field %q", ErrInvalidDefinition, f.Name)
			}
			seen[f.Name] = struct{}{}
		}
	case KindEnum:
		if len(d.Variants) == 0 {
			return fmt.Errorf("%w: enum without variants", ErrInvalidDefinition)
		}
		seen := make(map[string]struct{}, len(d.Variants))
		for _, v := range d.Variants {
			if v.Name == "" {
				return fmt.Errorf("%w: unnamed enum variant", ErrInvalidDefinition)
			}
			if _, dup := seen[v.Name]; dup {
				return fmt.Errorf("%w: duplicate enum variant %q", ErrInvalidDefinition, v.Name)
			}
			seen[v.Name] = struct{}{}
		}
	case KindMap2:
		if d.Key == "" || d.Value == "" {
			return fmt.Errorf("%w: map entry needs key and value types", ErrInvalidDefinition)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidDefinition, d.Kind)
	}
	return nil
}
