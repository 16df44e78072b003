package value

import (
	"fmt"

	"github.com/zeusync/typedrpc/internal/core/schema/registry"
)

// NewRecord builds a struct value checked against def. Fields may be given
// in any order; the result is laid out in declaration order. A missing,
// repeated or unknown field is a shape mismatch.
func NewRecord(def registry.TypeDef, fields ...Field) (Value, error) {
	if def.Kind != registry.KindStruct {
		return Value{}, fmt.Errorf("%w: expected %s, building a record", ErrShapeMismatch, def.Kind)
	}
	if len(fields) != len(def.Fields) {
		return Value{}, fmt.Errorf("%w: struct has %d fields, got %d", ErrShapeMismatch, len(def.Fields), len(fields))
	}

	ordered := make([]Field, len(def.Fields))
	filled := make([]bool, len(def.Fields))
	for _, f := range fields {
		i := def.FieldIndex(f.Name)
		if i < 0 {
			return Value{}, fmt.Errorf("%w: unknown field %q", ErrShapeMismatch, f.Name)
		}
		if filled[i] {
			return Value{}, fmt.Errorf("%w: field %q given twice", ErrShapeMismatch, f.Name)
		}
		ordered[i], filled[i] = f, true
	}
	return Record(ordered...), nil
}

// NewEnum builds an enum value checked against def. payload must be nil
// for unit variants and non-nil otherwise.
func NewEnum(def registry.TypeDef, index int, payload *Value) (Value, error) {
	if def.Kind != registry.KindEnum {
		return Value{}, fmt.Errorf("%w: expected %s, building an enum", ErrShapeMismatch, def.Kind)
	}
	if index < 0 || index >= len(def.Variants) {
		return Value{}, fmt.Errorf("%w: index %d, enum has %d variants", ErrUnknownVariant, index, len(def.Variants))
	}
	variant := def.Variants[index]
	switch {
	case variant.IsUnit() && payload != nil:
		return Value{}, fmt.Errorf("%w: variant %s carries no payload", ErrShapeMismatch, variant.Name)
	case !variant.IsUnit() && payload == nil:
		return Value{}, fmt.Errorf("%w: variant %s requires a %s payload", ErrShapeMismatch, variant.Name, variant.Payload)
	case payload == nil:
		return Enum(index, variant.Name), nil
	default:
		return EnumWith(index, variant.Name, *payload), nil
	}
}

// NewEnumByName is NewEnum addressed by variant name.
func NewEnumByName(def registry.TypeDef, name string, payload *Value) (Value, error) {
	if def.Kind != registry.KindEnum {
		return Value{}, fmt.Errorf("%w: expected %s, building an enum", ErrShapeMismatch, def.Kind)
	}
	index := def.VariantIndex(name)
	if index < 0 {
		return Value{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return NewEnum(def, index, payload)
}
