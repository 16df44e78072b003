package codec

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/zeusync/typedrpc/internal/core/schema/registry"
	"github.com/zeusync/typedrpc/internal/core/schema/value"
)

type encoder struct {
	walker
	types Resolver
	opts  Options
	buf   []byte
}

func (e *encoder) fail(def registry.TypeDef, err error) error {
	return &Error{
		Op:          OpEncode,
		Offset:      len(e.buf),
		Path:        e.where(),
		Constructor: def.Kind,
		Type:        def.String(),
		Err:         err,
	}
}

func (e *encoder) mismatch(def registry.TypeDef, v value.Value) error {
	return e.fail(def, fmt.Errorf("%w: %s value", ErrShapeMismatch, v.Kind()))
}

func (e *encoder) resolve(def registry.TypeDef, name registry.TypeName) (registry.TypeDef, error) {
	resolved, err := e.types.Resolve(name)
	if err != nil {
		return registry.TypeDef{}, e.fail(def, err)
	}
	return resolved, nil
}

func (e *encoder) encode(def registry.TypeDef, v value.Value, depth int) error {
	if depth > e.opts.MaxDepth {
		return e.fail(def, ErrDepthExceeded)
	}

	switch def.Kind {
	case registry.KindAlias:
		target, err := e.resolve(def, def.Target)
		if err != nil {
			return err
		}
		return e.encode(target, v, depth)

	case registry.KindPrimitive:
		return e.encodePrimitive(def, v)

	case registry.KindFixedArray:
		if v.Kind() != value.KindArray {
			return e.mismatch(def, v)
		}
		if v.Len() != int(def.Length) {
			return e.fail(def, fmt.Errorf("%w: %d elements, want %d", ErrShapeMismatch, v.Len(), def.Length))
		}
		return e.encodeItems(def, def.Elem, v.Items(), depth)

	case registry.KindSequence:
		if v.Kind() != value.KindSequence {
			return e.mismatch(def, v)
		}
		e.buf = AppendCompact(e.buf, uint64(v.Len()))
		return e.encodeItems(def, def.Elem, v.Items(), depth)

	case registry.KindTuple:
		return e.encodeTuple(def, def.Members, v, depth)

	case registry.KindMap2:
		return e.encodeTuple(def, []registry.TypeName{def.Key, def.Value}, v, depth)

	case registry.KindStruct:
		if v.Kind() != value.KindRecord {
			return e.mismatch(def, v)
		}
		if v.Len() != len(def.Fields) {
			return e.fail(def, fmt.Errorf("%w: %d fields, want %d", ErrShapeMismatch, v.Len(), len(def.Fields)))
		}
		names := v.FieldNames()
		for i, f := range def.Fields {
			if names[i] != f.Name {
				return e.fail(def, fmt.Errorf("%w: field %d is %q, want %q", ErrShapeMismatch, i, names[i], f.Name))
			}
			fieldDef, err := e.resolve(def, f.Type)
			if err != nil {
				return err
			}
			e.pushName(f.Name)
			if err = e.encode(fieldDef, v.Item(i), depth+1); err != nil {
				return err
			}
			e.pop()
		}
		return nil

	case registry.KindEnum:
		if v.Kind() != value.KindEnum {
			return e.mismatch(def, v)
		}
		index, _ := v.Variant()
		if index < 0 || index >= len(def.Variants) {
			return e.fail(def, fmt.Errorf("%w: index %d of %d", ErrUnknownVariant, index, len(def.Variants)))
		}
		variant := def.Variants[index]
		payload, hasPayload := v.Payload()
		if variant.IsUnit() == hasPayload {
			return e.fail(def, fmt.Errorf("%w: payload presence for variant %s", ErrShapeMismatch, variant.Name))
		}
		if len(def.Variants) <= maxByteVariants {
			e.buf = append(e.buf, byte(index))
		} else {
			e.buf = AppendCompact(e.buf, uint64(index))
		}
		if variant.IsUnit() {
			return nil
		}
		payloadDef, err := e.resolve(def, variant.Payload)
		if err != nil {
			return err
		}
		e.pushName(variant.Name)
		if err = e.encode(payloadDef, payload, depth+1); err != nil {
			return err
		}
		e.pop()
		return nil

	case registry.KindOption:
		if v.Kind() != value.KindOption {
			return e.mismatch(def, v)
		}
		if !v.IsSome() {
			e.buf = append(e.buf, optionNone)
			return nil
		}
		e.buf = append(e.buf, optionSome)
		inner, err := e.resolve(def, def.Elem)
		if err != nil {
			return err
		}
		payload, _ := v.Payload()
		return e.encode(inner, payload, depth+1)

	default:
		return e.fail(def, fmt.Errorf("%w: unsupported constructor", ErrShapeMismatch))
	}
}

func (e *encoder) encodeItems(def registry.TypeDef, elem registry.TypeName, items []value.Value, depth int) error {
	elemDef, err := e.resolve(def, elem)
	if err != nil {
		return err
	}
	for i, item := range items {
		e.pushItem(i)
		if err = e.encode(elemDef, item, depth+1); err != nil {
			return err
		}
		e.pop()
	}
	return nil
}

func (e *encoder) encodeTuple(def registry.TypeDef, members []registry.TypeName, v value.Value, depth int) error {
	if v.Kind() != value.KindTuple {
		return e.mismatch(def, v)
	}
	if v.Len() != len(members) {
		return e.fail(def, fmt.Errorf("%w: %d members, want %d", ErrShapeMismatch, v.Len(), len(members)))
	}
	for i, member := range members {
		memberDef, err := e.resolve(def, member)
		if err != nil {
			return err
		}
		e.pushMember(i)
		if err = e.encode(memberDef, v.Item(i), depth+1); err != nil {
			return err
		}
		e.pop()
	}
	return nil
}

func (e *encoder) encodePrimitive(def registry.TypeDef, v value.Value) error {
	kind := def.Primitive
	switch kind {
	case registry.Bool:
		b, ok := v.AsBool()
		if !ok {
			return e.mismatch(def, v)
		}
		if b {
			e.buf = append(e.buf, 1)
		} else {
			e.buf = append(e.buf, 0)
		}
		return nil

	case registry.Text:
		s, ok := v.AsText()
		if !ok {
			return e.mismatch(def, v)
		}
		if !utf8.ValidString(s) {
			return e.fail(def, ErrInvalidUTF8)
		}
		e.buf = AppendCompact(e.buf, uint64(len(s)))
		e.buf = append(e.buf, s...)
		return nil
	}

	if v.Kind() != value.KindInt {
		return e.mismatch(def, v)
	}
	n := v.Big()
	if !value.InRange(kind, n) {
		return e.fail(def, fmt.Errorf("%w: %s does not fit %s", ErrIntegerOverflow, n, kind))
	}
	e.buf = appendInt(e.buf, kind, n)
	return nil
}

// appendInt writes n little-endian in the fixed width of kind. n must be in
// range; negative values are written in two's complement.
func appendInt(dst []byte, kind registry.PrimitiveKind, n *big.Int) []byte {
	size := kind.Size()
	if size <= 8 {
		var raw uint64
		if n.Sign() < 0 {
			raw = uint64(n.Int64())
		} else {
			raw = n.Uint64()
		}
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], raw)
		return append(dst, tmp[:size]...)
	}

	if n.Sign() < 0 {
		n = new(big.Int).Add(n, new(big.Int).Lsh(big.NewInt(1), uint(size*8)))
	}
	be := n.FillBytes(make([]byte, size))
	for i := size - 1; i >= 0; i-- {
		dst = append(dst, be[i])
	}
	return dst
}
