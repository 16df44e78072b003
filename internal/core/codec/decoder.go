package codec

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"unicode/utf8"

	"github.com/zeusync/typedrpc/internal/core/schema/registry"
	"github.com/zeusync/typedrpc/internal/core/schema/value"
)

const (
	optionNone byte = 0
	optionSome byte = 1

	// Enums with more variants than this carry a compact discriminant.
	maxByteVariants = 255
)

type decoder struct {
	walker
	types Resolver
	opts  Options
	data  []byte
	pos   int
	// empty is what is left of Options.MaxEmptyItems.
	empty  uint64
	widths *sync.Map
}

func (d *decoder) fail(def registry.TypeDef, err error) error {
	return &Error{
		Op:          OpDecode,
		Offset:      d.pos,
		Path:        d.where(),
		Constructor: def.Kind,
		Type:        def.String(),
		Err:         err,
	}
}

func (d *decoder) remaining() int {
	return len(d.data) - d.pos
}

// take consumes n bytes after checking they are present.
func (d *decoder) take(def registry.TypeDef, n int) ([]byte, error) {
	if n < 0 || n > d.remaining() {
		return nil, d.fail(def, fmt.Errorf("%w: need %d bytes, %d left", ErrTruncatedInput, n, d.remaining()))
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) compact(def registry.TypeDef) (uint64, error) {
	n, size, err := DecodeCompact(d.data, d.pos)
	if err != nil {
		return 0, d.fail(def, err)
	}
	d.pos += size
	return n, nil
}

func (d *decoder) length(def registry.TypeDef) (int, error) {
	n, err := d.compact(def)
	if err != nil {
		return 0, err
	}
	if n > d.opts.MaxSequenceLength {
		return 0, d.fail(def, fmt.Errorf("%w: %d > %d", ErrSequenceTooLong, n, d.opts.MaxSequenceLength))
	}
	return int(n), nil
}

func (d *decoder) resolve(def registry.TypeDef, name registry.TypeName) (registry.TypeDef, error) {
	resolved, err := d.types.Resolve(name)
	if err != nil {
		return registry.TypeDef{}, d.fail(def, err)
	}
	return resolved, nil
}

func (d *decoder) decode(def registry.TypeDef, depth int) (value.Value, error) {
	if depth > d.opts.MaxDepth {
		return value.Value{}, d.fail(def, ErrDepthExceeded)
	}

	switch def.Kind {
	case registry.KindAlias:
		target, err := d.resolve(def, def.Target)
		if err != nil {
			return value.Value{}, err
		}
		return d.decode(target, depth)

	case registry.KindPrimitive:
		return d.decodePrimitive(def)

	case registry.KindFixedArray:
		items, err := d.decodeItems(def, def.Elem, int(def.Length), depth)
		if err != nil {
			return value.Value{}, err
		}
		return value.Array(items...), nil

	case registry.KindSequence:
		n, err := d.length(def)
		if err != nil {
			return value.Value{}, err
		}
		items, err := d.decodeItems(def, def.Elem, n, depth)
		if err != nil {
			return value.Value{}, err
		}
		return value.Sequence(items...), nil

	case registry.KindTuple:
		items, err := d.decodeMembers(def, def.Members, depth)
		if err != nil {
			return value.Value{}, err
		}
		return value.Tuple(items...), nil

	case registry.KindMap2:
		items, err := d.decodeMembers(def, []registry.TypeName{def.Key, def.Value}, depth)
		if err != nil {
			return value.Value{}, err
		}
		return value.Tuple(items...), nil

	case registry.KindStruct:
		fields := make([]value.Field, len(def.Fields))
		for i, f := range def.Fields {
			fieldDef, err := d.resolve(def, f.Type)
			if err != nil {
				return value.Value{}, err
			}
			d.pushName(f.Name)
			v, err := d.decode(fieldDef, depth+1)
			if err != nil {
				return value.Value{}, err
			}
			d.pop()
			fields[i] = value.Field{Name: f.Name, Value: v}
		}
		return value.Record(fields...), nil

	case registry.KindEnum:
		return d.decodeEnum(def, depth)

	case registry.KindOption:
		tag, err := d.take(def, 1)
		if err != nil {
			return value.Value{}, err
		}
		switch tag[0] {
		case optionNone:
			return value.None(), nil
		case optionSome:
			inner, err := d.resolve(def, def.Elem)
			if err != nil {
				return value.Value{}, err
			}
			v, err := d.decode(inner, depth+1)
			if err != nil {
				return value.Value{}, err
			}
			return value.Some(v), nil
		default:
			d.pos--
			return value.Value{}, d.fail(def, fmt.Errorf("%w: %d", ErrInvalidOptionTag, tag[0]))
		}

	default:
		return value.Value{}, d.fail(def, fmt.Errorf("%w: unsupported constructor", ErrShapeMismatch))
	}
}

func (d *decoder) decodeEnum(def registry.TypeDef, depth int) (value.Value, error) {
	start := d.pos
	var index uint64
	if len(def.Variants) <= maxByteVariants {
		b, err := d.take(def, 1)
		if err != nil {
			return value.Value{}, err
		}
		index = uint64(b[0])
	} else {
		n, err := d.compact(def)
		if err != nil {
			return value.Value{}, err
		}
		index = n
	}
	if index >= uint64(len(def.Variants)) {
		d.pos = start
		return value.Value{}, d.fail(def, fmt.Errorf("%w: discriminant %d of %d variants", ErrUnknownVariant, index, len(def.Variants)))
	}

	variant := def.Variants[index]
	if variant.IsUnit() {
		return value.Enum(int(index), variant.Name), nil
	}
	payloadDef, err := d.resolve(def, variant.Payload)
	if err != nil {
		return value.Value{}, err
	}
	d.pushName(variant.Name)
	payload, err := d.decode(payloadDef, depth+1)
	if err != nil {
		return value.Value{}, err
	}
	d.pop()
	return value.EnumWith(int(index), variant.Name, payload), nil
}

func (d *decoder) decodeItems(def registry.TypeDef, elem registry.TypeName, n int, depth int) ([]value.Value, error) {
	elemDef, err := d.resolve(def, elem)
	if err != nil {
		return nil, err
	}
	if err = d.reserve(def, elem, n); err != nil {
		return nil, err
	}
	items := make([]value.Value, 0, n)
	for i := 0; i < n; i++ {
		d.pushItem(i)
		v, err := d.decode(elemDef, depth+1)
		if err != nil {
			return nil, err
		}
		d.pop()
		items = append(items, v)
	}
	return items, nil
}

// reserve checks that n elements of elem can be present before any of
// them is decoded. Elements with a wire width are bounded by the input left;
// zero-width ones draw on the per-decode empty budget.
func (d *decoder) reserve(def registry.TypeDef, elem registry.TypeName, n int) error {
	if n == 0 {
		return nil
	}
	width := d.width(elem)
	if width == 0 {
		if uint64(n) > d.empty {
			return d.fail(def, fmt.Errorf("%w: %d zero-width elements, %d allowed", ErrSequenceTooLong, n, d.empty))
		}
		d.empty -= uint64(n)
		return nil
	}
	if uint64(n) > uint64(d.remaining())/width {
		return d.fail(def, fmt.Errorf("%w: %d elements of at least %d bytes, %d left", ErrTruncatedInput, n, width, d.remaining()))
	}
	return nil
}

func (d *decoder) width(name registry.TypeName) uint64 {
	if w, ok := d.widths.Load(name); ok {
		return w.(uint64)
	}
	s := sizer{types: d.types, memo: make(map[registry.TypeName]uint64)}
	w := s.named(name, d.opts.MaxDepth)
	d.widths.Store(name, w)
	return w
}

const maxWireSize = 1 << 62

// sizer computes the smallest number of bytes any value of a type
// occupies. Unresolvable or too deeply nested parts count as zero, which
// only ever loosens the bound.
type sizer struct {
	types Resolver
	memo  map[registry.TypeName]uint64
}

func (s *sizer) named(name registry.TypeName, depth int) uint64 {
	if w, ok := s.memo[name]; ok {
		return w
	}
	if depth < 0 {
		return 0
	}
	// Placeholder for recursive references still being measured.
	s.memo[name] = 0
	def, err := s.types.Resolve(name)
	if err != nil {
		return 0
	}
	w := s.size(def, depth)
	s.memo[name] = w
	return w
}

func (s *sizer) size(def registry.TypeDef, depth int) uint64 {
	var total uint64
	add := func(names ...registry.TypeName) {
		for _, name := range names {
			total = saturatingAdd(total, s.named(name, depth-1))
		}
	}

	switch def.Kind {
	case registry.KindAlias:
		add(def.Target)
	case registry.KindPrimitive:
		if def.Primitive == registry.Text {
			return 1
		}
		return uint64(def.Primitive.Size())
	case registry.KindSequence, registry.KindOption, registry.KindEnum:
		return 1
	case registry.KindFixedArray:
		add(def.Elem)
		if total != 0 && uint64(def.Length) > maxWireSize/total {
			return maxWireSize
		}
		return total * uint64(def.Length)
	case registry.KindTuple:
		add(def.Members...)
	case registry.KindMap2:
		add(def.Key, def.Value)
	case registry.KindStruct:
		for _, f := range def.Fields {
			add(f.Type)
		}
	}
	return total
}

func saturatingAdd(a, b uint64) uint64 {
	if a+b > maxWireSize || a+b < a {
		return maxWireSize
	}
	return a + b
}

func (d *decoder) decodeMembers(def registry.TypeDef, members []registry.TypeName, depth int) ([]value.Value, error) {
	items := make([]value.Value, len(members))
	for i, member := range members {
		memberDef, err := d.resolve(def, member)
		if err != nil {
			return nil, err
		}
		d.pushMember(i)
		v, err := d.decode(memberDef, depth+1)
		if err != nil {
			return nil, err
		}
		d.pop()
		items[i] = v
	}
	return items, nil
}

func (d *decoder) decodePrimitive(def registry.TypeDef) (value.Value, error) {
	kind := def.Primitive
	switch kind {
	case registry.Bool:
		b, err := d.take(def, 1)
		if err != nil {
			return value.Value{}, err
		}
		switch b[0] {
		case 0:
			return value.Bool(false), nil
		case 1:
			return value.Bool(true), nil
		default:
			d.pos--
			return value.Value{}, d.fail(def, fmt.Errorf("%w: %d", ErrInvalidBoolean, b[0]))
		}

	case registry.Text:
		n, err := d.length(def)
		if err != nil {
			return value.Value{}, err
		}
		start := d.pos
		b, err := d.take(def, n)
		if err != nil {
			return value.Value{}, err
		}
		if !utf8.Valid(b) {
			d.pos = start
			return value.Value{}, d.fail(def, ErrInvalidUTF8)
		}
		return value.Text(string(b)), nil
	}

	size := kind.Size()
	b, err := d.take(def, size)
	if err != nil {
		return value.Value{}, err
	}
	return readInt(kind, b), nil
}

// readInt interprets b as a little-endian integer of the given kind.
func readInt(kind registry.PrimitiveKind, b []byte) value.Value {
	size := len(b)
	if size <= 8 {
		var tmp [8]byte
		copy(tmp[:], b)
		raw := binary.LittleEndian.Uint64(tmp[:])
		if !kind.Signed() {
			return value.Uint(raw)
		}
		shift := uint(64 - 8*size)
		return value.Int(int64(raw<<shift) >> shift)
	}

	be := make([]byte, size)
	for i := range b {
		be[size-1-i] = b[i]
	}
	n := new(big.Int).SetBytes(be)
	if kind.Signed() && b[size-1]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(8*size)))
	}
	return value.BigInt(n)
}
