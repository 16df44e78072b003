// Package value is the in-memory representation of anything the schema can
// describe. A Value carries no type of its own; it is only meaningful next
// to the registry.TypeDef it was built against.
package value

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindBool
	KindText
	KindArray
	KindSequence
	KindTuple
	KindRecord
	KindEnum
	KindOption
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	case KindArray:
		return "array"
	case KindSequence:
		return "sequence"
	case KindTuple:
		return "tuple"
	case KindRecord:
		return "record"
	case KindEnum:
		return "enum"
	case KindOption:
		return "option"
	default:
		return "invalid"
	}
}

// Value is an immutable tagged union. The zero Value is invalid.
type Value struct {
	kind    Kind
	num     *big.Int
	flag    bool
	text    string
	items   []Value
	names   []string
	index   int
	payload *Value
}

// Field is a named record member.
type Field struct {
	Name  string
	Value Value
}

func Uint(v uint64) Value {
	return Value{kind: KindInt, num: new(big.Int).SetUint64(v)}
}

func Int(v int64) Value {
	return Value{kind: KindInt, num: big.NewInt(v)}
}

// BigInt copies v; 128-bit integers are carried this way.
func BigInt(v *big.Int) Value {
	return Value{kind: KindInt, num: new(big.Int).Set(v)}
}

func Bool(v bool) Value {
	return Value{kind: KindBool, flag: v}
}

func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Array is a fixed-length list; its length must match the declared one.
func Array(items ...Value) Value {
	return Value{kind: KindArray, items: items}
}

func Sequence(items ...Value) Value {
	return Value{kind: KindSequence, items: items}
}

func Tuple(items ...Value) Value {
	return Value{kind: KindTuple, items: items}
}

// Record builds a struct value without checking it against a definition.
// Use NewRecord to validate field names and count.
func Record(fields ...Field) Value {
	v := Value{
		kind:  KindRecord,
		items: make([]Value, len(fields)),
		names: make([]string, len(fields)),
	}
	for i, f := range fields {
		v.names[i] = f.Name
		v.items[i] = f.Value
	}
	return v
}

// Enum builds a unit variant. name is informational; equality and the
// wire form only use index.
func Enum(index int, name string) Value {
	return Value{kind: KindEnum, index: index, text: name}
}

func EnumWith(index int, name string, payload Value) Value {
	return Value{kind: KindEnum, index: index, text: name, payload: &payload}
}

func Some(v Value) Value {
	return Value{kind: KindOption, flag: true, payload: &v}
}

func None() Value {
	return Value{kind: KindOption}
}

// Bytes is shorthand for a sequence of u8 values.
func Bytes(b []byte) Value {
	return Sequence(byteItems(b)...)
}

// FixedBytes is shorthand for a fixed array of u8 values.
func FixedBytes(b []byte) Value {
	return Array(byteItems(b)...)
}

func byteItems(b []byte) []Value {
	items := make([]Value, len(b))
	for i, c := range b {
		items[i] = Uint(uint64(c))
	}
	return items
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Big returns a copy of the integer payload, or nil for non-integers.
func (v Value) Big() *big.Int {
	if v.kind != KindInt {
		return nil
	}
	return new(big.Int).Set(v.num)
}

// Uint64 returns the integer payload if it fits in a uint64.
func (v Value) Uint64() (uint64, bool) {
	if v.kind != KindInt || !v.num.IsUint64() {
		return 0, false
	}
	return v.num.Uint64(), true
}

// Int64 returns the integer payload if it fits in an int64.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindInt || !v.num.IsInt64() {
		return 0, false
	}
	return v.num.Int64(), true
}

func (v Value) AsBool() (bool, bool) {
	return v.flag, v.kind == KindBool
}

func (v Value) AsText() (string, bool) {
	return v.text, v.kind == KindText
}

// Len is the number of items of an array, sequence, tuple or record.
func (v Value) Len() int { return len(v.items) }

// Items exposes the members of a list-like or record value. Callers must
// not modify the returned slice.
func (v Value) Items() []Value { return v.items }

func (v Value) Item(i int) Value { return v.items[i] }

// FieldNames returns the record field names in order.
func (v Value) FieldNames() []string { return v.names }

// Field looks up a record member by name.
func (v Value) Field(name string) (Value, bool) {
	for i, n := range v.names {
		if n == name {
			return v.items[i], true
		}
	}
	return Value{}, false
}

// Variant returns the discriminant and the informational name of an enum.
func (v Value) Variant() (int, string) { return v.index, v.text }

// Payload returns the carried value of an enum variant or present option.
func (v Value) Payload() (Value, bool) {
	if v.payload == nil {
		return Value{}, false
	}
	return *v.payload, true
}

// IsSome reports whether an option value is present.
func (v Value) IsSome() bool { return v.kind == KindOption && v.flag }

// AsBytes collapses an array or sequence of integers in 0..255 into bytes.
func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindArray && v.kind != KindSequence {
		return nil, false
	}
	out := make([]byte, len(v.items))
	for i, item := range v.items {
		n, ok := item.Uint64()
		if !ok || n > 0xff {
			return nil, false
		}
		out[i] = byte(n)
	}
	return out, true
}

// Equal reports deep equality. Record field names take part in the
// comparison; enum variant names do not.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInvalid:
		return true
	case KindInt:
		return v.num.Cmp(other.num) == 0
	case KindBool:
		return v.flag == other.flag
	case KindText:
		return v.text == other.text
	case KindRecord:
		if len(v.names) != len(other.names) {
			return false
		}
		for i := range v.names {
			if v.names[i] != other.names[i] {
				return false
			}
		}
		return equalItems(v.items, other.items)
	case KindArray, KindSequence, KindTuple:
		return equalItems(v.items, other.items)
	case KindEnum:
		return v.index == other.index && equalPayload(v.payload, other.payload)
	case KindOption:
		return v.flag == other.flag && equalPayload(v.payload, other.payload)
	default:
		return false
	}
}

func equalItems(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func equalPayload(a, b *Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.kind {
	case KindInt:
		sb.WriteString(v.num.String())
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.flag))
	case KindText:
		sb.WriteString(strconv.Quote(v.text))
	case KindArray, KindSequence:
		if b, ok := v.AsBytes(); ok && len(b) > 0 {
			fmt.Fprintf(sb, "0x%x", b)
			return
		}
		writeList(sb, "[", "]", v.items)
	case KindTuple:
		writeList(sb, "(", ")", v.items)
	case KindRecord:
		sb.WriteString("{")
		for i, item := range v.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.names[i])
			sb.WriteString(": ")
			item.write(sb)
		}
		sb.WriteString("}")
	case KindEnum:
		if v.text != "" {
			sb.WriteString(v.text)
		} else {
			sb.WriteString("#" + strconv.Itoa(v.index))
		}
		if v.payload != nil {
			sb.WriteString("(")
			v.payload.write(sb)
			sb.WriteString(")")
		}
	case KindOption:
		if !v.flag {
			sb.WriteString("None")
			return
		}
		sb.WriteString("Some(")
		v.payload.write(sb)
		sb.WriteString(")")
	default:
		sb.WriteString("<invalid>")
	}
}

func writeList(sb *strings.Builder, open, end string, items []Value) {
	sb.WriteString(open)
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		item.write(sb)
	}
	sb.WriteString(end)
}
