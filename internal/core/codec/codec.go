// Package codec turns schema-typed values into their compact binary wire
// form and back.
//
// The engine is stateless apart from an internal buffer pool: a single
// Codec may be shared by any number of goroutines.
package codec

import (
	"strconv"
	"strings"
	"sync"

	"github.com/zeusync/typedrpc/internal/core/schema/registry"
	"github.com/zeusync/typedrpc/internal/core/schema/value"
	"github.com/zeusync/typedrpc/pkg/generic"
)

// Resolver resolves type references while walking a definition.
type Resolver interface {
	Resolve(name registry.TypeName) (registry.TypeDef, error)
}

// Options bounds the work an adversarial input can cause.
type Options struct {
	// MaxDepth limits value nesting during encode and decode.
	MaxDepth int
	// MaxSequenceLength caps the element count of a decoded sequence and
	// the byte length of decoded text.
	MaxSequenceLength uint64
	// MaxEmptyItems caps the total number of zero-width elements, such as
	// (), one decode may produce. They consume no input, so the input size
	// cannot bound them.
	MaxEmptyItems uint64
}

func DefaultOptions() Options {
	return Options{
		MaxDepth:          128,
		MaxSequenceLength: 1 << 24,
		MaxEmptyItems:     1 << 16,
	}
}

type Codec struct {
	types   Resolver
	opts    Options
	buffers *generic.Pool[*[]byte]
	// widths caches the minimum wire size per element type name.
	widths sync.Map
}

type Option func(*Options)

func WithMaxDepth(depth int) Option {
	return func(o *Options) { o.MaxDepth = depth }
}

func WithMaxSequenceLength(n uint64) Option {
	return func(o *Options) { o.MaxSequenceLength = n }
}

func WithMaxEmptyItems(n uint64) Option {
	return func(o *Options) { o.MaxEmptyItems = n }
}

func New(types Resolver, opts ...Option) *Codec {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Codec{
		types: types,
		opts:  options,
		buffers: generic.NewPool(func() *[]byte {
			b := make([]byte, 0, 256)
			return &b
		}, func(b *[]byte) *[]byte {
			*b = (*b)[:0]
			return b
		}),
	}
}

// Encode produces the wire form of v under def.
func (c *Codec) Encode(def registry.TypeDef, v value.Value) ([]byte, error) {
	bufPtr := c.buffers.Get()
	defer c.buffers.Put(bufPtr)

	out, err := c.AppendEncode(*bufPtr, def, v)
	*bufPtr = out[:0]
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), out...), nil
}

// AppendEncode appends the wire form of v to dst.
func (c *Codec) AppendEncode(dst []byte, def registry.TypeDef, v value.Value) ([]byte, error) {
	e := encoder{walker: walker{root: def.String()}, types: c.types, opts: c.opts, buf: dst}
	if err := e.encode(def, v, 0); err != nil {
		return dst, err
	}
	return e.buf, nil
}

// EncodeNamed resolves name and encodes v under it.
func (c *Codec) EncodeNamed(name registry.TypeName, v value.Value) ([]byte, error) {
	def, err := c.types.Resolve(name)
	if err != nil {
		return nil, err
	}
	bufPtr := c.buffers.Get()
	defer c.buffers.Put(bufPtr)

	e := encoder{walker: walker{root: string(name)}, types: c.types, opts: c.opts, buf: *bufPtr}
	err = e.encode(def, v, 0)
	*bufPtr = e.buf[:0]
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), e.buf...), nil
}

// Decode reads one value of def starting at data[offset] and returns it
// with the number of bytes consumed.
func (c *Codec) Decode(def registry.TypeDef, data []byte, offset int) (value.Value, int, error) {
	return c.decode(def, def.String(), data, offset)
}

// DecodeNamed resolves name and decodes one value of it.
func (c *Codec) DecodeNamed(name registry.TypeName, data []byte, offset int) (value.Value, int, error) {
	def, err := c.types.Resolve(name)
	if err != nil {
		return value.Value{}, 0, err
	}
	return c.decode(def, string(name), data, offset)
}

// DecodeAll decodes data as exactly one value of def; leftover bytes are
// an error.
func (c *Codec) DecodeAll(def registry.TypeDef, data []byte) (value.Value, error) {
	return c.decodeAll(def, def.String(), data)
}

// DecodeAllNamed is DecodeAll for a named type.
func (c *Codec) DecodeAllNamed(name registry.TypeName, data []byte) (value.Value, error) {
	def, err := c.types.Resolve(name)
	if err != nil {
		return value.Value{}, err
	}
	return c.decodeAll(def, string(name), data)
}

func (c *Codec) decodeAll(def registry.TypeDef, root string, data []byte) (value.Value, error) {
	v, n, err := c.decode(def, root, data, 0)
	if err != nil {
		return value.Value{}, err
	}
	if n != len(data) {
		return value.Value{}, &Error{
			Op:          OpDecode,
			Offset:      n,
			Path:        root,
			Constructor: def.Kind,
			Type:        root,
			Err:         ErrTrailingBytes,
		}
	}
	return v, nil
}

func (c *Codec) decode(def registry.TypeDef, root string, data []byte, offset int) (value.Value, int, error) {
	d := decoder{
		walker: walker{root: root},
		types:  c.types,
		opts:   c.opts,
		data:   data,
		pos:    offset,
		empty:  c.opts.MaxEmptyItems,
		widths: &c.widths,
	}
	if offset < 0 || offset > len(data) {
		return value.Value{}, 0, d.fail(def, ErrTruncatedInput)
	}
	v, err := d.decode(def, 0)
	if err != nil {
		return value.Value{}, 0, err
	}
	return v, d.pos - offset, nil
}

// segment is one step of a value path: a struct field or enum variant
// name, a sequence index or a tuple member position.
type segment struct {
	name  string
	index int
	item  bool
}

// walker tracks the path of the value being processed. The dotted form is
// only rendered when an error is reported.
type walker struct {
	root string
	path []segment
}

func (w *walker) pushName(name string) { w.path = append(w.path, segment{name: name}) }

func (w *walker) pushItem(i int) { w.path = append(w.path, segment{index: i, item: true}) }

func (w *walker) pushMember(i int) { w.path = append(w.path, segment{index: i}) }

func (w *walker) pop() { w.path = w.path[:len(w.path)-1] }

func (w *walker) where() string {
	var b strings.Builder
	b.WriteString(w.root)
	for _, s := range w.path {
		switch {
		case s.item:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.index))
			b.WriteByte(']')
		case s.name != "":
			b.WriteByte('.')
			b.WriteString(s.name)
		default:
			b.WriteByte('.')
			b.WriteString(strconv.Itoa(s.index))
		}
	}
	return b.String()
}
