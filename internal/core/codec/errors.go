package codec

import (
	"errors"
	"fmt"

	"github.com/zeusync/typedrpc/internal/core/schema/registry"
	"github.com/zeusync/typedrpc/internal/core/schema/value"
)

// Wire errors. They mean the byte stream is corrupt or was produced against
// a different schema version.
var (
	ErrTruncatedInput   = errors.New("truncated input")
	ErrInvalidBoolean   = errors.New("invalid boolean byte")
	ErrInvalidUTF8      = errors.New("invalid UTF-8 text")
	ErrInvalidOptionTag = errors.New("invalid option tag")
	ErrNonCanonical     = errors.New("non-canonical compact integer")
	ErrCompactOverflow  = errors.New("compact integer exceeds 64 bits")
	ErrTrailingBytes    = errors.New("trailing bytes after value")
	ErrDepthExceeded    = errors.New("maximum nesting depth exceeded")
	ErrSequenceTooLong  = errors.New("sequence length exceeds limit")
)

// Value-shape errors shared with the value package, re-exported so codec
// callers can match everything against one package.
var (
	ErrShapeMismatch   = value.ErrShapeMismatch
	ErrUnknownVariant  = value.ErrUnknownVariant
	ErrIntegerOverflow = value.ErrIntegerOverflow
)

type Op string

const (
	OpEncode Op = "encode"
	OpDecode Op = "decode"
)

// Error locates a codec failure: the byte offset reached, the dotted path of
// the field being processed and the constructor that was expected there.
type Error struct {
	Op          Op
	Offset      int
	Path        string
	Constructor registry.DefKind
	Type        string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s (%s) at offset %d, path %s: %v",
		e.Op, e.Type, e.Constructor, e.Offset, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
