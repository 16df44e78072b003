package value

import "errors"

// Value-shape errors. They indicate a caller bug and are reported
// synchronously at construction, bind or encode time.
var (
	ErrShapeMismatch   = errors.New("value shape does not match type")
	ErrUnknownVariant  = errors.New("unknown enum variant")
	ErrIntegerOverflow = errors.New("integer out of range for declared width")
)
