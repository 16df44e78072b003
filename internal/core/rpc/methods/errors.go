package methods

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateMethod      = errors.New("duplicate method")
	ErrUnknownMethod        = errors.New("unknown method")
	ErrInvalidSignature     = errors.New("invalid method signature")
	ErrMissingArgument      = errors.New("missing required argument")
	ErrUnexpectedArgument   = errors.New("unexpected argument")
	ErrArgumentTypeMismatch = errors.New("argument type mismatch")
	ErrTableFrozen          = errors.New("method table is frozen")
)

// ArgumentError names the method and parameter a binding failure belongs
// to. Err is one of the binding sentinels, possibly wrapping the value
// error that caused it.
type ArgumentError struct {
	Method string
	Param  string
	Err    error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("method %s, argument %q: %v", e.Method, e.Param, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

func argumentError(method, param string, sentinel error, cause error) error {
	err := sentinel
	if cause != nil {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return &ArgumentError{Method: method, Param: param, Err: err}
}

var errGivenTwice = errors.New("given twice")

func errTooManyArgs(got, want int) error {
	return fmt.Errorf("%d arguments for %d parameters", got, want)
}
