package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/typedrpc/internal/core/codec"
	"github.com/zeusync/typedrpc/internal/core/rpc/methods"
	"github.com/zeusync/typedrpc/internal/core/schema/registry"
	"github.com/zeusync/typedrpc/internal/core/schema/value"
)

// Transport errors
var (
	ErrTransport        = errors.New("transport failure")
	ErrCanceled         = errors.New("call canceled")
	ErrTransportClosed  = errors.New("transport is closed")
	ErrConnectionClosed = errors.New("connection is closed")
	ErrDialFailed       = errors.New("dial failed")
	ErrMessageTooLarge  = errors.New("message too large")
	ErrInvalidMessage   = errors.New("invalid message")
	ErrRemote           = errors.New("remote error")
	ErrInvalidConfig    = errors.New("invalid configuration")

	ErrMethodNotFound = fmt.Errorf("%w: method not found", ErrRemote)
)

// Category groups error codes by who has to act on them.
type Category string

const (
	CategoryNone       Category = ""
	CategorySchema     Category = "schema"
	CategoryValueShape Category = "value_shape"
	CategoryWire       Category = "wire"
	CategoryBinding    Category = "binding"
	CategoryTransport  Category = "transport"
	CategoryCanceled   Category = "canceled"
	CategoryUnknown    Category = "unknown"
)

// ErrorCode represents a numeric error code for efficient error handling
type ErrorCode int

const (
	ErrorCodeSuccess ErrorCode = 0

	// Schema error codes (1000-1999)

	ErrorCodeDuplicateType       ErrorCode = 1001
	ErrorCodeUnknownType         ErrorCode = 1002
	ErrorCodeUnresolvedReference ErrorCode = 1003
	ErrorCodeAliasCycle          ErrorCode = 1004
	ErrorCodeUnguardedRecursion  ErrorCode = 1005
	ErrorCodeInvalidDefinition   ErrorCode = 1006
	ErrorCodeRegistryFrozen      ErrorCode = 1007

	// Value-shape error codes (2000-2999)

	ErrorCodeShapeMismatch   ErrorCode = 2001
	ErrorCodeUnknownVariant  ErrorCode = 2002
	ErrorCodeIntegerOverflow ErrorCode = 2003

	// Wire error codes (3000-3999)

	ErrorCodeTruncatedInput     ErrorCode = 3001
	ErrorCodeInvalidBoolean     ErrorCode = 3002
	ErrorCodeInvalidUTF8        ErrorCode = 3003
	ErrorCodeInvalidOptionTag   ErrorCode = 3004
	ErrorCodeWireUnknownVariant ErrorCode = 3005
	ErrorCodeNonCanonical       ErrorCode = 3006
	ErrorCodeCompactOverflow    ErrorCode = 3007
	ErrorCodeTrailingBytes      ErrorCode = 3008
	ErrorCodeDepthExceeded      ErrorCode = 3009
	ErrorCodeSequenceTooLong    ErrorCode = 3010

	// Binding error codes (4000-4999)

	ErrorCodeMissingArgument      ErrorCode = 4001
	ErrorCodeUnexpectedArgument   ErrorCode = 4002
	ErrorCodeArgumentTypeMismatch ErrorCode = 4003
	ErrorCodeUnknownMethod        ErrorCode = 4004
	ErrorCodeDuplicateMethod      ErrorCode = 4005
	ErrorCodeInvalidSignature     ErrorCode = 4006

	// Transport error codes (7000-7999)

	ErrorCodeTransportFailed  ErrorCode = 7001
	ErrorCodeTransportClosed  ErrorCode = 7002
	ErrorCodeConnectionClosed ErrorCode = 7003
	ErrorCodeDialFailed       ErrorCode = 7004
	ErrorCodeMessageTooLarge  ErrorCode = 7005
	ErrorCodeInvalidMessage   ErrorCode = 7006
	ErrorCodeRemoteError      ErrorCode = 7007
	ErrorCodeInvalidConfig    ErrorCode = 7008

	// Cancellation (8000-8999)

	ErrorCodeCanceled ErrorCode = 8001

	ErrorCodeUnknownError ErrorCode = 9999
)

// Category returns the taxonomy bucket of the code.
func (c ErrorCode) Category() Category {
	switch {
	case c == ErrorCodeSuccess:
		return CategoryNone
	case c >= 1000 && c < 2000:
		return CategorySchema
	case c >= 2000 && c < 3000:
		return CategoryValueShape
	case c >= 3000 && c < 4000:
		return CategoryWire
	case c >= 4000 && c < 5000:
		return CategoryBinding
	case c >= 7000 && c < 8000:
		return CategoryTransport
	case c >= 8000 && c < 9000:
		return CategoryCanceled
	default:
		return CategoryUnknown
	}
}

// Error represents a protocol-specific error with additional context
type Error struct {
	Code      ErrorCode
	Message   string
	Cause     error
	Context   map[string]any
	Timestamp int64
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Context:   make(map[string]any),
		Timestamp: time.Now().Unix(),
	}
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// IsTemporary reports whether repeating the same call may succeed. Only
// transport failures qualify; retrying is left to the caller.
func (e *Error) IsTemporary() bool {
	switch e.Code {
	case ErrorCodeTransportFailed, ErrorCodeConnectionClosed, ErrorCodeDialFailed:
		return true
	default:
		return false
	}
}

// IsFatal reports whether the schema itself is broken and setup must stop.
func (e *Error) IsFatal() bool {
	return e.Code.Category() == CategorySchema
}

type codeEntry struct {
	err  error
	code ErrorCode
}

// Matched in order, so that an error wrapping several sentinels reports the
// outermost concern: a bind failure caused by a shape mismatch is a binding
// error, a transport failure is never reported as the wire error inside it.
var errorCodes = []codeEntry{
	{ErrCanceled, ErrorCodeCanceled},
	{context.Canceled, ErrorCodeCanceled},
	{context.DeadlineExceeded, ErrorCodeCanceled},

	{ErrRemote, ErrorCodeRemoteError},
	{ErrTransportClosed, ErrorCodeTransportClosed},
	{ErrConnectionClosed, ErrorCodeConnectionClosed},
	{ErrDialFailed, ErrorCodeDialFailed},
	{ErrMessageTooLarge, ErrorCodeMessageTooLarge},
	{ErrInvalidMessage, ErrorCodeInvalidMessage},
	{ErrInvalidConfig, ErrorCodeInvalidConfig},
	{ErrTransport, ErrorCodeTransportFailed},

	{methods.ErrMissingArgument, ErrorCodeMissingArgument},
	{methods.ErrUnexpectedArgument, ErrorCodeUnexpectedArgument},
	{methods.ErrArgumentTypeMismatch, ErrorCodeArgumentTypeMismatch},
	{methods.ErrUnknownMethod, ErrorCodeUnknownMethod},
	{methods.ErrDuplicateMethod, ErrorCodeDuplicateMethod},
	{methods.ErrInvalidSignature, ErrorCodeInvalidSignature},
	{methods.ErrTableFrozen, ErrorCodeRegistryFrozen},

	{codec.ErrTruncatedInput, ErrorCodeTruncatedInput},
	{codec.ErrInvalidBoolean, ErrorCodeInvalidBoolean},
	{codec.ErrInvalidUTF8, ErrorCodeInvalidUTF8},
	{codec.ErrInvalidOptionTag, ErrorCodeInvalidOptionTag},
	{codec.ErrNonCanonical, ErrorCodeNonCanonical},
	{codec.ErrCompactOverflow, ErrorCodeCompactOverflow},
	{codec.ErrTrailingBytes, ErrorCodeTrailingBytes},
	{codec.ErrDepthExceeded, ErrorCodeDepthExceeded},
	{codec.ErrSequenceTooLong, ErrorCodeSequenceTooLong},

	{value.ErrShapeMismatch, ErrorCodeShapeMismatch},
	{value.ErrUnknownVariant, ErrorCodeUnknownVariant},
	{value.ErrIntegerOverflow, ErrorCodeIntegerOverflow},

	{registry.ErrDuplicateType, ErrorCodeDuplicateType},
	{registry.ErrUnknownType, ErrorCodeUnknownType},
	{registry.ErrUnresolvedReference, ErrorCodeUnresolvedReference},
	{registry.ErrAliasCycle, ErrorCodeAliasCycle},
	{registry.ErrUnguardedRecursion, ErrorCodeUnguardedRecursion},
	{registry.ErrInvalidDefinition, ErrorCodeInvalidDefinition},
	{registry.ErrInvalidName, ErrorCodeInvalidDefinition},
	{registry.ErrFrozen, ErrorCodeRegistryFrozen},
}

// CodeOf classifies err. A *Error carries its own code; anything else is
// matched against the known sentinels.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrorCodeSuccess
	}

	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		return protocolErr.Code
	}

	for _, entry := range errorCodes {
		if !errors.Is(err, entry.err) {
			continue
		}
		// An out-of-range discriminant read off the wire is a wire error,
		// the same sentinel at construction time is a caller bug.
		if entry.code == ErrorCodeUnknownVariant {
			var codecErr *codec.Error
			if errors.As(err, &codecErr) && codecErr.Op == codec.OpDecode {
				return ErrorCodeWireUnknownVariant
			}
		}
		return entry.code
	}
	return ErrorCodeUnknownError
}

// CategoryOf is CodeOf(err).Category().
func CategoryOf(err error) Category {
	return CodeOf(err).Category()
}

// Wrap attaches a code derived from err and a message.
func Wrap(err error, message string) *Error {
	return NewError(CodeOf(err), message, err)
}
