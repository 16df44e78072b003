package registry

import "errors"

// Schema errors. They are fatal to setup and never retried.
var (
	ErrDuplicateType       = errors.New("duplicate type")
	ErrUnknownType         = errors.New("unknown type")
	ErrUnresolvedReference = errors.New("unresolved type reference")
	ErrAliasCycle          = errors.New("alias cycle")
	ErrUnguardedRecursion  = errors.New("recursive type without sequence, option or enum indirection")
	ErrInvalidDefinition   = errors.New("invalid type definition")
	ErrInvalidName         = errors.New("invalid type name")
	ErrFrozen              = errors.New("registry is frozen")
)
