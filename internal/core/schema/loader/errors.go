package loader

import "errors"

var (
	ErrSyntax          = errors.New("type expression syntax error")
	ErrUnsupportedExpr = errors.New("unsupported type expression")
	ErrInvalidDocument = errors.New("invalid schema document")
)
