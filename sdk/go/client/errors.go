package client

import "errors"

// Client-specific errors
var (
	ErrClientClosed  = errors.New("client is closed")
	ErrInvalidConfig = errors.New("invalid client configuration")
	ErrNoSchema      = errors.New("no schema configured")
)
