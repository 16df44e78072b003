package main

import (
	"os"

	"github.com/zeusync/typedrpc/internal/core/protocol"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for a broken schema, 3 when a retry may succeed and 1
// otherwise.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	switch wrapped := protocol.Wrap(err, "typedrpc"); {
	case wrapped.IsFatal():
		return 2
	case wrapped.IsTemporary():
		return 3
	default:
		return 1
	}
}
