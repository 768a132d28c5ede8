// Package chatbridge - errors.go
// Defines store and session errors and the fixed user-visible failure text.

package chatbridge

import "errors"

// ErrorReply is the only failure text an end user ever sees.
const ErrorReply = "An error occurred."

var (
	ErrSessionClosed      = errors.New("session has been closed")
	ErrStoreClosed        = errors.New("store has been closed")
	ErrSnapshotVersion    = errors.New("unsupported snapshot version")
	ErrUnknownStorageKind = errors.New("unknown storage kind")
)
