package eloop

import "eloop/internal/eloop/status"

// Kind and Error are re-exported from the internal status package so
// callers outside this module tree never need to import it directly.
type Kind = status.Kind

const (
	InvalidArgument    = status.InvalidArgument
	InvalidState       = status.InvalidState
	NameConflict       = status.NameConflict
	NotFound           = status.NotFound
	OutOfResources     = status.OutOfResources
	ConnectionRejected = status.ConnectionRejected
	ConnectionClosed   = status.ConnectionClosed
	Internal           = status.Internal
)

// Error is the concrete error type every loop and event source operation
// returns. A nil error means success.
type Error = status.Error

func newError(kind Kind, message string) *Error { return status.New(kind, message) }

func wrapError(kind Kind, message string, cause error) *Error {
	return status.Wrap(kind, message, cause)
}

// Of reports the Kind of err, or zero if err is nil or not an *Error.
func Of(err error) Kind { return status.Of(err) }

