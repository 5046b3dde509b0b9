// Package status defines the error taxonomy shared by the event loop and
// every event source it drives. A nil error means success ("Good" in the
// spec's vocabulary is simply the absence of an error, not a sentinel).
package status

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way callers of the event loop need to
// branch on: by what went wrong, not by which component produced it.
type Kind int

const (
	// InvalidArgument: missing or typed-wrong parameter.
	InvalidArgument Kind = iota + 1
	// InvalidState: operation disallowed in the current state (e.g. Free
	// while Started, a nested Run).
	InvalidState
	// NameConflict: duplicate Event Source name.
	NameConflict
	// NotFound: unknown connection id or timer id.
	NotFound
	// OutOfResources: allocation failure, fd exhaustion, address in use.
	OutOfResources
	// ConnectionRejected: outbound connect failed at the socket layer.
	ConnectionRejected
	// ConnectionClosed: peer or local close; surfaced on the final
	// callback and on send after close.
	ConnectionClosed
	// Internal: reentrancy violation or inconsistent internal state.
	Internal
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case InvalidState:
		return "InvalidState"
	case NameConflict:
		return "NameConflict"
	case NotFound:
		return "NotFound"
	case OutOfResources:
		return "OutOfResources"
	case ConnectionRejected:
		return "ConnectionRejected"
	case ConnectionClosed:
		return "ConnectionClosed"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error carrying the same Kind, so
// callers can write errors.Is(err, status.New(status.NotFound, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around a lower-level cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Of reports the Kind of err, or zero if err is nil or not a *Error.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return Of(err) == kind
}
