// Package failure defines the error kinds surfaced to callers of the
// calculation engine and the vision contract. Every kind is recoverable:
// the caller shows the detail and lets the user retry.
package failure

import (
	"errors"
	"fmt"
)

// Kind tags a failure so the boundary can pick a status code and message.
type Kind string

const (
	InvalidProfile    Kind = "InvalidProfile"
	MalformedResponse Kind = "MalformedResponse"
	ServiceError      Kind = "ServiceError"
	MissingCredential Kind = "MissingCredential"
)

// Error is the failure variant. It is never converted into a zero-valued
// result by the engine.
type Error struct {
	Kind   Kind
	Detail string
	// Err is the underlying cause, if any (e.g. a net/http error).
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with a formatted detail.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error that keeps cause reachable through errors.Is/As.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	detail := fmt.Sprintf(format, args...)
	if cause != nil {
		detail += ": " + cause.Error()
	}
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when err
// is nil or carries no kind.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
