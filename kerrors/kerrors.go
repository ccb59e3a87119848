// Package kerrors is the client's error taxonomy. Every error the client
// returns to a caller is one of the kinds declared here; wrapping follows
// the github.com/pkg/errors idiom used throughout the host application this
// client was adapted from, so errors.Is/errors.As and pkg/errors.Cause both
// see through to the underlying kind.
package kerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is a coarse error classification, not a Go type: every error
// returned by this module implements error and can be inspected with
// errors.As against the concrete *Error type, then switched on Kind.
type Kind int

const (
	_ Kind = iota
	// MalformedInput: decoded bytes violate the schema (truncation,
	// over-long varint, CRC mismatch).
	MalformedInput
	// UnsupportedFeature: tagged fields present, unknown compression
	// bitmask, API version outside the registry.
	UnsupportedFeature
	// NetworkError: socket failure, connection closed while a ticket was
	// pending, or the client itself is closed.
	NetworkError
	// TimeoutError: request deadline elapsed before a response arrived.
	TimeoutError
	// ProtocolError: non-zero broker error code.
	ProtocolError
	// UserError: option validation, undeclared config field, serializer
	// failure, misuse of the idempotent producer.
	UserError
	// MultipleErrors: aggregation across parallel sub-requests or
	// partition-level results.
	MultipleErrors
)

func (k Kind) String() string {
	switch k {
	case MalformedInput:
		return "malformed input"
	case UnsupportedFeature:
		return "unsupported feature"
	case NetworkError:
		return "network error"
	case TimeoutError:
		return "timeout"
	case ProtocolError:
		return "protocol error"
	case UserError:
		return "user error"
	case MultipleErrors:
		return "multiple errors"
	default:
		return "unknown"
	}
}

// Error is the concrete error type every kind is represented as.
type Error struct {
	Kind   Kind
	Reason string
	cause  error
}

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func Wrap(kind Kind, cause error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.cause }

// Cause supports github.com/pkg/errors.Cause for callers already using that
// idiom against the rest of the client.
func (e *Error) Cause() error {
	if e.cause != nil {
		return e.cause
	}
	return e
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func Malformed(reason string, args ...interface{}) *Error {
	return New(MalformedInput, fmt.Sprintf(reason, args...))
}

func Unsupported(reason string, args ...interface{}) *Error {
	return New(UnsupportedFeature, fmt.Sprintf(reason, args...))
}

func Network(cause error, reason string, args ...interface{}) *Error {
	return Wrap(NetworkError, cause, fmt.Sprintf(reason, args...))
}

func Timeout(reason string, args ...interface{}) *Error {
	return New(TimeoutError, fmt.Sprintf(reason, args...))
}

func User(reason string, args ...interface{}) *Error {
	return New(UserError, fmt.Sprintf(reason, args...))
}
