// Package chaterr defines the error taxonomy shared by the presence, room and
// routing components. Every failure reported to a client carries one Kind.
package chaterr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuthorization
	KindState
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	default:
		return "internal"
	}
}

// Error is a classified failure raised by a core operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

// Is reports whether target is an *Error of the same kind. This lets callers
// match with errors.Is against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation    = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrConflict      = &Error{Kind: KindConflict, Message: "conflict"}
	ErrNotFound      = &Error{Kind: KindNotFound, Message: "not found"}
	ErrAuthorization = &Error{Kind: KindAuthorization, Message: "not authorized"}
	ErrState         = &Error{Kind: KindState, Message: "invalid state"}
	ErrInternal      = &Error{Kind: KindInternal, Message: "internal error"}
)

func newError(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Validation reports a missing or malformed required field.
func Validation(op, format string, args ...any) error {
	return newError(KindValidation, op, format, args...)
}

// Conflict reports a duplicate room name or an existing membership.
func Conflict(op, format string, args ...any) error {
	return newError(KindConflict, op, format, args...)
}

// NotFound reports an absent room or an unbound identity.
func NotFound(op, format string, args ...any) error {
	return newError(KindNotFound, op, format, args...)
}

// Authorization reports a wrong room password or a non-member asking for
// member-only data.
func Authorization(op, format string, args ...any) error {
	return newError(KindAuthorization, op, format, args...)
}

// State reports an unmet membership precondition.
func State(op, format string, args ...any) error {
	return newError(KindState, op, format, args...)
}

// Internal wraps an unexpected failure.
func Internal(op, format string, args ...any) error {
	return newError(KindInternal, op, format, args...)
}

// KindOf classifies err. Errors outside the taxonomy are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message of err. Details of errors
// outside the taxonomy are not exposed.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrInternal.Message
}
