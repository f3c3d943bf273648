package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every recoverable failure wraps exactly one of these so callers
// can branch with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrAccessDenied = errors.New("access denied")
	ErrInternal     = errors.New("internal error")
)

// Stable machine-readable codes.
const (
	CodeNotFound     = "not_found"
	CodeValidation   = "validation_error"
	CodeConflict     = "conflict"
	CodeAccessDenied = "access_denied"
	CodeInternal     = "internal_error"
)

// Error carries a kind, the failing operation and a human message.
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap exposes the cause, or the kind when there is none.
func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches on the kind as well as the wrapped cause.
func (e *Error) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

func newError(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a NotFound error.
func NotFound(op, format string, args ...any) *Error {
	return newError(ErrNotFound, op, format, args...)
}

// Invalid builds a ValidationError.
func Invalid(op, format string, args ...any) *Error {
	return newError(ErrValidation, op, format, args...)
}

// Conflict builds a Conflict/BusinessRule error.
func Conflict(op, format string, args ...any) *Error {
	return newError(ErrConflict, op, format, args...)
}

// Denied builds an AccessDenied error.
func Denied(op, format string, args ...any) *Error {
	return newError(ErrAccessDenied, op, format, args...)
}

// Internal wraps an unexpected failure. The message shown to callers is
// always the generic one; err is kept for server-side logging.
func Internal(op string, err error) *Error {
	return &Error{Kind: ErrInternal, Op: op, Message: "internal error", Err: err}
}

// Code maps err onto its stable machine-readable code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrAccessDenied):
		return CodeAccessDenied
	}
	return CodeInternal
}

// Message returns the caller-safe message for err. Unknown errors collapse
// to the generic internal message.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Kind != ErrInternal {
		return de.Message
	}
	return "internal error"
}

// IsRecoverable reports whether err belongs to the typed taxonomy.
func IsRecoverable(err error) bool {
	return Code(err) != CodeInternal
}
