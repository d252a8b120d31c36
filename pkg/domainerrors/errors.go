// Package domainerrors provides code-tagged errors shared across services.
//
// Stores and other infrastructure return sentinel errors (pkg/platform/sentinel);
// services translate those facts into domain errors carrying one of the codes
// below. The HTTP layer maps codes to statuses and never leaks internal detail.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of a domain error.
type Code string

const (
	CodeValidationBlocked  Code = "validation_blocked"
	CodeConfigurationError Code = "configuration_error"
	CodeIllegalTransition  Code = "illegal_transition"
	CodeConflict           Code = "conflict"
	CodeNotFound           Code = "not_found"
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Error is a domain error with a stable code and a human-readable message.
type Error struct {
	code    Code
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Message returns the user-facing message without the code prefix.
func (e *Error) Message() string { return e.message }

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// CodeOf extracts the domain error code from err, walking the wrap chain.
// Errors without a code report CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.code == code
	}
	return false
}

// MessageOf returns the user-facing message for err, or a generic fallback
// when the error is not a domain error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.message
	}
	return "internal error"
}
