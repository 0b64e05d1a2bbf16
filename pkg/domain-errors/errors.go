// Package domainerrors defines the coded errors returned by user-facing
// operations. Callers branch on codes via HasCode instead of matching
// message strings; messages are safe to surface in UI.
//
// These are the recoverable half of the error model. Invariant breaches are
// laws.Violation values and must never be folded into a user-facing code.
package domainerrors

import "errors"

// Code identifies the category of a user-facing failure.
type Code string

const (
	// Generic categories.
	CodeValidation   Code = "VALIDATION"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL"

	// Handshake and circle outcomes the UI is expected to branch on.
	CodeTokenUsed    Code = "TOKEN_USED"
	CodeTokenExpired Code = "TOKEN_EXPIRED"
	CodeSelfConnect  Code = "SELF_CONNECT"
	CodeBlocked      Code = "BLOCKED"
	CodeCircleFull   Code = "CIRCLE_FULL"
)

// Error carries a stable code alongside a human-readable message and an
// optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs a coded error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or empty string when err is not a
// coded error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
