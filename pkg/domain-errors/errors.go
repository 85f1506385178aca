// Package domainerrors defines the typed error vocabulary shared by all
// services. Domain logic returns these instead of raw errors so transport
// layers can map failures to responses without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure. The set is closed: callers switch on
// codes, so adding one means auditing every switch.
type Code string

const (
	// CodeConfiguration marks a pipeline definition that references an
	// unknown node. Fatal at construction, never retried.
	CodeConfiguration Code = "configuration_error"

	// CodeCycle marks a pipeline definition whose dependency graph is not
	// acyclic. Fatal at construction, never retried.
	CodeCycle Code = "cycle_error"

	// CodeInvalidTransition marks an illegal document state change. The
	// caller must choose a legal next state; the operation is not retried.
	CodeInvalidTransition Code = "invalid_transition"

	// CodeValidation marks payloads or inputs missing required fields.
	CodeValidation Code = "validation_error"

	// CodeAccessDenied marks officer/tenant mismatches. Kept distinct from
	// validation so callers can map it to an access-denied response.
	CodeAccessDenied Code = "access_denied"

	CodeNotFound Code = "not_found"
	CodeConflict Code = "conflict"
	CodeInternal Code = "internal_error"
)

// Error carries a code plus a human-readable message and optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New constructs a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on code so sentinel-style comparisons work:
// errors.Is(err, domainerrors.New(CodeCycle, "")).
func (e *Error) Is(target error) bool {
	var de *Error
	if errors.As(target, &de) {
		return de.Code == e.Code
	}
	return false
}

// CodeOf extracts the domain code from an error chain. Unknown errors are
// treated as internal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}
