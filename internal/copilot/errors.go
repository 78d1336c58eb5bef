package copilot

import (
	"errors"
	"fmt"
)

// ErrorKind classifies copilot failures into the categories surfaced to
// operators. Raw internal errors are never shown verbatim.
type ErrorKind string

const (
	KindValidation    ErrorKind = "VALIDATION"
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindConflict      ErrorKind = "CONFLICT"
	KindAuthorization ErrorKind = "AUTHORIZATION"
	KindProvider      ErrorKind = "PROVIDER"
	KindConcurrency   ErrorKind = "CONCURRENCY"
)

// Error is a classified copilot error with an operator-facing message
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// OperatorMessage returns the message safe to show to an operator
func (e *Error) OperatorMessage() string {
	return e.Message
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validationf creates a ValidationError
func Validationf(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

// NotFoundf creates a NotFoundError
func NotFoundf(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

// Conflictf creates a ConflictError
func Conflictf(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

// Authorizationf creates an AuthorizationError
func Authorizationf(format string, args ...interface{}) *Error {
	return newError(KindAuthorization, format, args...)
}

// Providerf creates a ProviderError wrapping the underlying failure
func Providerf(err error, format string, args ...interface{}) *Error {
	e := newError(KindProvider, format, args...)
	e.Err = err
	return e
}

// Concurrencyf creates a concurrency-conflict error for a run whose state
// moved underneath a conditional update
func Concurrencyf(format string, args ...interface{}) *Error {
	return newError(KindConcurrency, format, args...)
}

// KindOf extracts the error kind, defaulting to provider-agnostic internal
// classification for unclassified errors
func KindOf(err error) (ErrorKind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// MessageOf returns an operator-safe message for any error
func MessageOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Message
	}
	return "Something went wrong while processing the request"
}
