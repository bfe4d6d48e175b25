package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind represents the type of error
type Kind int

const (
	ErrInternal Kind = iota
	ErrNotFound
	ErrValidation
	ErrConflict
	ErrInvalidInput
	ErrRetriable
	ErrPrecondition
	ErrUnauthorized
)

// Code returns the stable machine-readable code for the kind.
// Codes are part of the HTTP API and must not change.
func (k Kind) Code() string {
	switch k {
	case ErrNotFound:
		return "NOT_FOUND"
	case ErrValidation, ErrInvalidInput:
		return "VALIDATION_ERROR"
	case ErrConflict:
		return "CONFLICT"
	case ErrRetriable:
		return "RETRY"
	case ErrPrecondition:
		return "PRECONDITION_FAILED"
	case ErrUnauthorized:
		return "UNAUTHORIZED"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

func (k Kind) String() string {
	switch k {
	case ErrInternal:
		return "internal"
	case ErrNotFound:
		return "not_found"
	case ErrValidation:
		return "validation"
	case ErrConflict:
		return "conflict"
	case ErrInvalidInput:
		return "invalid_input"
	case ErrRetriable:
		return "retriable"
	case ErrPrecondition:
		return "precondition"
	case ErrUnauthorized:
		return "unauthorized"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is an application-level error with a kind for classification
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Constructor functions for common error types

func NotFound(msg string) *Error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(msg string) *Error {
	return &Error{Kind: ErrConflict, Message: msg}
}

func Conflictf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(msg string) *Error {
	return &Error{Kind: ErrInvalidInput, Message: msg}
}

func InvalidInputf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Retriable marks a concurrency conflict the caller may safely retry.
func Retriable(msg string, err error) *Error {
	return &Error{Kind: ErrRetriable, Message: msg, Err: err}
}

// Precondition rejects a whole operation because a required state is missing.
func Precondition(msg string) *Error {
	return &Error{Kind: ErrPrecondition, Message: msg}
}

func Preconditionf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrPrecondition, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

func Internal(err error) *Error {
	return &Error{Kind: ErrInternal, Message: "internal error", Err: err}
}

func Internalf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with additional context
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or ErrInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return ErrInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
