// Package errs defines the error kinds shared by services and transports.
package errs

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind classifies a failure so transports can map it to a stable outcome.
type Kind string

const (
	KindValidation        Kind = "VALIDATION_ERROR"
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindForbidden         Kind = "FORBIDDEN"
	KindConflict          Kind = "CONFLICT"
	KindDependency        Kind = "DEPENDENCY_UNAVAILABLE"
	KindInternal          Kind = "INTERNAL"
)

// Error is a classified failure. Message is safe to show to clients; Err holds the cause.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, errs.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is checks. They carry no message.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrDependency        = &Error{Kind: KindDependency}
)

func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func InvalidTransition(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(msg string, cause error) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg, Err: cause}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Dependency wraps a storage or identity-provider failure as retryable.
func Dependency(msg string, cause error) *Error {
	return &Error{Kind: KindDependency, Message: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the first *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Retryable reports whether a client may retry the same request unchanged.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConflict, KindDependency:
		return true
	}
	return false
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation, KindInvalidTransition:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindDependency:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// GRPCCode maps a kind to its gRPC status code.
func GRPCCode(k Kind) codes.Code {
	switch k {
	case KindValidation:
		return codes.InvalidArgument
	case KindInvalidTransition:
		return codes.FailedPrecondition
	case KindNotFound:
		return codes.NotFound
	case KindUnauthorized:
		return codes.Unauthenticated
	case KindForbidden:
		return codes.PermissionDenied
	case KindConflict:
		return codes.Aborted
	case KindDependency:
		return codes.Unavailable
	}
	return codes.Internal
}
