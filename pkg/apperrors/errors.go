// Package apperrors defines the error kinds the HTTP layer maps to problem
// responses. Lower layers return these (possibly wrapped with %w); the
// handlers never pick status codes themselves.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindRateLimited
	KindNotFound
	KindConflict
	KindValidation
	KindBadRequest
	KindUpstream
	KindUnavailable
	KindNotImplemented
)

// Status returns the HTTP status code for the kind
func (k Kind) Status() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// FieldError is one entry of a validation failure
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// Error is an application error carrying its kind and a client-safe detail
type Error struct {
	Kind   Kind
	Detail string
	Fields []FieldError
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// As extracts the *Error from err's chain
func As(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

func Unauthenticated(detail string) *Error {
	return &Error{Kind: KindUnauthenticated, Detail: detail}
}

func Forbidden(detail string) *Error {
	return &Error{Kind: KindForbidden, Detail: detail}
}

func RateLimited(detail string) *Error {
	return &Error{Kind: KindRateLimited, Detail: detail}
}

func NotFound(detail string) *Error {
	return &Error{Kind: KindNotFound, Detail: detail}
}

// EntityNotFound builds the standard "{Entity} with id '{id}' not found" error
func EntityNotFound(entity string, id fmt.Stringer) *Error {
	return NotFound(fmt.Sprintf("%s with id '%s' not found", entity, id))
}

func Conflict(detail string, err error) *Error {
	return &Error{Kind: KindConflict, Detail: detail, Err: err}
}

func BadRequest(detail string) *Error {
	return &Error{Kind: KindBadRequest, Detail: detail}
}

// Validation builds a 422 with per-field errors
func Validation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Detail: "Request validation failed", Fields: fields}
}

// Upstream wraps a failure talking to an external provider
func Upstream(detail string, err error) *Error {
	return &Error{Kind: KindUpstream, Detail: detail, Err: err}
}

func Unavailable(detail string) *Error {
	return &Error{Kind: KindUnavailable, Detail: detail}
}

func NotImplemented(detail string) *Error {
	return &Error{Kind: KindNotImplemented, Detail: detail}
}
