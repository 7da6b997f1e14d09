package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into the API taxonomy. Every kind maps to a
// stable machine-readable code and an HTTP status.
type Kind int

const (
	KindValidation Kind = iota
	KindAuthorization
	KindNotFound
	KindConflict
	KindDatabase
)

// Error is the single error type surfaced by services. Validation errors
// may carry a field-level detail map; database errors wrap the underlying
// infrastructure failure.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the stable machine-readable error code.
func (e *Error) Code() string {
	switch e.Kind {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindAuthorization:
		return "FORBIDDEN"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	default:
		return "DATABASE_ERROR"
	}
}

// HTTPStatus returns the HTTP status for the error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Validation builds a 400 error with an optional field detail map.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Forbidden builds a 403 error for a valid actor attempting a denied action.
func Forbidden(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// NotFound builds a 404 error for an absent entity.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

// Conflict builds a 409 error for an action invalid in the entity's
// current state.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Database wraps an infrastructure failure that aborted a mutation.
func Database(err error) *Error {
	return &Error{Kind: KindDatabase, Message: "database error", Err: err}
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	if e, ok := As(err); ok {
		return e.Kind == kind
	}
	return false
}
