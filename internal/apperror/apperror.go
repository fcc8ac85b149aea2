// Package apperror defines the application's error taxonomy.
//
// Services return these typed errors; the HTTP layer maps them to status
// codes with errors.Is/errors.As. Nothing below the handler layer knows
// about HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors. Each one classifies a failure for the boundary:
// validation and authorization failures are the caller's fault and are
// never retried; ErrConflict and ErrUpstream are safe for the caller to
// retry (with backoff for upstream failures).
var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrUpstream        = errors.New("upstream unavailable")
)

// AppError carries a sentinel classification plus a human-readable message.
// The message is what the API returns to clients — it must never contain
// internal detail (SQL, stack traces, upstream responses).
type AppError struct {
	Err     error  // sentinel classifying the error
	Message string // human-readable error message
	Field   string // optional: field causing a validation error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// PayloadTooLarge reports an upload exceeding a size ceiling. It is a
// validation failure with its own sentinel so handlers can answer 413.
func PayloadTooLarge(message string) *AppError {
	return &AppError{
		Err:     ErrPayloadTooLarge,
		Message: message,
	}
}

// Unauthorized reports a missing, expired, or invalid credential. The
// message deliberately does not reveal which of those it was.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Upstream classifies a failure of an external collaborator (identity
// provider, blob storage). The wrapped cause is kept for logs; the
// message shown to the caller is generic and retryable.
func Upstream(cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrUpstream, cause),
		Message: "A backing service is unavailable, please try again later",
	}
}
