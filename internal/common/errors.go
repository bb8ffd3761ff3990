package common

import (
	"errors"
	"net/http"
)

// Kind classifies an AppError for status mapping and metrics.
type Kind string

const (
	// KindValidation marks a missing or malformed required field.
	KindValidation Kind = "validation"
	// KindNotFound marks a referenced record that does not exist.
	KindNotFound Kind = "not_found"
	// KindRouteNotFound marks a request no route matched.
	KindRouteNotFound Kind = "route_not_found"
	// KindInternal marks a store or programming failure.
	KindInternal Kind = "internal"
)

// AppError represents an error with an attached kind, code and HTTP status.
type AppError struct {
	Kind       Kind
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Kind: kindForStatus(status), Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Validation reports a 400 with a human-readable message.
func Validation(message string) *AppError {
	return &AppError{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: message, HTTPStatus: http.StatusBadRequest}
}

// NotFound reports a 404 for an absent record.
func NotFound(err error) *AppError {
	return &AppError{Kind: KindNotFound, Code: "NOT_FOUND", Message: "Not found", HTTPStatus: http.StatusNotFound, Err: err}
}

// RouteNotFound reports a 404 for a request that matched no route.
func RouteNotFound() *AppError {
	return &AppError{Kind: KindRouteNotFound, Code: "ROUTE_NOT_FOUND", Message: "Not found", HTTPStatus: http.StatusNotFound}
}

// Internal wraps a store failure; the message never carries err's text.
func Internal(err error) *AppError {
	return &AppError{Kind: KindInternal, Code: "INTERNAL", Message: "Internal error", HTTPStatus: http.StatusInternalServerError, Err: err}
}

// AsAppError converts any error into an AppError, treating unknown errors as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindInternal
	}
}
