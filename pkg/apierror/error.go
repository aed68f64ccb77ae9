package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// WithDetails adds field-level error details.
func (e *Error) WithDetails(details ...FieldError) *Error {
	e.Details = details
	return e
}

type envelope struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error"`
}

// ToJSON renders the error inside the standard response envelope.
func (e *Error) ToJSON() []byte {
	data, _ := json.Marshal(envelope{Error: e})
	return data
}

func newError(status int, code, message, fallback string) *Error {
	if message == "" {
		message = fallback
	}
	return &Error{StatusCode: status, Code: code, Message: message}
}

// BadRequest creates a 400 error for malformed requests.
func BadRequest(message string) *Error {
	return newError(http.StatusBadRequest, "BAD_REQUEST", message, "Bad request")
}

// ValidationError creates a 400 error with validation details.
func ValidationError(message string, details ...FieldError) *Error {
	return newError(http.StatusBadRequest, "VALIDATION_ERROR", message, "Request validation failed").
		WithDetails(details...)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *Error {
	return newError(http.StatusUnauthorized, "UNAUTHORIZED", message, "Authentication required")
}

// Forbidden creates a 403 error.
func Forbidden(message string) *Error {
	return newError(http.StatusForbidden, "FORBIDDEN", message, "Access denied")
}

// NotFound creates a 404 error.
func NotFound(message string) *Error {
	return newError(http.StatusNotFound, "NOT_FOUND", message, "Resource not found")
}

// Conflict creates a 409 error.
func Conflict(message string) *Error {
	return newError(http.StatusConflict, "CONFLICT", message, "Conflict")
}

// Unprocessable creates a 422 error for requests that are well-formed but violate a
// business rule, such as consuming from an empty bin.
func Unprocessable(message string) *Error {
	return newError(http.StatusUnprocessableEntity, "UNPROCESSABLE", message, "Request cannot be processed")
}

// InternalError creates a 500 error.
func InternalError(message string) *Error {
	return newError(http.StatusInternalServerError, "INTERNAL_ERROR", message, "An unexpected error occurred")
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *Error {
	return newError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message, "Service temporarily unavailable")
}

// As reports whether err (or anything it wraps) is an *Error.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
