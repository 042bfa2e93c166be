package api

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeAuthRequired signals a missing or malformed credential
	// header. Surfaced as 401 with a WWW-Authenticate challenge, never
	// downgraded to a plain denial.
	ErrorTypeAuthRequired ErrorType = "authentication_required"

	// ErrorTypeForbidden covers both unrecognized credentials and
	// authenticated-but-unauthorized requests. The two cases are
	// distinguished internally for auditing but share this external signal.
	ErrorTypeForbidden ErrorType = "forbidden"

	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeServerError    ErrorType = "server_error"
)

// APIError is a structured service error carrying a type and a message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// StatusCode maps the error type to its HTTP status code.
func (e *APIError) StatusCode() int {
	switch e.Type {
	case ErrorTypeAuthRequired:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewAuthRequiredError creates an APIError for absent or malformed credentials.
func NewAuthRequiredError() *APIError {
	return &APIError{Type: ErrorTypeAuthRequired, Message: "Authentication required."}
}

// NewForbiddenError creates an APIError for failed or denied access.
func NewForbiddenError() *APIError {
	return &APIError{Type: ErrorTypeForbidden, Message: "Forbidden"}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Message: message}
}

// NewInvalidRequestError creates an APIError for malformed payloads.
func NewInvalidRequestError(message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Message: message}
}

// NewServerError creates an APIError for unexpected internal failures.
// The message is intentionally generic; the original detail stays in logs.
func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Message: message}
}
