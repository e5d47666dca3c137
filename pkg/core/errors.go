package core

import (
	"fmt"
	"net/http"
)

// Error is a failure reported by a collaborator (model or speech backend).
type Error struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	Code          string    `json:"code,omitempty"`
	Backend       string    `json:"backend,omitempty"`
	ProviderError any       `json:"provider_error,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := ""
	if e.Backend != "" {
		prefix = e.Backend + ": "
	}
	if e.Code != "" {
		return fmt.Sprintf("%s%s: %s (code: %s)", prefix, e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s%s: %s", prefix, e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrPermission     ErrorType = "permission_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrAPI            ErrorType = "api_error"
	ErrOverloaded     ErrorType = "overloaded_error"
	ErrProvider       ErrorType = "provider_error"
)

// ErrorTypeForStatus maps an upstream HTTP status to an ErrorType.
func ErrorTypeForStatus(status int) ErrorType {
	switch {
	case status == http.StatusUnauthorized:
		return ErrAuthentication
	case status == http.StatusForbidden:
		return ErrPermission
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	case status == http.StatusServiceUnavailable, status == 529:
		return ErrOverloaded
	case status >= 500:
		return ErrAPI
	case status >= 400:
		return ErrInvalidRequest
	default:
		return ErrProvider
	}
}

// NewHTTPError builds an Error for a failed upstream HTTP exchange.
func NewHTTPError(backend string, status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{
		Type:    ErrorTypeForStatus(status),
		Message: message,
		Code:    fmt.Sprintf("%d", status),
		Backend: backend,
	}
}

// NewProviderError wraps a backend-specific failure.
func NewProviderError(backend string, underlying error) *Error {
	return &Error{
		Type:          ErrProvider,
		Message:       underlying.Error(),
		Backend:       backend,
		ProviderError: underlying,
	}
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrOverloaded, ErrAPI:
		return true
	default:
		return false
	}
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	if ue, ok := e.ProviderError.(error); ok {
		return ue
	}
	return nil
}
