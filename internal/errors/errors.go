package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeDecode     ErrorType = "decode"
	ErrorTypeTransport  ErrorType = "transport"
	ErrorTypeService    ErrorType = "service"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInternal   ErrorType = "internal"
)

var statusCodes = map[ErrorType]int{
	ErrorTypeConfig:     http.StatusServiceUnavailable,
	ErrorTypeDecode:     http.StatusUnprocessableEntity,
	ErrorTypeTransport:  http.StatusBadGateway,
	ErrorTypeService:    http.StatusBadGateway,
	ErrorTypeValidation: http.StatusBadRequest,
	ErrorTypeTimeout:    http.StatusGatewayTimeout,
	ErrorTypeNotFound:   http.StatusNotFound,
	ErrorTypeInternal:   http.StatusInternalServerError,
}

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails returns a copy of the error carrying extra details
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func newError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:       errorType,
		Message:    message,
		StatusCode: StatusCodeFor(errorType),
		Cause:      cause,
	}
}

// NewConfigError creates an error for missing or invalid configuration, including credentials
func NewConfigError(message string, cause error) *AppError {
	return newError(ErrorTypeConfig, message, cause)
}

// NewDecodeError creates an error for uploads that are not a valid or supported image
func NewDecodeError(message string, cause error) *AppError {
	return newError(ErrorTypeDecode, message, cause)
}

// NewTransportError creates an error for connectivity failures to an external service
func NewTransportError(message string, cause error) *AppError {
	return newError(ErrorTypeTransport, message, cause)
}

// NewServiceError creates an error for an external service that answered with an error or nothing usable
func NewServiceError(message string, cause error) *AppError {
	return newError(ErrorTypeService, message, cause)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newError(ErrorTypeValidation, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newError(ErrorTypeTimeout, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return newError(ErrorTypeNotFound, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newError(ErrorTypeInternal, message, cause)
}

// IsType checks if the error, or any error it wraps, is an AppError of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// TypeOf returns the type of the first AppError in the chain, or ErrorTypeInternal
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// StatusCodeFor maps an error type to the HTTP status code reported to clients
func StatusCodeFor(errorType ErrorType) int {
	if code, ok := statusCodes[errorType]; ok {
		return code
	}
	return http.StatusInternalServerError
}
