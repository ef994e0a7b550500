package common

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the kind of failure
type ErrorType string

const (
	// ErrorTypeConfiguration for configuration-related errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeValidation for rejected inbound input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeUpstream for non-success responses from the Zendesk API
	ErrorTypeUpstream ErrorType = "upstream"
	// ErrorTypeNetwork for transport failures (DNS, refused connections, timeouts)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeStorage for run history persistence errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeRelay for failed deliveries to a return URL
	ErrorTypeRelay ErrorType = "relay"
	// ErrorTypeInternal for internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// MonitorError represents a structured error with context
type MonitorError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"status_code,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface
func (e *MonitorError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *MonitorError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *MonitorError) WithContext(key string, value interface{}) *MonitorError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *MonitorError) WithCause(cause error) *MonitorError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// WithStatus records the HTTP status observed for the failed call
func (e *MonitorError) WithStatus(statusCode int) *MonitorError {
	e.StatusCode = statusCode
	return e
}

// NewError creates a new MonitorError
func NewError(errorType ErrorType, code, message string) *MonitorError {
	return &MonitorError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *MonitorError {
	return NewError(ErrorTypeConfiguration, code, message)
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *MonitorError {
	return NewError(ErrorTypeValidation, code, message)
}

// NewUpstreamError creates an error for a non-success Zendesk response
func NewUpstreamError(code, message string, statusCode int) *MonitorError {
	return NewError(ErrorTypeUpstream, code, message).WithStatus(statusCode)
}

// NewNetworkError creates a network error
func NewNetworkError(code, message string) *MonitorError {
	return NewError(ErrorTypeNetwork, code, message)
}

// NewRelayError creates a relay delivery error
func NewRelayError(code, message string) *MonitorError {
	return NewError(ErrorTypeRelay, code, message)
}

// NewInternalError creates an internal system error
func NewInternalError(code, message string) *MonitorError {
	return NewError(ErrorTypeInternal, code, message)
}

// WrapError wraps an existing error with MonitorError context
func WrapError(err error, errorType ErrorType, code, message string) *MonitorError {
	return NewError(errorType, code, message).WithCause(err)
}

// IsErrorType reports whether any error in err's chain is a MonitorError of the given type.
func IsErrorType(err error, errorType ErrorType) bool {
	var me *MonitorError
	if errors.As(err, &me) {
		return me.Type == errorType
	}
	return false
}

// StatusCodeOf returns the HTTP status recorded on err, or 0.
func StatusCodeOf(err error) int {
	var me *MonitorError
	if errors.As(err, &me) {
		return me.StatusCode
	}
	return 0
}

// ErrorMessage renders err for payloads shown to people: the MonitorError
// message (and transport details) without the type/code prefix.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var me *MonitorError
	if !errors.As(err, &me) {
		return err.Error()
	}
	if me.Type == ErrorTypeNetwork && me.Details != "" {
		return me.Message + ": " + me.Details
	}
	return me.Message
}
