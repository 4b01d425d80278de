package errors

import (
	"errors"
	"fmt"
)

var (
	// Attempt errors
	ErrAttemptNotFound        = errors.New("payment attempt not found")
	ErrActiveAttemptExists    = errors.New("order already has an active payment attempt")
	ErrTerminalAttempt        = errors.New("payment attempt is already terminal")
	ErrVersionConflict        = errors.New("attempt version conflict")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrAttemptExpired         = errors.New("payment attempt has expired")
	ErrNotRetryable           = errors.New("attempt outcome is not retryable")

	// Gateway errors
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayTimeout     = errors.New("gateway request timeout")
	ErrPushRejected       = errors.New("push request rejected by gateway")
	ErrCancelUnsupported  = errors.New("gateway does not support cancellation")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
