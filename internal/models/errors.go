package models

import "fmt"

// ValidationError represents a rejected payload or parameter
type ValidationError struct {
	message string
}

// NewValidationError creates a new validation error
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		message: fmt.Sprintf(format, args...),
	}
}

// Error returns the error message
func (e *ValidationError) Error() string {
	return e.message
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// NotFoundError represents a missing entity, investigation, or schema
type NotFoundError struct {
	message string
}

// NewNotFoundError creates a new not-found error
func NewNotFoundError(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{
		message: fmt.Sprintf(format, args...),
	}
}

// Error returns the error message
func (e *NotFoundError) Error() string {
	return e.message
}

// IsNotFoundError checks if an error is a not-found error
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// ConflictError represents a lost optimistic-concurrency race
type ConflictError struct {
	message string
}

// NewConflictError creates a new conflict error
func NewConflictError(format string, args ...interface{}) *ConflictError {
	return &ConflictError{
		message: fmt.Sprintf(format, args...),
	}
}

// Error returns the error message
func (e *ConflictError) Error() string {
	return e.message
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	_, ok := err.(*ConflictError)
	return ok
}
