// Package apperrors provides structured application errors with exit-code mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation  = errors.New("validation error")
	ErrListing     = errors.New("listing error")      // input-prefix listing failed
	ErrSubmit      = errors.New("submit error")       // batch runner rejected a submission
	ErrStatusQuery = errors.New("status query error") // batch runner describe call failed
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "chunk-size")
	Prefix   string // For listing errors (e.g., "s3://bucket/delivery/raw/")
	Unit     string // Work unit id, when the error is scoped to one unit
	Op       string // Operation that failed (e.g., "batch.submit")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Validation creates a validation error for a specific field or flag.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// Listing creates a fatal listing error for a storage prefix.
func Listing(prefix string, cause error) error {
	return &Error{
		Sentinel: ErrListing,
		Message:  fmt.Sprintf("listing %s: %v", prefix, cause),
		Prefix:   prefix,
		Cause:    cause,
	}
}

// Submit creates a submission error scoped to one work unit.
func Submit(unit string, cause error) error {
	return &Error{
		Sentinel: ErrSubmit,
		Message:  fmt.Sprintf("submitting unit %s: %v", unit, cause),
		Unit:     unit,
		Op:       "batch.submit",
		Cause:    cause,
	}
}

// StatusQuery creates an error for a failed batch describe call.
func StatusQuery(cause error) error {
	return &Error{
		Sentinel: ErrStatusQuery,
		Message:  fmt.Sprintf("querying job statuses: %v", cause),
		Op:       "batch.describe",
		Cause:    cause,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
