package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation error")
	// ErrStorageUnavailable matches every *StorageError via errors.Is.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

var (
	ErrMissingAmount   = errors.New("amount is required")
	ErrMalformedAmount = errors.New("amount must be a decimal number")
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
	ErrAmountPrecision = errors.New("amount must have at most two decimal places")
	ErrAmountTooLarge  = errors.New("amount exceeds 99999999.99")
	ErrEmptyCategory   = errors.New("category is required")
	ErrMissingDate     = errors.New("date is required")
	ErrMalformedDate   = errors.New("date must be a calendar date in YYYY-MM-DD format")
)

// ValidationError reports a rejected field of a candidate expense.
type ValidationError struct {
	Field string
	Err   error
}

// NewValidationError wraps err for field.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

// Message is the human-readable reason without the field prefix.
func (e *ValidationError) Message() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// StorageError reports a failure to reach or use the persistence layer.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err for the named operation.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage unavailable: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.Err}
}
