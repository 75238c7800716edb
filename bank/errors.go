package bank

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Stable error codes surfaced to API callers.
const (
	CodeAccountNotFound   = "Account.NotFound"
	CodeInsufficientFunds = "Account.InsufficientFunds"
	CodeValidationFailed  = "Validation.Failed"
)

// ErrAccountNotFound is the store-level sentinel for a missing account.
var ErrAccountNotFound = errors.New("bank account not found")

// Error is a domain rejection with a stable code and a human-readable
// description. It is recovered locally and returned to the caller; it never
// commits the ambient unit of work.
type Error struct {
	Code        string
	Description string
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// AccountNotFound builds the rejection for a missing account.
func AccountNotFound(id uuid.UUID) *Error {
	return &Error{
		Code:        CodeAccountNotFound,
		Description: fmt.Sprintf("account not found for %s", id),
	}
}

// InsufficientFunds builds the rejection for a balance below the requested
// withdrawal amount.
func InsufficientFunds(id uuid.UUID) *Error {
	return &Error{
		Code:        CodeInsufficientFunds,
		Description: fmt.Sprintf("insufficient funds for account %s", id),
	}
}

// AsError unwraps a domain rejection from err.
func AsError(err error) (*Error, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr, true
	}

	return nil, false
}

// FieldError describes one invalid command field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is a structured list of field-level failures. It
// short-circuits the pipeline before the handler runs.
type ValidationError struct {
	Errors []FieldError
}

// Error implements error.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fieldErr := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fieldErr.Field, fieldErr.Message))
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError unwraps a validation failure from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr, true
	}

	return nil, false
}
