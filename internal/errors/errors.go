package errors

import (
	"errors"
	"fmt"
)

// Application-specific errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("resource conflict")
	ErrForbidden           = errors.New("forbidden")
	ErrMailerNotConfigured = errors.New("mailer not configured")
)

// ValidationError represents a missing or malformed field on a create/update
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// CorruptStateError means the data file exists but cannot be parsed.
// Fatal to the request that hit it, not to the process.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt data file %s: %v", e.Path, e.Err)
}

func (e CorruptStateError) Unwrap() error {
	return e.Err
}

// StoreError represents a persistence-level failure in either backend
type StoreError struct {
	Operation string
	Err       error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Operation, e.Err)
}

func (e StoreError) Unwrap() error {
	return e.Err
}

// MailError wraps a mail transport failure. Non-fatal: the notifier logs
// it and reports the milestone as not sent.
type MailError struct {
	Subject string
	Err     error
}

func (e MailError) Error() string {
	return fmt.Sprintf("mail error sending '%s': %v", e.Subject, e.Err)
}

func (e MailError) Unwrap() error {
	return e.Err
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error `json:"errors"`
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0].Error(), len(e.Errors)-1)
}

// Add adds an error to the MultiError
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (e *MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}
