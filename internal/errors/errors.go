package errors

import (
	"errors"
	"fmt"
)

// VaultError is the structured error type for imagevault.
// It provides context for error handling, logging, and user presentation.
type VaultError struct {
	// Code is the unique error code (e.g., "ERR_303_DUPLICATE_PATH").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Storage, Query, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *VaultError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *VaultError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with VaultError.
func (e *VaultError) Is(target error) bool {
	if t, ok := target.(*VaultError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *VaultError) WithDetail(key, value string) *VaultError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new VaultError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *VaultError {
	return &VaultError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a VaultError from an existing error.
// The error's message becomes the VaultError message.
func Wrap(code string, err error) *VaultError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Conflict creates a duplicate-canonical-path error for the given path.
// The drain task treats this as success-no-op; direct callers report it.
func Conflict(path string) *VaultError {
	return New(ErrCodeDuplicatePath, fmt.Sprintf("path already indexed: %s", path), nil).
		WithDetail("path", path)
}

// MalformedQuery creates a query-syntax error. Previous results are
// retained by the caller; this never clears state.
func MalformedQuery(message string) *VaultError {
	return New(ErrCodeMalformedQuery, message, nil)
}

// IsConflict reports whether err is a duplicate-path conflict.
func IsConflict(err error) bool {
	return errors.Is(err, &VaultError{Code: ErrCodeDuplicatePath})
}

// IsMalformedQuery reports whether err is a query-syntax error.
func IsMalformedQuery(err error) bool {
	return errors.Is(err, &VaultError{Code: ErrCodeMalformedQuery})
}

// IsFatal reports whether err carries fatal severity anywhere in its chain.
func IsFatal(err error) bool {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Severity == SeverityFatal
	}
	return false
}

// CodeOf extracts the error code from err, or ErrCodeInternal if it is not
// a VaultError.
func CodeOf(err error) string {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ErrCodeInternal
}
