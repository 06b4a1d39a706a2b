package errors

import (
	"errors"
	"fmt"
)

// SeekError is the structured error type for logseek.
// It provides context for error handling, logging, and user presentation.
type SeekError struct {
	// Code is the unique error code (e.g., "ERR_206_STORAGE_FAILURE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SeekError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SeekError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SeekError.
func (e *SeekError) Is(target error) bool {
	if t, ok := target.(*SeekError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SeekError) WithDetail(key, value string) *SeekError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *SeekError) WithSuggestion(suggestion string) *SeekError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SeekError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *SeekError {
	return &SeekError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a SeekError from an existing error.
// The error's message becomes the SeekError message.
func Wrap(code string, err error) *SeekError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// StorageError creates a store-layer commit or read failure.
func StorageError(message string, cause error) *SeekError {
	return New(ErrCodeStorageFailure, message, cause)
}

// InvalidQuery creates a query validation error.
func InvalidQuery(message string) *SeekError {
	return New(ErrCodeInvalidQuery, message, nil)
}

// EmptyQuery creates the error for empty or whitespace-only queries.
func EmptyQuery() *SeekError {
	return New(ErrCodeQueryEmpty, "query is empty", nil).
		WithSuggestion("provide at least one search term")
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SeekError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SeekError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the current import run or batch.
func IsFatal(err error) bool {
	var se *SeekError
	if errors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a SeekError anywhere in the chain.
// Returns empty string if the chain holds no SeekError.
func GetCode(err error) string {
	var se *SeekError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SeekError in the chain.
func GetCategory(err error) Category {
	var se *SeekError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// HasCode reports whether err carries the given logseek error code.
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}
