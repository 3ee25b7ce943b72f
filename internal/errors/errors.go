package errors

import (
	stderrors "errors"
	"fmt"
)

// SearchError is the structured error type for feedsearch.
// It provides rich context for error handling, logging, and user presentation.
type SearchError struct {
	// Code is the unique error code (e.g., "ERR_401_INVALID_FIELD").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Engine, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SearchError sentinels.
func (e *SearchError) Is(target error) bool {
	if t, ok := target.(*SearchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SearchError) WithDetail(key, value string) *SearchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *SearchError) WithSuggestion(suggestion string) *SearchError {
	e.Suggestion = suggestion
	return e
}

// Sentinels for errors.Is matching by code.
var (
	ErrInvalidField      = &SearchError{Code: ErrCodeInvalidField}
	ErrInvalidValue      = &SearchError{Code: ErrCodeInvalidValue}
	ErrEngineUnavailable = &SearchError{Code: ErrCodeEngineUnavailable}
)

// New creates a new SearchError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SearchError {
	return &SearchError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SearchError from an existing error.
// The error's message becomes the SearchError message.
func Wrap(code string, err error) *SearchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidField reports an unknown field, entity type or specifier combination.
func InvalidField(format string, args ...any) *SearchError {
	return New(ErrCodeInvalidField, fmt.Sprintf(format, args...), nil)
}

// InvalidValue reports a condition value that does not fit its field.
func InvalidValue(format string, args ...any) *SearchError {
	return New(ErrCodeInvalidValue, fmt.Sprintf(format, args...), nil)
}

// EngineUnavailable reports that the index engine is not open.
func EngineUnavailable(message string, cause error) *SearchError {
	return New(ErrCodeEngineUnavailable, message, cause).
		WithSuggestion("Start the index with Startup() before searching")
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SearchError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SearchError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error chain holds a SearchError with Retryable set.
func IsRetryable(err error) bool {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCode extracts the error code from a SearchError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SearchError in the chain.
func GetCategory(err error) Category {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se.Category
	}
	return ""
}
