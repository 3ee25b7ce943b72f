// Package errors provides structured error handling for feedsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (queue database, index directory)
//   - 3XX: Engine errors (index engine lifecycle)
//   - 4XX: Validation errors (search fields and values)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryEngine indicates the full-text engine is not usable.
	CategoryEngine Category = "ENGINE"
	// CategoryValidation indicates search input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeQueueIO      = "ERR_201_QUEUE_IO"
	ErrCodeCorruptIndex = "ERR_202_CORRUPT_INDEX"
	ErrCodeDataDirLock  = "ERR_203_DATA_DIR_LOCKED"

	// Engine errors (300-399)
	ErrCodeEngineUnavailable = "ERR_301_ENGINE_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidField = "ERR_401_INVALID_FIELD"
	ErrCodeInvalidValue = "ERR_402_INVALID_VALUE"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
	ErrCodeFlushFailed  = "ERR_503_FLUSH_FAILED"
	ErrCodeIndexFailed  = "ERR_504_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "401" from "ERR_401_INVALID_FIELD")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryEngine
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// An unavailable engine recovers after Startup; a failed flush keeps its
// entries queued for the next attempt.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEngineUnavailable, ErrCodeFlushFailed, ErrCodeDataDirLock:
		return true
	default:
		return false
	}
}
