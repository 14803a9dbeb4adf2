// Package errors provides structured error handling for imagevault.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and image decoding errors
//   - 3XX: Storage errors
//   - 4XX: Query errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and image decoding errors.
	CategoryIO Category = "IO"
	// CategoryStorage indicates database errors.
	CategoryStorage Category = "STORAGE"
	// CategoryQuery indicates query parsing and execution errors.
	CategoryQuery Category = "QUERY"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299). Per-item: one file failing never stops the pipeline.
	ErrCodeFileNotFound  = "ERR_201_FILE_NOT_FOUND"
	ErrCodeDecodeFailed  = "ERR_202_DECODE_FAILED"
	ErrCodeHashFailed    = "ERR_203_HASH_FAILED"
	ErrCodeArchiveFailed = "ERR_204_ARCHIVE_FAILED"

	// Storage errors (300-399)
	ErrCodeStorageOpen    = "ERR_301_STORAGE_OPEN" // fatal: no store without a backend
	ErrCodeInsertFailed   = "ERR_302_INSERT_FAILED"
	ErrCodeDuplicatePath  = "ERR_303_DUPLICATE_PATH"
	ErrCodeQueryExecution = "ERR_304_QUERY_EXECUTION"

	// Query errors (400-499)
	ErrCodeMalformedQuery = "ERR_401_MALFORMED_QUERY"
	ErrCodeBadReference   = "ERR_402_BAD_REFERENCE_IMAGE"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode derives the category from the numeric range of a code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryStorage
	case '4':
		return CategoryQuery
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the severity from the code.
// Storage-open failure is the only fatal code: everything else is
// recoverable per-item or surfaced to the caller.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStorageOpen, ErrCodeConfigInvalid:
		return SeverityFatal
	case ErrCodeDuplicatePath:
		return SeverityWarning
	default:
		return SeverityError
	}
}
