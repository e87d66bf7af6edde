// Package errors provides structured error handling for palank-rag.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (SQLite, vector index, filesystem)
//   - 3XX: Embedding service errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates keyword store, vector store, and file errors.
	CategoryStorage Category = "STORAGE"
	// CategoryEmbedding indicates embedding service errors.
	CategoryEmbedding Category = "EMBEDDING"
	// CategoryValidation indicates input validation errors.
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
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"
	ErrCodeAPIKeyMissing = "ERR_102_API_KEY_MISSING"

	// Storage errors (200-299)
	ErrCodeFileNotFound    = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFileTooLarge    = "ERR_202_FILE_TOO_LARGE"
	ErrCodeStoreUnavailable = "ERR_203_STORE_UNAVAILABLE"
	ErrCodeConstraint      = "ERR_204_CONSTRAINT_VIOLATION"
	ErrCodeCorruptIndex    = "ERR_205_CORRUPT_INDEX"
	ErrCodeDocNotFound     = "ERR_206_DOCUMENT_NOT_FOUND"

	// Embedding errors (300-399)
	ErrCodeEmbedRateLimited = "ERR_301_EMBED_RATE_LIMITED"
	ErrCodeEmbedTransport   = "ERR_302_EMBED_TRANSPORT"
	ErrCodeEmbedRejected    = "ERR_303_EMBED_REJECTED"
	ErrCodeEmbedExhausted   = "ERR_304_EMBED_RETRIES_EXHAUSTED"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidQuery      = "ERR_403_INVALID_QUERY"
	ErrCodeInvalidURL        = "ERR_404_INVALID_URL"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeScrapeFailed = "ERR_502_SCRAPE_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "101" from "ERR_101_CONFIG_INVALID".
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryEmbedding
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
// Rate-limit responses and transport failures may succeed on retry;
// a rejected request or exhausted retry budget will not.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbedRateLimited, ErrCodeEmbedTransport, ErrCodeStoreUnavailable:
		return true
	default:
		return false
	}
}
