package errors

import (
	stderrors "errors"
	"fmt"
)

// AmanError is the structured error type for amanrag.
// It carries a stable code for matching plus context for logging and CLI output.
type AmanError struct {
	// Code is the unique error code (e.g., "ERR_205_CORRUPT_INDEX").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category derived from the code.
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

// Sentinels for errors.Is checks. Matching is by code, so any AmanError
// carrying the same code matches regardless of message.
var (
	ErrIndexNotReady         = &AmanError{Code: ErrCodeIndexNotReady}
	ErrCapabilityUnavailable = &AmanError{Code: ErrCodeCapabilityUnavailable}
	ErrCorruptIndex          = &AmanError{Code: ErrCodeCorruptIndex}
	ErrEmptyInput            = &AmanError{Code: ErrCodeEmptyInput}
	ErrInvalidInput          = &AmanError{Code: ErrCodeInvalidInput}
	ErrDimensionMismatch     = &AmanError{Code: ErrCodeDimensionMismatch}
	ErrConfigInvalid         = &AmanError{Code: ErrCodeConfigInvalid}
)

// Error implements the error interface.
func (e *AmanError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AmanError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AmanError with the same code.
func (e *AmanError) Is(target error) bool {
	if t, ok := target.(*AmanError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *AmanError) WithDetail(key, value string) *AmanError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *AmanError) WithSuggestion(suggestion string) *AmanError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AmanError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *AmanError {
	return &AmanError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates an AmanError from an existing error.
func Wrap(code string, err error) *AmanError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AmanError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InvalidInput creates a validation error.
func InvalidInput(message string) *AmanError {
	return New(ErrCodeInvalidInput, message, nil)
}

// EmptyInput creates an empty-input error (zero documents, chunks or cases).
func EmptyInput(message string) *AmanError {
	return New(ErrCodeEmptyInput, message, nil)
}

// IndexNotReady creates the error returned when querying before build or load.
func IndexNotReady() *AmanError {
	return New(ErrCodeIndexNotReady, "index not ready", nil).
		WithSuggestion("run 'amanrag build --docs <file>' or load an existing index first")
}

// CapabilityUnavailable creates an error for an embedder or reranker that failed to initialize.
func CapabilityUnavailable(capability string, cause error) *AmanError {
	return New(ErrCodeCapabilityUnavailable, capability+" unavailable", cause).
		WithDetail("capability", capability)
}

// CorruptIndex creates an error for a persisted index that cannot be used.
func CorruptIndex(dir, message string, cause error) *AmanError {
	return New(ErrCodeCorruptIndex, message, cause).
		WithDetail("index_dir", dir).
		WithSuggestion("rebuild the index with 'amanrag build'")
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var ae *AmanError
	if stderrors.As(err, &ae) {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an AmanError.
// Returns empty string if not an AmanError.
func GetCode(err error) string {
	var ae *AmanError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
