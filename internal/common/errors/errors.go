// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Configuration errors. Fatal to the feature that needs the setting.
const (
	ErrCodeConfigMissingAPIKey ErrorCode = "CONFIG_MISSING_API_KEY"
	ErrCodeConfigInvalid       ErrorCode = "CONFIG_INVALID"
)

// Transient errors. Retried with backoff, then degraded.
const (
	ErrCodeWebSearchFailed        ErrorCode = "WEB_SEARCH_FAILED"
	ErrCodeWebSearchTimeout       ErrorCode = "WEB_SEARCH_TIMEOUT"
	ErrCodePageFetchFailed        ErrorCode = "PAGE_FETCH_FAILED"
	ErrCodeLLMTimeout             ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMExtractionFailed    ErrorCode = "LLM_EXTRACTION_FAILED"
	ErrCodeDatabaseConnection     ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseWriteFailed    ErrorCode = "DATABASE_WRITE_FAILED"
	ErrCodeDatabaseReadFailed     ErrorCode = "DATABASE_READ_FAILED"
	ErrCodeCacheUnavailable       ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeIndexUnavailable       ErrorCode = "CATALOG_INDEX_UNAVAILABLE"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeBrokerUnavailable      ErrorCode = "BROKER_UNAVAILABLE"
	ErrCodeBrokerTimeout          ErrorCode = "BROKER_TIMEOUT"
)

// Parse errors. Logged; the field or candidate is dropped or zero-scored.
const (
	ErrCodeLLMResponseMalformed ErrorCode = "LLM_RESPONSE_MALFORMED"
	ErrCodeThresholdParseFailed ErrorCode = "THRESHOLD_PARSE_FAILED"
)

// Validation and lookup errors. Rejected at the boundary, never retried.
const (
	ErrCodeProfileValidationFailed ErrorCode = "PROFILE_VALIDATION_FAILED"
	ErrCodeStudentNotFound         ErrorCode = "STUDENT_NOT_FOUND"
	ErrCodeInvalidDocumentStatus   ErrorCode = "INVALID_DOCUMENT_STATUS"
	ErrCodeInvalidJobInput         ErrorCode = "INVALID_JOB_INPUT"
	ErrCodeInternal                ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns e after attaching a metadata key.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewMissingAPIKeyError reports an unset API key for a feature.
func NewMissingAPIKeyError(feature string) *StandardError {
	return newError(ErrCodeConfigMissingAPIKey,
		fmt.Sprintf("API key for %s is not configured", feature),
		fmt.Sprintf("feature: %s", feature), false, nil)
}

// NewConfigInvalidError reports an unusable configuration value.
func NewConfigInvalidError(details string) *StandardError {
	return newError(ErrCodeConfigInvalid, "Invalid configuration", details, false, nil)
}

// NewWebSearchFailedError wraps a search provider failure.
func NewWebSearchFailedError(provider string, err error) *StandardError {
	return newError(ErrCodeWebSearchFailed, "Web search request failed",
		fmt.Sprintf("provider: %s, error: %v", provider, err), true, err)
}

// NewWebSearchTimeoutError reports a search call that exceeded its deadline.
func NewWebSearchTimeoutError(provider string) *StandardError {
	return newError(ErrCodeWebSearchTimeout, "Web search API timeout",
		fmt.Sprintf("provider: %s", provider), true, nil)
}

// NewPageFetchFailedError wraps a page download failure.
func NewPageFetchFailedError(url string, err error) *StandardError {
	return newError(ErrCodePageFetchFailed, "Page fetch failed",
		fmt.Sprintf("url: %s, error: %v", url, err), true, err)
}

// NewLLMTimeoutError reports a model call that exceeded its deadline.
func NewLLMTimeoutError() *StandardError {
	return newError(ErrCodeLLMTimeout, "Language model timeout",
		"model call exceeded its deadline", true, nil)
}

// NewLLMExtractionFailedError wraps a model call failure after retries.
func NewLLMExtractionFailedError(err error) *StandardError {
	return newError(ErrCodeLLMExtractionFailed, "Language model call failed", errString(err), true, err)
}

// NewLLMResponseMalformedError reports a reply that could not be parsed.
func NewLLMResponseMalformedError(details string) *StandardError {
	return newError(ErrCodeLLMResponseMalformed, "Language model response could not be parsed", details, false, nil)
}

// NewThresholdParseError reports an eligibility threshold that is not a number.
func NewThresholdParseError(criterion, raw string, err error) *StandardError {
	return newError(ErrCodeThresholdParseFailed, "Eligibility threshold could not be parsed",
		fmt.Sprintf("criterion: %s, raw: %q", criterion, raw), false, err)
}

// NewDatabaseConnectionError creates a retryable database connection error.
func NewDatabaseConnectionError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnection, "Database connection error", errString(err), true, err)
}

// NewDatabaseWriteError creates a retryable write error.
func NewDatabaseWriteError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseWriteFailed, "Database write failed",
		fmt.Sprintf("operation: %s, error: %v", operation, err), true, err)
}

// NewDatabaseReadError creates a retryable read error.
func NewDatabaseReadError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseReadFailed, "Database read failed",
		fmt.Sprintf("operation: %s, error: %v", operation, err), true, err)
}

// NewCacheUnavailableError wraps a Redis failure.
func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Cache unavailable", errString(err), true, err)
}

// NewIndexUnavailableError wraps an Elasticsearch failure.
func NewIndexUnavailableError(err error) *StandardError {
	return newError(ErrCodeIndexUnavailable, "University catalog index unavailable", errString(err), true, err)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %v", channel, err), true, err)
}

// NewProfileValidationError creates a non-retryable validation error.
func NewProfileValidationError(details string) *StandardError {
	return newError(ErrCodeProfileValidationFailed, "Student profile validation failed", details, false, nil)
}

// NewStudentNotFoundError reports an unknown contact identifier.
func NewStudentNotFoundError(contact string) *StandardError {
	return newError(ErrCodeStudentNotFound, "Student not found",
		fmt.Sprintf("contactInfo: %s", contact), false, nil)
}

// NewInvalidDocumentStatusError reports a status outside the allowed set.
func NewInvalidDocumentStatusError(status string) *StandardError {
	return newError(ErrCodeInvalidDocumentStatus, "Invalid document status",
		fmt.Sprintf("status: %s", status), false, nil)
}

// NewInvalidJobInputError reports job variables that cannot be decoded.
func NewInvalidJobInputError(err error) *StandardError {
	return newError(ErrCodeInvalidJobInput, "Invalid job variables", errString(err), false, err)
}

// NewBrokerUnavailableError reports a Zeebe gateway that cannot be reached.
func NewBrokerUnavailableError(operation string, err error) *StandardError {
	return newError(ErrCodeBrokerUnavailable, "Workflow broker unavailable",
		fmt.Sprintf("operation: %s, error: %s", operation, errString(err)), true, err)
}

// NewBrokerTimeoutError reports a Zeebe command that ran out of time.
func NewBrokerTimeoutError(operation string, err error) *StandardError {
	return newError(ErrCodeBrokerTimeout, "Workflow broker timed out",
		fmt.Sprintf("operation: %s, error: %s", operation, errString(err)), true, err)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeWebSearchFailed,
		ErrCodePageFetchFailed,
		ErrCodeLLMExtractionFailed,
		ErrCodeDatabaseConnection,
		ErrCodeDatabaseWriteFailed,
		ErrCodeDatabaseReadFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeBrokerUnavailable:
		return 3

	case ErrCodeWebSearchTimeout,
		ErrCodeBrokerTimeout,
		ErrCodeCacheUnavailable,
		ErrCodeIndexUnavailable:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
// BPMN codes are identical to the internal codes.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard returns err as a *StandardError, wrapping unknown errors as
// non-retryable internal errors.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", errString(err), false, err)
}

// HasCode reports whether err is a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the taxonomy class of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "CONFIG"):
		return "CONFIGURATION"
	case code == ErrCodeLLMResponseMalformed || code == ErrCodeThresholdParseFailed:
		return "PARSE"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "NOT_FOUND"):
		return "VALIDATION"
	case IsRetryableErrorCode(code):
		return "TRANSIENT"
	default:
		return "OTHER"
	}
}
