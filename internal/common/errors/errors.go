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

const (
	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"

	ErrCodeSupplierRegistryNotFound   ErrorCode = "SUPPLIER_REGISTRY_NOT_FOUND"
	ErrCodeSupplierRegistryLoadFailed ErrorCode = "SUPPLIER_REGISTRY_LOAD_FAILED"

	ErrCodeExtractionResultNotFound ErrorCode = "EXTRACTION_RESULT_NOT_FOUND"
	ErrCodeExtractionResultNotReady ErrorCode = "EXTRACTION_RESULT_NOT_READY"

	ErrCodeStorageReadFailed  ErrorCode = "STORAGE_READ_FAILED"
	ErrCodeStorageWriteFailed ErrorCode = "STORAGE_WRITE_FAILED"

	ErrCodeOutputSchemaInvalid ErrorCode = "OUTPUT_SCHEMA_INVALID"
	ErrCodeExportFailed        ErrorCode = "EXPORT_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeSearchIndexingFailed   ErrorCode = "SEARCH_INDEXING_FAILED"

	ErrCodeBusinessRuleViolation ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeExternalService       ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout               ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound      ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError unwraps err looking for a *StandardError.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
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

// ToErrorVariables returns the process variables sent along with a failed or thrown job.
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

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInputParsingFailedError is returned when job variables cannot be decoded.
func NewInputParsingFailedError(err error) *StandardError {
	return newError(ErrCodeInputParsingFailed, "Failed to parse job variables", err.Error(), false)
}

// NewValidationFailedError is returned when job input fails its schema.
func NewValidationFailedError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Input validation failed", details, false)
}

// NewSupplierRegistryNotFoundError reports a missing or placeholder supplier list.
func NewSupplierRegistryNotFoundError(details string) *StandardError {
	return newError(ErrCodeSupplierRegistryNotFound, "Supplier registry not available", details, false)
}

// NewSupplierRegistryLoadFailedError reports a transient failure reading the supplier list.
func NewSupplierRegistryLoadFailedError(err error) *StandardError {
	return newError(ErrCodeSupplierRegistryLoadFailed, "Failed to load supplier registry", err.Error(), true)
}

func NewExtractionResultNotFoundError(key string) *StandardError {
	return newError(ErrCodeExtractionResultNotFound, "Extraction result not found", fmt.Sprintf("key: %s", key), false)
}

func NewExtractionResultNotReadyError(fileName string) *StandardError {
	return newError(ErrCodeExtractionResultNotReady, "Extraction result not ready yet", fmt.Sprintf("fileName: %s", fileName), true)
}

func NewStorageReadFailedError(key string, err error) *StandardError {
	return newError(ErrCodeStorageReadFailed, "Storage read failed", fmt.Sprintf("key: %s, error: %s", key, err.Error()), true)
}

func NewStorageWriteFailedError(key string, err error) *StandardError {
	return newError(ErrCodeStorageWriteFailed, "Storage write failed", fmt.Sprintf("key: %s, error: %s", key, err.Error()), true)
}

// NewOutputSchemaInvalidError is returned when an enriched document breaks the output contract.
func NewOutputSchemaInvalidError(details string) *StandardError {
	return newError(ErrCodeOutputSchemaInvalid, "Enriched result failed output schema", details, false)
}

func NewExportFailedError(format string, err error) *StandardError {
	return newError(ErrCodeExportFailed, "Export generation failed", fmt.Sprintf("format: %s, error: %s", format, err.Error()), false)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed", fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

func NewSearchIndexingFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchIndexingFailed, "Search indexing failed", fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRuleViolation, message, details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), details, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal codes to the error codes caught by boundary events.
// Codes missing from the map are thrown unchanged.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInputParsingFailed:         "INVALID_INPUT",
	ErrCodeValidationFailed:           "INVALID_INPUT",
	ErrCodeSupplierRegistryNotFound:   "SUPPLIER_REGISTRY_NOT_FOUND",
	ErrCodeSupplierRegistryLoadFailed: "SUPPLIER_REGISTRY_UNAVAILABLE",
	ErrCodeExtractionResultNotFound:   "EXTRACTION_RESULT_NOT_FOUND",
	ErrCodeExtractionResultNotReady:   "EXTRACTION_RESULT_NOT_READY",
	ErrCodeStorageReadFailed:          "STORAGE_UNAVAILABLE",
	ErrCodeStorageWriteFailed:         "STORAGE_UNAVAILABLE",
	ErrCodeOutputSchemaInvalid:        "OUTPUT_SCHEMA_INVALID",
	ErrCodeExportFailed:               "EXPORT_FAILED",
	ErrCodeNotificationSendFailed:     "NOTIFICATION_SEND_FAILED",
	ErrCodeSearchIndexingFailed:       "SEARCH_INDEXING_FAILED",
}

// GetRetryCount returns the number of retries a failed job gets for code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSupplierRegistryLoadFailed,
		ErrCodeStorageReadFailed,
		ErrCodeStorageWriteFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeSearchIndexingFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeExtractionResultNotReady,
		ErrCodeTimeout:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

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
		Code:           bpmnCode,
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

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SUPPLIER_REGISTRY"):
		return "REGISTRY"
	case strings.Contains(codeStr, "EXTRACTION_RESULT"):
		return "EXTRACTION"
	case strings.Contains(codeStr, "STORAGE") || strings.Contains(codeStr, "EXPORT"):
		return "STORAGE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INPUT") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "SCHEMA"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
