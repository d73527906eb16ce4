// Package errors defines the structured error taxonomy for the securewipe
// receipt service.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a receipt was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., duplicate job_id).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data, rejected before any persistence.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeSerialization indicates a payload that cannot be canonicalized.
	ErrCodeSerialization ErrorCode = "serialization"
	// ErrCodeKeyLoad indicates the signing key material is malformed or unreadable.
	ErrCodeKeyLoad ErrorCode = "key_load"
	// ErrCodeSigning indicates a cryptographic failure while signing.
	ErrCodeSigning ErrorCode = "signing"
	// ErrCodeCertificate indicates certificate rendering or publishing failed.
	// The signature stays valid; the job remains signed.
	ErrCodeCertificate ErrorCode = "certificate"
	// ErrCodeDelivery indicates certificate delivery failed. Non-fatal to job state.
	ErrCodeDelivery ErrorCode = "delivery"
	// ErrCodeStore indicates the receipt store is unavailable or rejected a write.
	ErrCodeStore ErrorCode = "store"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// Stage identifies the lifecycle step an error originated from. Every error
// surfaced by the receipt service carries the job id and the failing stage.
type Stage string

const (
	StageCreate      Stage = "create"
	StageReport      Stage = "report"
	StageCanonical   Stage = "canonicalize"
	StageSign        Stage = "sign"
	StageCertificate Stage = "certificate"
	StageSend        Stage = "send"
	StagePersist     Stage = "persist"
)

// AppError represents a structured application error with a code, message,
// and optional cause. It supports error wrapping and unwrapping for use with
// errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
	// JobID is the wipe job the error relates to (optional)
	JobID string
	// Stage is the lifecycle step the error originated from (optional)
	Stage Stage
}

// Error implements the error interface.
func (e *AppError) Error() string {
	msg := e.Message
	if e.JobID != "" {
		msg = fmt.Sprintf("job %s: %s", e.JobID, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithJob returns a copy annotated with the job id and failing stage.
func (e *AppError) WithJob(jobID string, stage Stage) *AppError {
	clone := *e
	clone.JobID = jobID
	clone.Stage = stage
	return &clone
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// Conflictf creates a new Conflict error with formatted message.
func Conflictf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Serialization creates a new Serialization error.
func Serialization(message string) *AppError {
	return &AppError{Code: ErrCodeSerialization, Message: message}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool {
	return isCode(err, ErrCodeConflict)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsSerialization checks if an error is a Serialization error.
func IsSerialization(err error) bool {
	return isCode(err, ErrCodeSerialization)
}

// IsKeyLoad checks if an error is a KeyLoad error.
func IsKeyLoad(err error) bool {
	return isCode(err, ErrCodeKeyLoad)
}

// IsSigning checks if an error is a Signing error.
func IsSigning(err error) bool {
	return isCode(err, ErrCodeSigning)
}

// IsDelivery checks if an error is a Delivery error.
func IsDelivery(err error) bool {
	return isCode(err, ErrCodeDelivery)
}

// IsStore checks if an error is a Store error.
func IsStore(err error) bool {
	return isCode(err, ErrCodeStore)
}

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool {
	return isCode(err, ErrCodeInternal)
}

// IsRecoverable reports whether the error degrades the job to its last
// completed state rather than failing it. Signing, certificate, and delivery
// failures are recoverable; store failures are not.
func IsRecoverable(err error) bool {
	switch GetCode(err) {
	case ErrCodeKeyLoad, ErrCodeSigning, ErrCodeSerialization, ErrCodeCertificate, ErrCodeDelivery:
		return true
	default:
		return false
	}
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetStage returns the Stage from an error, or empty string if not set.
func GetStage(err error) Stage {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Stage
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
