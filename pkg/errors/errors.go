// Package errors provides structured error types for forceweave.
//
// The layout core favours degraded-but-responsive behaviour over failure
// propagation: recoverable conditions such as malformed input or a missing
// force are logged with their [Code] and never returned. The codes defined
// here are still used in those log lines, and by the outer surfaces (CLI,
// HTTP API, worker transport) which do return errors.
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - MALFORMED_INPUT, MISSING_FORCE, DEGENERATE_STATISTIC: recoverable core conditions
//   - *_NOT_FOUND: Resource not found
//   - NETWORK_ERROR, TIMEOUT: transport failures
//   - INTERNAL_ERROR: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidMode, "unknown mode %q", name)
//	if errors.Is(err, errors.ErrCodeInvalidMode) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeWorkerFailed, origErr, "job %s", id)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidCategory Code = "INVALID_CATEGORY"
	ErrCodeInvalidMode     Code = "INVALID_MODE"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"

	// Recoverable core conditions. The graph, layout and session packages
	// log these instead of returning them.
	ErrCodeMalformedInput      Code = "MALFORMED_INPUT"
	ErrCodeMissingForce        Code = "MISSING_FORCE"
	ErrCodeDegenerateStatistic Code = "DEGENERATE_STATISTIC"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeSessionNotFound Code = "SESSION_NOT_FOUND"
	ErrCodeNodeNotFound    Code = "NODE_NOT_FOUND"

	// Layout lifecycle
	ErrCodeSuperseded   Code = "SUPERSEDED"
	ErrCodeWorkerFailed Code = "WORKER_FAILED"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error code onto the HTTP status the API answers with.
// Errors without a code map to 500.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidCategory, ErrCodeInvalidMode,
		ErrCodeInvalidConfig, ErrCodeMalformedInput:
		return 400
	case ErrCodeNotFound, ErrCodeSessionNotFound, ErrCodeNodeNotFound:
		return 404
	case ErrCodeSuperseded:
		return 409
	case ErrCodeTimeout:
		return 504
	case ErrCodeNetwork, ErrCodeWorkerFailed:
		return 502
	case ErrCodeUnsupported:
		return 501
	default:
		return 500
	}
}
