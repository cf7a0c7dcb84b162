// Package errors provides structured error types for harvest.
//
// Error codes let the CLI, the HTTP adapter and the story machine agree on
// what went wrong without string matching:
//   - INVALID_*: input validation failures (years, steps, layouts, formats)
//   - NOT_FOUND: missing countries, sessions or files
//   - DATASET_LOAD_FAILED / GEOMETRY_UNAVAILABLE: one-shot resource failures
//   - NETWORK_ERROR / INTERNAL_ERROR: transport and unexpected failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidYear, "year %d outside %d-%d", y, lo, hi)
//	if errors.Is(err, errors.ErrCodeInvalidYear) {
//	    // reject the slider value
//	}
//
//	err := errors.Wrap(errors.ErrCodeDatasetLoad, origErr, "load %s", path)
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
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidYear   Code = "INVALID_YEAR"
	ErrCodeInvalidStep   Code = "INVALID_STEP"
	ErrCodeInvalidLayout Code = "INVALID_LAYOUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeInvalidCanvas Code = "INVALID_CANVAS"

	// Resource errors
	ErrCodeNotFound            Code = "NOT_FOUND"
	ErrCodeDatasetLoad         Code = "DATASET_LOAD_FAILED"
	ErrCodeGeometryUnavailable Code = "GEOMETRY_UNAVAILABLE"
	ErrCodeSliderDisabled      Code = "SLIDER_DISABLED"
	ErrCodeNotReady            Code = "NOT_READY"

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

// HTTPStatus maps an error code to the status the HTTP adapter reports.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidYear, ErrCodeInvalidStep,
		ErrCodeInvalidLayout, ErrCodeInvalidFormat, ErrCodeInvalidPath, ErrCodeInvalidCanvas:
		return 400
	case ErrCodeNotFound:
		return 404
	case ErrCodeSliderDisabled:
		return 409
	case ErrCodeNotReady:
		return 425
	case ErrCodeDatasetLoad, ErrCodeGeometryUnavailable, ErrCodeNetwork:
		return 502
	case ErrCodeTimeout:
		return 504
	default:
		return 500
	}
}
