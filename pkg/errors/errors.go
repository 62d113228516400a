// Package errors provides structured error types for the larder compiler.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the stage runner
//   - Machine-readable rejection codes for per-record failures
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes fall into three families:
//   - REJECT_*: per-record rejections; the record is dropped, the batch proceeds
//   - STAGE_*: stage-fatal failures; downstream stages do not run
//   - INVALID_*: input validation failures surfaced before any stage runs
//
// # Usage
//
//	err := errors.New(errors.CodeMissingSubstrate, "no substrate for (%s, %s)", taxon, part)
//	if errors.Is(err, errors.CodeMissingSubstrate) {
//	    // drop the record, keep going
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.CodeStageIO, origErr, "read %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Per-record rejection codes. These appear in rejection reports and are
// shared between the expander, the canonicalizer, and the curation boundary.
const (
	CodeInvalidTransform    Code = "REJECT_INVALID_TRANSFORM"
	CodeMissingSubstrate    Code = "REJECT_MISSING_SUBSTRATE"
	CodeUnresolvedFamily    Code = "REJECT_UNRESOLVED_FAMILY"
	CodeIdentityParam       Code = "REJECT_IDENTITY_PARAM_INVALID"
	CodeIDCollision         Code = "REJECT_ID_COLLISION"
	CodeInvalidTaxon        Code = "REJECT_INVALID_TAXON"
	CodeInvalidPart         Code = "REJECT_INVALID_PART"
)

// Stage-fatal codes. A stage that returns one of these blocks everything
// downstream; previously published artifacts remain usable.
const (
	CodeStageContract Code = "STAGE_CONTRACT_VIOLATION"
	CodeStageLint     Code = "STAGE_LINT_ERRORS"
	CodeStageIO       Code = "STAGE_IO_ERROR"
	CodeStageUnknown  Code = "STAGE_UNKNOWN"
)

// Input validation codes.
const (
	CodeInvalidID     Code = "INVALID_ID"
	CodeInvalidConfig Code = "INVALID_CONFIG"
	CodeInvalidSource Code = "INVALID_SOURCE"
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

// Is reports whether err carries the given error code.
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

// IsRejection reports whether err is a per-record rejection rather than a
// stage-fatal failure. Rejections drop the offending record; everything else
// stops the stage.
func IsRejection(err error) bool {
	code := GetCode(err)
	return len(code) > 7 && code[:7] == "REJECT_"
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
