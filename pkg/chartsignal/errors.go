package chartsignal

import (
	"errors"
	"fmt"
)

// ErrorCode defines error classification codes for structured error handling.
type ErrorCode string

// Error codes for different error categories.
const (
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeUnavailable   ErrorCode = "ANALYSIS_UNAVAILABLE"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// ErrAnalysisUnavailable reports that the inference call could not produce a response.
// Every *Error with ErrCodeUnavailable matches it under errors.Is.
var ErrAnalysisUnavailable = errors.New("analysis unavailable")

// Error represents a structured error with classification code.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets unavailable errors match ErrAnalysisUnavailable.
func (e *Error) Is(target error) bool {
	return target == ErrAnalysisUnavailable && e.Code == ErrCodeUnavailable
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with classification code and additional context.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// IsErrorCode checks if an error matches a specific error code.
func IsErrorCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ClientMessage returns the message safe to show to a caller. Validation
// messages are passed through verbatim; everything else is generic.
func ClientMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && (e.Code == ErrCodeValidation || e.Code == ErrCodeInvalidInput) {
		return e.Message
	}
	return GenericFailureMessage
}

// GenericFailureMessage is returned to callers for any server-side failure.
const GenericFailureMessage = "Unable to analyze chart. Please try again."
