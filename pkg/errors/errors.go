// Package errors defines the category-tagged error taxonomy used as the
// failure value of every Result carried through the pipeline.
package errors

import (
	"errors"
	"fmt"
)

// Category is the error taxonomy from the propagation policy: every
// handler returns one of these instead of an ad-hoc error type.
type Category string

const (
	Validation    Category = "VALIDATION"    // bad user input, bad config, bad workflow spec
	Business      Category = "BUSINESS"      // semantic handler failure (unknown command, extraction failed, ...)
	System        Category = "SYSTEM"        // queue closed unexpectedly, snapshot write failed, ...
	Authorization Category = "AUTHORIZATION" // tool/provider rejected on credentials or policy
	Cancelled     Category = "CANCELLED"     // cooperative cancellation, not a user-facing error
)

// Well-known codes layered under a Category for callers that want to
// switch on more than the coarse taxonomy (e.g. COMMAND_CONFLICT vs
// generic BUSINESS).
type Code string

const (
	CodeInvalidConfig        Code = "INVALID_CONFIG"
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeQueueClosed          Code = "QUEUE_CLOSED"
	CodeQueueFull            Code = "QUEUE_FULL"
	CodeQueueAlreadyIterating Code = "QUEUE_ALREADY_ITERATING"
	CodeCommandConflict      Code = "COMMAND_CONFLICT"
	CodeAllProvidersExhausted Code = "ALL_PROVIDERS_EXHAUSTED"
	CodeExtractionFailed     Code = "EXTRACTION_FAILED"
	CodeToolError            Code = "TOOL_ERROR"
	CodeValidationFailed     Code = "VALIDATION_FAILED"
	CodeNotFound             Code = "NOT_FOUND"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// AppError is the concrete error value: a Category for coarse routing plus
// an optional finer Code, a human message, and an optional wrapped cause.
type AppError struct {
	Category Category
	Code     Code
	Message  string
	Err      error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Category, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Category, e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(category Category, code Code, message string) *AppError {
	return &AppError{Category: category, Code: code, Message: message}
}

func Wrap(category Category, code Code, message string, cause error) *AppError {
	return &AppError{Category: category, Code: code, Message: message, Err: cause}
}

func NewValidation(code Code, message string) *AppError {
	return New(Validation, code, message)
}

func NewBusiness(code Code, message string) *AppError {
	return New(Business, code, message)
}

func NewSystem(code Code, message string) *AppError {
	return New(System, code, message)
}

func WrapSystem(code Code, message string, cause error) *AppError {
	return Wrap(System, code, message, cause)
}

func NewAuthorization(code Code, message string) *AppError {
	return New(Authorization, code, message)
}

// NewCancelled builds the terminal-but-not-an-error CANCELLED signal.
func NewCancelled(message string) *AppError {
	return New(Cancelled, "CANCELLED", message)
}

// Is reports whether err is an AppError tagged with the given category.
func Is(err error, category Category) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category == category
	}
	return false
}

// HasCode reports whether err is an AppError tagged with the given code.
func HasCode(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsCancelled is a convenience check used on the hot path where a
// cancellation must be distinguished from a genuine failure.
func IsCancelled(err error) bool {
	return Is(err, Cancelled)
}
