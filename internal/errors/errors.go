// Package errors provides a lightweight structured error type (FlowError)
// for category-based classification and retry semantics across the engine and CLI.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of a docsflow error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Run admission and execution errors
	CategoryCycle      ErrorCategory = "cycle"
	CategoryGuard      ErrorCategory = "guard"
	CategoryInvocation ErrorCategory = "invocation"
	CategoryTimeout    ErrorCategory = "timeout"
	CategoryCancelled  ErrorCategory = "cancelled"

	// Runtime and infrastructure errors
	CategoryStorage  ErrorCategory = "storage"
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// FlowError is a structured error with category, retryability, and context
type FlowError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for FlowError
type ContextFields map[string]any

// Error implements the error interface
func (e *FlowError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *FlowError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *FlowError) WithContext(key string, value any) *FlowError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new FlowError
func New(category ErrorCategory, severity ErrorSeverity, message string) *FlowError {
	return &FlowError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: false,
	}
}

// Wrap creates a new FlowError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *FlowError {
	return &FlowError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// WrapRetryable creates a new retryable FlowError that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *FlowError {
	return &FlowError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// IsTimeout reports whether the error is an invocation timeout.
func IsTimeout(err error) bool { return IsCategory(err, CategoryTimeout) }

// IsCancelled reports whether the error is a cancellation.
func IsCancelled(err error) bool { return IsCategory(err, CategoryCancelled) }

// GetCategory extracts the category from an error, or returns CategoryInternal if not a FlowError
func GetCategory(err error) ErrorCategory {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return CategoryInternal
}
