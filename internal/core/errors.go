package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input or setup
	ErrCatExecution  ErrorCategory = "execution"  // Runtime failure
	ErrCatTimeout    ErrorCategory = "timeout"    // Operation timed out
	ErrCatState      ErrorCategory = "state"      // Working tree state conflict
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrExecution creates an execution error.
func ErrExecution(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatExecution,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      CodeTimeout,
		Message:   message,
		Retryable: true,
	}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      "NOT_FOUND",
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// ErrHarnessFailure reports a test run that produced no structured report.
func ErrHarnessFailure(message string) *DomainError {
	return ErrExecution(CodeHarnessFailure, message)
}

// ErrParse reports a malformed structured test report.
func ErrParse(message string) *DomainError {
	return &DomainError{
		Category: ErrCatExecution,
		Code:     CodeParseError,
		Message:  message,
	}
}

// ErrRunTimeout reports a test run that exceeded its ceiling.
func ErrRunTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      CodeRunTimeout,
		Message:   message,
		Retryable: true,
	}
}

// ErrTestNotFound reports a test name that does not resolve to a collectible test.
func ErrTestNotFound(name TestName) *DomainError {
	return &DomainError{
		Category: ErrCatNotFound,
		Code:     CodeTestNotFound,
		Message:  fmt.Sprintf("test not found: %s", name),
	}
}

// ErrNothingToCommit reports a commit attempted on a clean tree.
func ErrNothingToCommit() *DomainError {
	return ErrState(CodeNothingToCommit, "working tree is clean, nothing to commit")
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// GetCode extracts the error code, or "" for non-domain errors.
func GetCode(err error) string {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Code
	}
	return ""
}

// IsCode checks if an error carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && GetCode(err) == code
}

// Predefined error codes
const (
	// Test runner
	CodeHarnessFailure = "HARNESS_FAILURE"
	CodeParseError     = "PARSE_ERROR"
	CodeRunTimeout     = "RUN_TIMEOUT"
	CodeTestNotFound   = "TEST_NOT_FOUND"

	// Working tree
	CodeNothingToCommit = "NOTHING_TO_COMMIT"
	CodeNotGitRepo      = "NOT_GIT_REPO"
	CodeDirtyTree       = "DIRTY_TREE"

	// Agent
	CodeTimeout         = "TIMEOUT"
	CodeAgentError      = "AGENT_ERROR"
	CodePreflightFailed = "PREFLIGHT_FAILED"
	CodeAgentNotFound   = "AGENT_NOT_FOUND"

	// Setup
	CodeInvalidConfig = "INVALID_CONFIG"
	CodeEmptyPrompt   = "EMPTY_PROMPT"
	CodePromptTooLong = "PROMPT_TOO_LONG"
)

// MaxPromptLength is the maximum allowed rendered prompt length.
const MaxPromptLength = 100000
