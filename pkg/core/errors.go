package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers wrap them with %w and test with errors.Is.
var (
	// ErrTransport marks a collaborator that could not be reached or timed out.
	ErrTransport = errors.New("transport error")

	// ErrUnresolvedTarget marks an attempt where no resolver located the target.
	ErrUnresolvedTarget = errors.New("unresolved target")

	// ErrInterruption marks an attempt that observed an interruption overlay.
	ErrInterruption = errors.New("interruption detected")

	// ErrAttemptLimitExceeded is the terminal failure of a step.
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")

	// ErrInvalidStep marks a step definition that cannot be executed.
	ErrInvalidStep = errors.New("invalid step")
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: unresolved_target, transport, ...
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	c := *e
	c.Cause = cause
	return &c
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	c := *e
	c.Details = merged
	return &c
}

// NewTransportError wraps a collaborator failure so that it matches ErrTransport.
func NewTransportError(collaborator string, cause error) *ExecutionError {
	return &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "transport",
		Message:  collaborator + " unavailable",
		Details:  map[string]interface{}{"collaborator": collaborator},
		Cause:    fmt.Errorf("%w: %w", ErrTransport, cause),
	}
}

// NewStepError reports a step definition problem; it matches ErrInvalidStep.
func NewStepError(stepID, field, message string) *ExecutionError {
	return &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_step",
		Message:  fmt.Sprintf("step %q: %s", stepID, message),
		Details:  map[string]interface{}{"step": stepID, "field": field},
		Cause:    ErrInvalidStep,
	}
}

// NewAttemptLimitError reports a step that exhausted its attempts.
func NewAttemptLimitError(stepID string, attempts int, last string) *ExecutionError {
	return &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "attempt_limit_exceeded",
		Message:  fmt.Sprintf("step %q failed after %d attempt(s): %s", stepID, attempts, last),
		Details:  map[string]interface{}{"step": stepID, "attempts": attempts},
		Cause:    ErrAttemptLimitExceeded,
	}
}

// IsTransport reports whether err was caused by an unreachable collaborator.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}
