package core

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Expected state reached
	StatusFailed                    // Attempt limit exceeded
	StatusErrored                   // Step could not start (invalid definition, cancelled)
	StatusSkipped                   // Previous step failed
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in reports.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Expected state not reached
	ErrCategoryTimeout                         // Operation timed out
	ErrCategoryConnection                      // Device, vision or model service unreachable
	ErrCategoryConfig                          // Invalid configuration or step definition
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// TargetSource names the resolver that produced a target.
type TargetSource string

const (
	SourceStructural TargetSource = "structural"
	SourceVision     TargetSource = "vision"
	SourceVisionLLM  TargetSource = "vision-llm"
)

// VerdictKind is the tag of an evaluation verdict.
type VerdictKind string

const (
	VerdictSuccess      VerdictKind = "success"
	VerdictFailure      VerdictKind = "failure"
	VerdictInterruption VerdictKind = "interruption"
)

// InterruptionKind classifies an overlay that blocks the intended flow.
type InterruptionKind string

const (
	InterruptionNone       InterruptionKind = ""
	InterruptionDialog     InterruptionKind = "dialog"
	InterruptionPermission InterruptionKind = "permission-prompt"
	InterruptionAd         InterruptionKind = "ad"
	InterruptionLoginWall  InterruptionKind = "login-wall"
	InterruptionUnknown    InterruptionKind = "unknown"
)
