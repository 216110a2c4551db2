package core

import (
	"fmt"
	"time"
)

// Failure reasons shared by the evaluator and the step runner.
const (
	ReasonUnresolvedTarget   = "unresolved target"
	ReasonNoVisibleChange    = "no visible change"
	ReasonWrongElement       = "wrong element"
	ReasonExpectedNotReached = "expected state not observed"
	ReasonActionFailed       = "action failed"
	ReasonPerceptionFailed   = "perception failed"
	ReasonCancelled          = "cancelled"
)

// ResolvedTarget is where an action will land. It is produced by exactly one
// resolver per attempt and consumed once by the action executor.
type ResolvedTarget struct {
	Source     TargetSource `json:"source"`
	Query      string       `json:"query"`
	Point      Point        `json:"point"`
	Box        *Bounds      `json:"box,omitempty"`
	Confidence float64      `json:"confidence"`
	Element    *Element     `json:"element,omitempty"`
	Class      string       `json:"class,omitempty"` // detector class for vision matches
}

func (t *ResolvedTarget) String() string {
	if t == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s(%d,%d) q=%q conf=%.2f", t.Source, t.Point.X, t.Point.Y, t.Query, t.Confidence)
}

// ActionResult is the append-only record of one action sent to the device.
type ActionResult struct {
	Attempt   int             `json:"attempt"`
	Action    string          `json:"action"`
	Performed bool            `json:"performed"`
	Target    *ResolvedTarget `json:"target,omitempty"`
	Point     *Point          `json:"point,omitempty"`
	Recovery  bool            `json:"recovery,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Response  string          `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
	Err       error           `json:"-"`
}

// Verdict is the tagged result of evaluating one attempt.
type Verdict struct {
	Kind         VerdictKind      `json:"kind"`
	Reason       string           `json:"reason,omitempty"`
	Interruption InterruptionKind `json:"interruption,omitempty"`
	Judge        string           `json:"judge,omitempty"`
	Confidence   float64          `json:"confidence,omitempty"`
}

// Success builds a success verdict.
func Success(judge, reason string) Verdict {
	return Verdict{Kind: VerdictSuccess, Judge: judge, Reason: reason}
}

// Failure builds a failure verdict.
func Failure(reason string) Verdict {
	return Verdict{Kind: VerdictFailure, Reason: reason}
}

// Interrupted builds an interruption verdict.
func Interrupted(kind InterruptionKind, reason string) Verdict {
	return Verdict{Kind: VerdictInterruption, Interruption: kind, Reason: reason}
}

func (v Verdict) IsSuccess() bool      { return v.Kind == VerdictSuccess }
func (v Verdict) IsInterruption() bool { return v.Kind == VerdictInterruption }

func (v Verdict) String() string {
	switch v.Kind {
	case VerdictSuccess:
		return "Success"
	case VerdictInterruption:
		return fmt.Sprintf("Interruption(%s)", v.Interruption)
	default:
		return fmt.Sprintf("Failure(%s)", v.Reason)
	}
}

// StepOutcome is the terminal record of one step. It is created once when the
// step runner reaches Finished and never mutated afterwards.
type StepOutcome struct {
	StepID      string         `json:"stepId"`
	Description string         `json:"description,omitempty"`
	Status      StepStatus     `json:"status"`
	Verdict     Verdict        `json:"verdict"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"maxAttempts"`
	Actions     []ActionResult `json:"actions"`
	Reasons     []string       `json:"reasons,omitempty"` // per-attempt verdict reasons
	StartTime   time.Time      `json:"startTime"`
	Duration    time.Duration  `json:"duration"`
	Error       string         `json:"error,omitempty"`
	Err         error          `json:"-"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// ScenarioResult aggregates the outcomes of one scenario.
type ScenarioResult struct {
	ID        string        `json:"scenarioId"`
	Title     string        `json:"title"`
	Status    StepStatus    `json:"status"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
	Steps     []StepOutcome `json:"steps"`

	TotalSteps   int    `json:"totalSteps"`
	PassedSteps  int    `json:"passedSteps"`
	FailedSteps  int    `json:"failedSteps"`
	SkippedSteps int    `json:"skippedSteps"`
	Error        string `json:"error,omitempty"`
}

// ComputeSummary calculates step counts and the aggregate status.
func (s *ScenarioResult) ComputeSummary() {
	s.TotalSteps = len(s.Steps)
	s.PassedSteps, s.FailedSteps, s.SkippedSteps = 0, 0, 0
	for _, step := range s.Steps {
		switch step.Status {
		case StatusPassed:
			s.PassedSteps++
		case StatusFailed, StatusErrored:
			s.FailedSteps++
		case StatusSkipped:
			s.SkippedSteps++
		}
	}
	switch {
	case s.FailedSteps > 0 || s.Error != "":
		s.Status = StatusFailed
	case s.TotalSteps > 0 && s.PassedSteps == s.TotalSteps:
		s.Status = StatusPassed
	default:
		s.Status = StatusSkipped
	}
}

// RunResult captures a whole run of scenarios.
type RunResult struct {
	RunID        string           `json:"runId"`
	BusinessGoal string           `json:"businessGoal,omitempty"`
	StartTime    time.Time        `json:"startTime"`
	Duration     time.Duration    `json:"duration"`
	Scenarios    []ScenarioResult `json:"scenarios"`

	TotalScenarios  int `json:"totalScenarios"`
	PassedScenarios int `json:"passedScenarios"`
	FailedScenarios int `json:"failedScenarios"`
}

// ComputeSummary calculates scenario counts from the Scenarios slice
func (r *RunResult) ComputeSummary() {
	r.TotalScenarios = len(r.Scenarios)
	r.PassedScenarios, r.FailedScenarios = 0, 0
	for _, sc := range r.Scenarios {
		if sc.Status.IsSuccess() {
			r.PassedScenarios++
		} else {
			r.FailedScenarios++
		}
	}
}

// Success returns true if every scenario passed.
func (r *RunResult) Success() bool {
	return r.TotalScenarios > 0 && r.PassedScenarios == r.TotalScenarios
}
