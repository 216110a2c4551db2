// Package report provides JSON-based run reporting with live updates.
//
// Layout of a run directory:
//   - report.json: the run report, rewritten atomically after every step
//   - assets/<scenario-id>/: screenshots and hierarchies captured for steps
//   - report.html: a static view generated when the run ends
//
// Consumers may poll report.json and use UpdateSeq to detect changes.
package report

import (
	"time"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// StatusOf maps a step status to its report status. Errored steps are
// reported as failed.
func StatusOf(s core.StepStatus) Status {
	switch s {
	case core.StatusRunning:
		return StatusRunning
	case core.StatusPassed:
		return StatusPassed
	case core.StatusFailed, core.StatusErrored:
		return StatusFailed
	case core.StatusSkipped:
		return StatusSkipped
	default:
		return StatusPending
	}
}

// ============================================================================
// RUN (report.json)
// ============================================================================

// Report is the whole run report.
type Report struct {
	Version      string          `json:"version"`
	RunID        string          `json:"runId"`
	BusinessGoal string          `json:"businessGoal,omitempty"`
	SourceFiles  []string        `json:"sourceFiles,omitempty"`
	UpdateSeq    uint64          `json:"updateSeq"`
	Status       Status          `json:"status"`
	StartTime    time.Time       `json:"startTime"`
	EndTime      *time.Time      `json:"endTime,omitempty"`
	LastUpdated  time.Time       `json:"lastUpdated"`
	Device       Device          `json:"device"`
	Runner       RunnerInfo      `json:"runner"`
	Summary      Summary         `json:"summary"`
	Scenarios    []ScenarioEntry `json:"scenarios"`
}

// Device describes the automation session the run used.
type Device struct {
	Name       string `json:"name,omitempty"`
	Platform   string `json:"platform"`
	AppPackage string `json:"appPackage,omitempty"`
	ServerURL  string `json:"serverUrl,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// RunnerInfo records the runner build and the perception services in use.
type RunnerInfo struct {
	Version     string `json:"version"`
	Driver      string `json:"driver"` // appium, mock
	Vision      string `json:"vision,omitempty"`
	LLM         string `json:"llm,omitempty"`
	MaxAttempts int    `json:"maxAttempts"`
}

// Summary contains aggregated scenario counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// ScenarioEntry is the report of one scenario.
type ScenarioEntry struct {
	Index     int         `json:"index"`
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	AssetsDir string      `json:"assetsDir"`
	Status    Status      `json:"status"`
	UpdateSeq uint64      `json:"updateSeq"`
	StartTime *time.Time  `json:"startTime,omitempty"`
	EndTime   *time.Time  `json:"endTime,omitempty"`
	Duration  *int64      `json:"duration,omitempty"` // milliseconds
	Counts    StepSummary `json:"counts"`
	Steps     []Step      `json:"steps"`
	Error     *string     `json:"error,omitempty"`
}

// StepSummary contains step counts for a scenario.
type StepSummary struct {
	Total   int  `json:"total"`
	Passed  int  `json:"passed"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
	Running int  `json:"running"`
	Pending int  `json:"pending"`
	Current *int `json:"current,omitempty"` // Currently running step index
}

// Step is the report of one step: its definition and terminal outcome.
type Step struct {
	ID            string              `json:"id"`
	Index         int                 `json:"index"`
	Action        string              `json:"action"`
	Label         string              `json:"label,omitempty"`
	Target        string              `json:"target,omitempty"`
	ExpectedState string              `json:"expectedState"`
	Status        Status              `json:"status"`
	StartTime     *time.Time          `json:"startTime,omitempty"`
	EndTime       *time.Time          `json:"endTime,omitempty"`
	Duration      *int64              `json:"duration,omitempty"` // milliseconds
	Attempts      int                 `json:"attempts"`
	MaxAttempts   int                 `json:"maxAttempts,omitempty"`
	Verdict       *core.Verdict       `json:"verdict,omitempty"`
	Reasons       []string            `json:"reasons,omitempty"`
	Actions       []core.ActionResult `json:"actions,omitempty"`
	Error         *Error              `json:"error,omitempty"`
	Artifacts     []Artifact          `json:"artifacts,omitempty"`
}

// Error contains error details.
type Error struct {
	Type       string `json:"type"` // unresolved_target, no_visible_change, expected_not_reached, interruption, action_failed, perception_failed, cancelled, invalid_step, skipped
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Artifact is a file captured for a step, relative to the run directory.
type Artifact struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Path        string `json:"path"`
}
