package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
)

// FileName is the name of the report inside a run directory.
const FileName = "report.json"

// BuilderConfig contains configuration for building the report skeleton.
type BuilderConfig struct {
	RunID         string
	SourceFiles   []string
	Device        Device
	RunnerVersion string
	DriverName    string
	Vision        string
	LLM           string
	MaxAttempts   int
}

// BuildSkeleton creates the initial report from a parsed plan.
// All scenarios and steps are set to "pending" status.
// This should be called after plan validation, before execution starts.
func BuildSkeleton(plan *scenario.Plan, cfg BuilderConfig) *Report {
	now := time.Now()

	rep := &Report{
		Version:      Version,
		RunID:        cfg.RunID,
		BusinessGoal: plan.BusinessGoal,
		SourceFiles:  cfg.SourceFiles,
		Status:       StatusPending,
		StartTime:    now,
		LastUpdated:  now,
		Device:       cfg.Device,
		Runner: RunnerInfo{
			Version:     cfg.RunnerVersion,
			Driver:      cfg.DriverName,
			Vision:      cfg.Vision,
			LLM:         cfg.LLM,
			MaxAttempts: cfg.MaxAttempts,
		},
		Summary: Summary{
			Total:   len(plan.Scenarios),
			Pending: len(plan.Scenarios),
		},
		Scenarios: make([]ScenarioEntry, len(plan.Scenarios)),
	}

	for i := range plan.Scenarios {
		sc := &plan.Scenarios[i]
		steps := buildSteps(sc.Steps)
		rep.Scenarios[i] = ScenarioEntry{
			Index:     i,
			ID:        sc.ID,
			Title:     sc.Title,
			AssetsDir: filepath.Join("assets", assetDirName(i, sc.ID)),
			Status:    StatusPending,
			Counts: StepSummary{
				Total:   len(steps),
				Pending: len(steps),
			},
			Steps: steps,
		}
	}
	return rep
}

func buildSteps(steps []scenario.Step) []Step {
	out := make([]Step, len(steps))
	for i := range steps {
		st := &steps[i]
		out[i] = Step{
			ID:            st.ID,
			Index:         i,
			Action:        string(st.Action),
			Label:         st.Label(),
			Target:        st.Target,
			ExpectedState: st.ExpectedState,
			Status:        StatusPending,
		}
	}
	return out
}

// assetDirName returns a file-system safe directory name for a scenario.
func assetDirName(idx int, id string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
	return fmt.Sprintf("scenario-%03d-%s", idx, safe)
}

// WriteSkeleton writes the initial report to disk.
func WriteSkeleton(outputDir string, rep *Report) error {
	if err := ensureDir(filepath.Join(outputDir, "assets")); err != nil {
		return fmt.Errorf("create assets dir: %w", err)
	}
	for _, sc := range rep.Scenarios {
		if err := ensureDir(filepath.Join(outputDir, sc.AssetsDir)); err != nil {
			return fmt.Errorf("create assets dir for %s: %w", sc.ID, err)
		}
	}
	if err := atomicWriteJSON(filepath.Join(outputDir, FileName), rep); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// ReadReport loads report.json from a run directory.
func ReadReport(dir string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parse %s: %w", FileName, err)
	}
	return &rep, nil
}

// stepError classifies the failure of a terminal outcome.
func stepError(out *core.StepOutcome) *Error {
	if out.Status == core.StatusPassed {
		return nil
	}
	msg := out.Error
	if msg == "" {
		msg = out.Verdict.Reason
	}
	if out.Status == core.StatusSkipped {
		return &Error{Type: "skipped", Message: msg}
	}

	e := &Error{Message: msg}
	reason := out.Verdict.Reason
	switch {
	case out.Verdict.Interruption != core.InterruptionNone:
		e.Type = "interruption"
		e.Suggestion = "Dismiss the " + string(out.Verdict.Interruption) + " before the step or allowlist it in the step description"
	case strings.HasPrefix(reason, core.ReasonUnresolvedTarget):
		e.Type = "unresolved_target"
		e.Suggestion = "Add alternatives to the step target or enable the vision service"
	case strings.HasPrefix(reason, core.ReasonNoVisibleChange):
		e.Type = "no_visible_change"
		e.Suggestion = "Check that the target reacts to taps or increase runner.settle_delay"
	case strings.HasPrefix(reason, core.ReasonWrongElement):
		e.Type = "wrong_element"
		e.Suggestion = "Make the step target more specific or add an id or content-desc alternative"
	case strings.HasPrefix(reason, core.ReasonExpectedNotReached):
		e.Type = "expected_not_reached"
		e.Suggestion = "Make the expected state describe what appears on screen"
	case strings.HasPrefix(reason, core.ReasonActionFailed):
		e.Type = "action_failed"
	case strings.HasPrefix(reason, core.ReasonPerceptionFailed):
		e.Type = "perception_failed"
		e.Suggestion = "Check the Appium server and device connection"
	case strings.HasPrefix(reason, core.ReasonCancelled):
		e.Type = "cancelled"
	case out.Status == core.StatusErrored:
		e.Type = "invalid_step"
	default:
		e.Type = "unknown"
	}
	return e
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// atomicWriteJSON writes v to a temporary file and renames it over path so
// readers never see a partial report.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
