package report

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
)

// ScenarioWriter records the progress of one scenario in the run report.
// Scenarios run one at a time, so a ScenarioWriter is used by a single
// goroutine; the shared report is guarded by the Writer.
type ScenarioWriter struct {
	idx       int
	assetsDir string
	index     *Writer
}

// Scenario returns the writer for scenario idx.
func (w *Writer) Scenario(idx int) *ScenarioWriter {
	w.mu.Lock()
	dir := ""
	if idx >= 0 && idx < len(w.report.Scenarios) {
		dir = w.report.Scenarios[idx].AssetsDir
	}
	w.mu.Unlock()
	return &ScenarioWriter{idx: idx, assetsDir: dir, index: w}
}

// Start marks the scenario as started.
func (w *ScenarioWriter) Start() {
	now := time.Now()
	w.index.UpdateScenario(w.idx, func(sc *ScenarioEntry) {
		sc.Status = StatusRunning
		sc.StartTime = &now
	})
}

// StepStart marks a step as started.
func (w *ScenarioWriter) StepStart(stepIdx int) {
	now := time.Now()
	w.index.UpdateScenario(w.idx, func(sc *ScenarioEntry) {
		if stepIdx < 0 || stepIdx >= len(sc.Steps) {
			return
		}
		st := &sc.Steps[stepIdx]
		st.Status = StatusRunning
		st.StartTime = &now
	})
}

// StepEnd records the terminal outcome of a step and saves its attachments.
func (w *ScenarioWriter) StepEnd(stepIdx int, out *core.StepOutcome) {
	artifacts := w.saveAttachments(out.Attachments)
	w.index.UpdateScenario(w.idx, func(sc *ScenarioEntry) {
		if stepIdx < 0 || stepIdx >= len(sc.Steps) {
			return
		}
		applyOutcome(&sc.Steps[stepIdx], out)
		sc.Steps[stepIdx].Artifacts = artifacts
	})
}

// End records the scenario result. Steps the runner skipped are marked
// skipped from the result.
func (w *ScenarioWriter) End(res *core.ScenarioResult) {
	now := time.Now()
	duration := res.Duration.Milliseconds()
	w.index.UpdateScenario(w.idx, func(sc *ScenarioEntry) {
		for i := range res.Steps {
			if i >= len(sc.Steps) {
				break
			}
			if sc.Steps[i].Status == StatusPending || res.Steps[i].Status == core.StatusSkipped {
				applyOutcome(&sc.Steps[i], &res.Steps[i])
			}
		}
		sc.Status = StatusOf(res.Status)
		sc.EndTime = &now
		sc.Duration = &duration
		if res.Error != "" {
			msg := res.Error
			sc.Error = &msg
		} else if sc.Status == StatusFailed {
			for _, st := range sc.Steps {
				if st.Error != nil && st.Status == StatusFailed {
					msg := st.Error.Message
					sc.Error = &msg
					break
				}
			}
		}
	})
}

func applyOutcome(st *Step, out *core.StepOutcome) {
	st.Status = StatusOf(out.Status)
	st.Attempts = out.Attempts
	st.MaxAttempts = out.MaxAttempts
	st.Reasons = out.Reasons
	st.Actions = out.Actions
	st.Error = stepError(out)
	if out.Status != core.StatusSkipped {
		v := out.Verdict
		st.Verdict = &v
	}
	if !out.StartTime.IsZero() {
		start := out.StartTime
		end := start.Add(out.Duration)
		d := out.Duration.Milliseconds()
		st.StartTime, st.EndTime, st.Duration = &start, &end, &d
	}
}

// saveAttachments writes attachment bodies into the scenario assets
// directory and returns their paths relative to the run directory.
func (w *ScenarioWriter) saveAttachments(atts []core.Attachment) []Artifact {
	var out []Artifact
	for _, a := range atts {
		if len(a.Body) == 0 {
			continue
		}
		rel := filepath.Join(w.assetsDir, filepath.Base(a.Path))
		if err := ensureDir(filepath.Join(w.index.outputDir, w.assetsDir)); err != nil {
			w.index.log.Warn("create assets dir", zap.String("dir", w.assetsDir), zap.Error(err))
			continue
		}
		if err := os.WriteFile(filepath.Join(w.index.outputDir, rel), a.Body, 0o644); err != nil {
			w.index.log.Warn("save attachment", zap.String("path", rel), zap.Error(err))
			continue
		}
		out = append(out, Artifact{Name: a.Name, ContentType: a.ContentType, Path: rel})
	}
	return out
}
