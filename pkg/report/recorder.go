package report

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
)

// Recorder follows a run through the scenario runner callbacks and keeps
// report.json current.
type Recorder struct {
	writer  *Writer
	current *ScenarioWriter
}

// NewRecorder writes the report skeleton for plan into dir and returns a
// recorder for it.
func NewRecorder(dir string, plan *scenario.Plan, cfg BuilderConfig, log *zap.Logger) (*Recorder, error) {
	rep := BuildSkeleton(plan, cfg)
	if err := WriteSkeleton(dir, rep); err != nil {
		return nil, fmt.Errorf("report skeleton: %w", err)
	}
	return &Recorder{writer: NewWriter(dir, rep, log)}, nil
}

// Writer returns the underlying report writer.
func (r *Recorder) Writer() *Writer { return r.writer }

// Start marks the run as started.
func (r *Recorder) Start() { r.writer.Start() }

// ScenarioStarted matches the runner's OnScenarioStart callback.
func (r *Recorder) ScenarioStarted(idx, _ int, _ *scenario.Scenario) {
	r.current = r.writer.Scenario(idx)
	r.current.Start()
}

// StepStarted matches the runner's OnStepStart callback.
func (r *Recorder) StepStarted(idx int, _ *scenario.Step) {
	if r.current != nil {
		r.current.StepStart(idx)
	}
}

// StepCompleted matches the runner's OnStepComplete callback.
func (r *Recorder) StepCompleted(idx int, out *core.StepOutcome) {
	if r.current != nil {
		r.current.StepEnd(idx, out)
	}
}

// ScenarioEnded matches the runner's OnScenarioEnd callback.
func (r *Recorder) ScenarioEnded(idx int, res *core.ScenarioResult) {
	sw := r.current
	if sw == nil || sw.idx != idx {
		sw = r.writer.Scenario(idx)
	}
	sw.End(res)
	r.current = nil
}

// Finish closes the run. Scenarios the runner skipped without starting are
// filled in from res.
func (r *Recorder) Finish(res *core.RunResult) error {
	if res != nil {
		for i := range res.Scenarios {
			sc := &res.Scenarios[i]
			if sc.StartTime.IsZero() {
				r.writer.Scenario(i).End(sc)
			}
		}
	}
	r.writer.End()
	return GenerateHTML(r.writer.Dir(), HTMLConfig{})
}
