package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/jsengine"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
)

// Resetter is implemented by devices that can restart the app under test.
// Devices without it are relaunched with Launch.
type Resetter interface {
	Reset(ctx context.Context) error
}

// RunnerConfig configures the scenario runner.
type RunnerConfig struct {
	// RunID names the run; a random UUID is used when empty.
	RunID                 string
	MaxAttempts           int
	ResetBetweenScenarios bool
	ContinueOnFailure     bool // keep running a scenario after a failed step

	// Live progress callbacks
	OnScenarioStart func(idx, total int, sc *scenario.Scenario)
	OnStepStart     func(idx int, step *scenario.Step)
	OnStepComplete  func(idx int, out *core.StepOutcome)
	OnScenarioEnd   func(idx int, res *core.ScenarioResult)
}

// Runner executes the scenarios of a plan one after the other on a single
// device.
type Runner struct {
	steps  *StepRunner
	device core.Device
	config RunnerConfig
	log    *zap.Logger
	newID  func() string
	now    func() time.Time
}

// New creates a scenario runner.
func New(steps *StepRunner, device core.Device, cfg RunnerConfig, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	r := &Runner{
		steps:  steps,
		device: device,
		config: cfg,
		log:    log.Named("runner"),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	if cfg.RunID != "" {
		r.newID = func() string { return cfg.RunID }
	}
	return r
}

// Run executes every scenario of plan. Scenario and step failures are
// reported in the result; the error is non-nil only for an invalid plan.
func (r *Runner) Run(ctx context.Context, plan *scenario.Plan) (*core.RunResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	start := r.now()
	result := &core.RunResult{
		RunID:        r.newID(),
		BusinessGoal: plan.BusinessGoal,
		StartTime:    start,
	}
	log := r.log.With(zap.String("run_id", result.RunID))
	log.Info("run started", zap.Int("scenarios", len(plan.Scenarios)), zap.Int("steps", plan.StepCount()))

	for i := range plan.Scenarios {
		sc := &plan.Scenarios[i]
		if ctx.Err() != nil {
			result.Scenarios = append(result.Scenarios, skippedScenario(sc, "run cancelled"))
			continue
		}
		if i > 0 && r.config.ResetBetweenScenarios {
			if err := r.reset(ctx); err != nil {
				log.Warn("app reset failed", zap.String("scenario", sc.ID), zap.Error(err))
			}
		}
		if r.config.OnScenarioStart != nil {
			r.config.OnScenarioStart(i, len(plan.Scenarios), sc)
		}
		res := r.RunScenario(ctx, sc, result.RunID)
		if r.config.OnScenarioEnd != nil {
			r.config.OnScenarioEnd(i, &res)
		}
		result.Scenarios = append(result.Scenarios, res)
	}

	result.Duration = r.now().Sub(start)
	result.ComputeSummary()
	log.Info("run finished", zap.Int("passed", result.PassedScenarios), zap.Int("failed", result.FailedScenarios),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// RunScenario executes the steps of sc in order. After a failed step the
// remaining steps are skipped unless ContinueOnFailure is set.
func (r *Runner) RunScenario(ctx context.Context, sc *scenario.Scenario, runID string) core.ScenarioResult {
	start := r.now()
	res := core.ScenarioResult{ID: sc.ID, Title: sc.Title, StartTime: start}

	vars := jsengine.New(r.log)
	vars.ImportSystemEnv()
	vars.SetVariable("RUN_ID", runID)
	vars.SetVariable("SCENARIO_ID", sc.ID)

	stop := ""
	for i := range sc.Steps {
		step := expandStep(ctx, vars, &sc.Steps[i])
		if stop != "" {
			res.Steps = append(res.Steps, core.StepOutcome{
				StepID:      step.ID,
				Description: step.Label(),
				Status:      core.StatusSkipped,
				Error:       stop,
			})
			continue
		}

		if r.config.OnStepStart != nil {
			r.config.OnStepStart(i, step)
		}
		out, err := r.steps.RunStep(ctx, step, r.config.MaxAttempts)
		res.Steps = append(res.Steps, *out)
		if r.config.OnStepComplete != nil {
			r.config.OnStepComplete(i, out)
		}

		switch {
		case err != nil && ctx.Err() != nil:
			stop = "run cancelled"
			res.Error = stop
		case !out.Status.IsSuccess() && !r.config.ContinueOnFailure:
			stop = "previous step " + step.ID + " failed"
		}
	}

	res.Duration = r.now().Sub(start)
	res.ComputeSummary()
	return res
}

func (r *Runner) reset(ctx context.Context) error {
	if rs, ok := r.device.(Resetter); ok {
		return rs.Reset(ctx)
	}
	return r.device.Launch(ctx)
}

// expandStep returns a copy of step with ${expr} and $NAME references
// expanded in its free-text fields.
func expandStep(ctx context.Context, vars *jsengine.Engine, step *scenario.Step) *scenario.Step {
	s := *step
	s.Target = vars.ExpandVariables(ctx, s.Target)
	s.Text = vars.ExpandVariables(ctx, s.Text)
	s.ExpectedState = vars.ExpandVariables(ctx, s.ExpectedState)
	s.Query = vars.ExpandVariables(ctx, s.Query)
	if len(step.Alternatives) > 0 {
		s.Alternatives = make([]string, len(step.Alternatives))
		for i, alt := range step.Alternatives {
			s.Alternatives[i] = vars.ExpandVariables(ctx, alt)
		}
	}
	return &s
}

func skippedScenario(sc *scenario.Scenario, reason string) core.ScenarioResult {
	res := core.ScenarioResult{ID: sc.ID, Title: sc.Title, Error: reason}
	for _, st := range sc.Steps {
		res.Steps = append(res.Steps, core.StepOutcome{
			StepID:      st.ID,
			Description: st.Label(),
			Status:      core.StatusSkipped,
		})
	}
	res.ComputeSummary()
	return res
}
