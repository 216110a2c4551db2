// Package executor runs steps through the perceive, resolve, execute,
// evaluate and recover loop, and scenarios as sequences of steps.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/action"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
)

// DefaultMaxAttempts is used when RunStep is given a non-positive limit.
const DefaultMaxAttempts = 3

// Perceiver captures the current UI state.
type Perceiver interface {
	Capture(ctx context.Context) (*core.Snapshot, error)
}

// Locator resolves a target description against the UI tree.
type Locator interface {
	Resolve(tree *core.Tree, query string) (*core.ResolvedTarget, bool)
}

// VisionResolver resolves a target description from the screenshot.
type VisionResolver interface {
	Resolve(ctx context.Context, snap *core.Snapshot, query string, threshold float64) (*core.ResolvedTarget, bool)
}

// ActionExecutor performs a step's action.
type ActionExecutor interface {
	Execute(ctx context.Context, step *scenario.Step, target *core.ResolvedTarget, point *core.Point) core.ActionResult
}

// Evaluator judges the outcome of an attempt.
type Evaluator interface {
	Evaluate(ctx context.Context, step *scenario.Step, pre, post *core.Snapshot) core.Verdict
	Satisfied(ctx context.Context, step *scenario.Step, snap *core.Snapshot) bool
}

// Recoverer clears interruptions.
type Recoverer interface {
	Recover(ctx context.Context, kind core.InterruptionKind, snap *core.Snapshot) core.ActionResult
}

// Collaborators are the components a StepRunner drives. Vision may be nil.
type Collaborators struct {
	Perception Perceiver
	Locator    Locator
	Vision     VisionResolver
	Actions    ActionExecutor
	Evaluator  Evaluator
	Recovery   Recoverer
}

// StepConfig tunes the state machine.
type StepConfig struct {
	RetryDelay       time.Duration // pause before the next attempt
	SettleDelay      time.Duration // pause between an action and the post snapshot
	FuzzyPoints      int           // tap points tried inside a box, center included
	VisionThreshold  float64
	PreCheck         bool // finish without acting when the expected state already holds
	CaptureOnFailure bool // attach the last snapshot to failed outcomes

	// OnTransition is called on every state change.
	OnTransition func(stepID string, attempt int, from, to State)
}

// StepRunner executes one step at a time. It owns the device for the
// duration of RunStep and keeps no state between calls.
type StepRunner struct {
	c   Collaborators
	cfg StepConfig
	log *zap.Logger
	now func() time.Time
}

// NewStepRunner creates a step runner.
func NewStepRunner(c Collaborators, cfg StepConfig, log *zap.Logger) *StepRunner {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.FuzzyPoints <= 0 {
		cfg.FuzzyPoints = action.MaxFuzzyPoints
	}
	return &StepRunner{c: c, cfg: cfg, log: log.Named("step"), now: time.Now}
}

// fuzzyClick is the remaining tap sequence inside a box that did not react.
type fuzzyClick struct {
	target *core.ResolvedTarget
	points []core.Point
	next   int
}

// stepRun is the mutable state of one RunStep call.
type stepRun struct {
	step    *scenario.Step
	max     int
	out     *core.StepOutcome
	state   State
	attempt int
	started int

	pre, post *core.Snapshot
	last      *core.Snapshot
	target    *core.ResolvedTarget
	point     *core.Point
	verdict   core.Verdict
	lastErr   error
	cancelErr error
	fuzzy     *fuzzyClick
}

// RunStep drives step until it succeeds or maxAttempts attempts are used.
// The returned error is non-nil only for an invalid step or a cancelled
// context; an exhausted step is a Failed outcome whose Err wraps
// core.ErrAttemptLimitExceeded.
func (r *StepRunner) RunStep(ctx context.Context, step *scenario.Step, maxAttempts int) (*core.StepOutcome, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	start := r.now()
	out := &core.StepOutcome{
		StepID:      step.ID,
		Description: step.Label(),
		Status:      core.StatusRunning,
		MaxAttempts: maxAttempts,
		StartTime:   start,
	}

	if err := step.Validate(); err != nil {
		out.Status = core.StatusErrored
		out.Verdict = core.Failure(err.Error())
		out.Err = err
		out.Error = err.Error()
		out.Duration = r.now().Sub(start)
		return out, err
	}

	log := r.log.With(zap.String("step", step.ID))
	s := &stepRun{step: step, max: maxAttempts, out: out, state: StatePerceiving, attempt: 1}
	for !s.state.IsTerminal() {
		next := r.advance(ctx, s)
		if next != s.state {
			log.Debug("transition", zap.Int("attempt", s.attempt),
				zap.String("from", string(s.state)), zap.String("to", string(next)))
			if r.cfg.OnTransition != nil {
				r.cfg.OnTransition(step.ID, s.attempt, s.state, next)
			}
		}
		s.state = next
	}

	r.finish(s)
	out.Duration = r.now().Sub(start)
	log.Info("step finished", zap.String("status", out.Status.String()), zap.Int("attempts", out.Attempts),
		zap.Stringer("verdict", out.Verdict), zap.Duration("duration", out.Duration))
	if s.cancelErr != nil {
		return out, s.cancelErr
	}
	return out, nil
}

func (r *StepRunner) advance(ctx context.Context, s *stepRun) State {
	switch s.state {
	case StatePerceiving:
		// Cancellation is only honoured between attempts.
		if err := ctx.Err(); err != nil {
			s.cancelErr = err
			return StateFinished
		}
		s.started = s.attempt
		s.pre, s.post, s.target, s.point = nil, nil, nil, nil

		snap, err := r.c.Perception.Capture(ctx)
		if err != nil {
			return r.fail(ctx, s, core.Failure(fmt.Sprintf("%s: %v", core.ReasonPerceptionFailed, err)), err)
		}
		s.pre, s.last = snap, snap

		if r.cfg.PreCheck && s.attempt == 1 && r.c.Evaluator.Satisfied(ctx, s.step, snap) {
			s.verdict = core.Success("precheck", "expected state already reached")
			s.out.Reasons = append(s.out.Reasons, s.verdict.Reason)
			return StateFinished
		}
		return StateResolving

	case StateResolving:
		if !s.step.NeedsTarget() {
			return StateExecuting
		}
		if f := s.fuzzy; f != nil && f.next < len(f.points) {
			p := f.points[f.next]
			f.next++
			s.target, s.point = f.target, &p
			r.log.Debug("fuzzy click", zap.String("step", s.step.ID), zap.Int("point", f.next), zap.Int("x", p.X), zap.Int("y", p.Y))
			return StateExecuting
		}
		s.fuzzy = nil

		t, ok := r.resolve(ctx, s.step, s.pre)
		if !ok {
			return r.fail(ctx, s, core.Failure(core.ReasonUnresolvedTarget), core.ErrUnresolvedTarget)
		}
		s.target = t
		return StateExecuting

	case StateExecuting:
		res := r.c.Actions.Execute(ctx, s.step, s.target, s.point)
		res.Attempt = s.attempt
		s.out.Actions = append(s.out.Actions, res)
		if !res.Performed {
			return r.fail(ctx, s, core.Failure(fmt.Sprintf("%s: %v", core.ReasonActionFailed, res.Err)), res.Err)
		}
		sleep(ctx, r.cfg.SettleDelay)
		return StateEvaluating

	case StateEvaluating:
		post, err := r.c.Perception.Capture(ctx)
		if err != nil {
			return r.fail(ctx, s, core.Failure(fmt.Sprintf("%s: %v", core.ReasonPerceptionFailed, err)), err)
		}
		s.post, s.last = post, post

		v := r.c.Evaluator.Evaluate(ctx, s.step, s.pre, post)
		switch v.Kind {
		case core.VerdictSuccess:
			s.verdict = v
			s.out.Reasons = append(s.out.Reasons, v.Reason)
			return StateFinished
		case core.VerdictInterruption:
			s.verdict = v
			s.fuzzy = nil
			s.out.Reasons = append(s.out.Reasons, fmt.Sprintf("interruption(%s): %s", v.Interruption, v.Reason))
			return StateRecovering
		}
		r.armFuzzy(s, v)
		return r.fail(ctx, s, v, nil)

	case StateRecovering:
		res := r.c.Recovery.Recover(ctx, s.verdict.Interruption, s.post)
		res.Attempt = s.attempt
		s.out.Actions = append(s.out.Actions, res)
		s.lastErr = fmt.Errorf("%w: %s", core.ErrInterruption, s.verdict.Interruption)
		return r.nextAttempt(ctx, s)
	}
	return StateFinished
}

// resolve tries each description in order, structurally first and then
// visually, and stops at the first match.
func (r *StepRunner) resolve(ctx context.Context, step *scenario.Step, snap *core.Snapshot) (*core.ResolvedTarget, bool) {
	for _, q := range step.Targets() {
		if t, ok := r.c.Locator.Resolve(snap.Tree, q); ok {
			r.log.Debug("resolved", zap.String("step", step.ID), zap.Stringer("target", t))
			return t, true
		}
		if r.c.Vision == nil {
			continue
		}
		if t, ok := r.c.Vision.Resolve(ctx, snap, step.LLMQuery(q), r.cfg.VisionThreshold); ok {
			r.log.Debug("resolved", zap.String("step", step.ID), zap.Stringer("target", t))
			return t, true
		}
	}
	r.log.Info("target unresolved", zap.String("step", step.ID), zap.Strings("queries", step.Targets()))
	return nil, false
}

// armFuzzy keeps the fuzzy sequence going after a tap into a box that
// produced no visible change, and drops it after any other failure.
func (r *StepRunner) armFuzzy(s *stepRun, v core.Verdict) {
	if v.Reason != core.ReasonNoVisibleChange || s.step.Action != scenario.ActionTap ||
		s.target == nil || s.target.Box == nil || r.cfg.FuzzyPoints < 2 {
		s.fuzzy = nil
		return
	}
	if s.fuzzy == nil {
		box := *s.target.Box
		f := &fuzzyClick{target: s.target, points: action.FuzzyPoints(box, r.cfg.FuzzyPoints)}
		// Vision targets land on the detector or model point, so the center
		// has not been tried yet.
		if s.target.Point == box.Center() {
			f.next = 1
		}
		s.fuzzy = f
	}
}

func (r *StepRunner) fail(ctx context.Context, s *stepRun, v core.Verdict, err error) State {
	s.verdict = v
	if err != nil {
		s.lastErr = err
	}
	s.out.Reasons = append(s.out.Reasons, v.Reason)
	r.log.Info("attempt failed", zap.String("step", s.step.ID), zap.Int("attempt", s.attempt),
		zap.Int("max_attempts", s.max), zap.String("reason", v.Reason))
	return r.nextAttempt(ctx, s)
}

func (r *StepRunner) nextAttempt(ctx context.Context, s *stepRun) State {
	if s.attempt >= s.max {
		return StateFinished
	}
	s.attempt++
	sleep(ctx, r.cfg.RetryDelay)
	return StatePerceiving
}

func (r *StepRunner) finish(s *stepRun) {
	out := s.out
	out.Attempts = s.started
	out.Verdict = s.verdict

	switch {
	case s.cancelErr != nil:
		out.Status = core.StatusErrored
		out.Verdict = core.Failure(core.ReasonCancelled)
		out.Err = s.cancelErr
	case s.verdict.IsSuccess():
		out.Status = core.StatusPassed
	default:
		out.Status = core.StatusFailed
		if s.verdict.IsInterruption() {
			v := core.Failure(fmt.Sprintf("unrecovered interruption: %s", s.verdict.Interruption))
			v.Interruption = s.verdict.Interruption
			out.Verdict = v
		}
		limit := core.NewAttemptLimitError(s.step.ID, out.Attempts, out.Verdict.Reason)
		if s.lastErr != nil {
			limit = limit.WithCause(fmt.Errorf("%w: %w", core.ErrAttemptLimitExceeded, s.lastErr))
		}
		out.Err = limit
	}
	if out.Err != nil {
		out.Error = out.Err.Error()
	}
	if out.Status == core.StatusFailed && r.cfg.CaptureOnFailure {
		out.Attachments = core.SnapshotAttachments(fmt.Sprintf("%s-attempt%d", s.step.ID, out.Attempts), s.last)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
