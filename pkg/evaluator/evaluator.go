// Package evaluator decides whether an attempt reached the step's expected
// state. Interruptions are checked first; then a chain of judges is asked in
// order and the first conclusive judgement wins.
package evaluator

import (
	"context"

	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/interrupt"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/vision"
)

// Outcome is a judge's conclusion.
type Outcome int

const (
	Inconclusive Outcome = iota // no opinion, ask the next judge
	Pass                        // expected state observed
	Fail                        // expected state contradicted
	Blocked                     // an interruption is in the way
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	case Blocked:
		return "blocked"
	default:
		return "inconclusive"
	}
}

// Input is what a judge sees. Pre is nil when there is no baseline, as for
// the pre-check before the first action.
type Input struct {
	Step         *scenario.Step
	Pre          *core.Snapshot
	Post         *core.Snapshot
	BusinessGoal string
}

// Changed reports whether the visible UI differs between Pre and Post.
// Without a baseline the screen counts as changed.
func (in *Input) Changed() bool {
	if in.Pre == nil || in.Pre.Tree == nil {
		return true
	}
	if in.Post == nil || in.Post.Tree == nil {
		return false
	}
	return in.Pre.Tree.Signature() != in.Post.Tree.Signature()
}

// Judgement is one judge's answer.
type Judgement struct {
	Outcome      Outcome
	Reason       string
	Confidence   float64
	Interruption core.InterruptionKind
}

func inconclusive(reason string) Judgement {
	return Judgement{Outcome: Inconclusive, Reason: reason}
}

// Judge is one strategy for checking an expected state. Judges must not keep
// state between calls.
type Judge interface {
	Name() string
	Judge(ctx context.Context, in *Input) Judgement
}

// Options configures an Evaluator.
type Options struct {
	BusinessGoal string
}

// Evaluator runs interruption detection and the judge chain.
type Evaluator struct {
	judges []Judge
	opts   Options
	log    *zap.Logger
}

// New creates an evaluator asking judges in order.
func New(judges []Judge, opts Options, log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{judges: judges, opts: opts, log: log.Named("evaluator")}
}

// Judges returns the names of the configured judges, in order.
func (e *Evaluator) Judges() []string {
	names := make([]string, len(e.judges))
	for i, j := range e.judges {
		names[i] = j.Name()
	}
	return names
}

// DefaultJudges returns the standard chain: structural, script, then the
// detector and the model when they are configured.
func DefaultJudges(detector vision.Detector, threshold float64, model ModelJudge, log *zap.Logger) []Judge {
	judges := []Judge{StructuralJudge{}, ScriptJudge{Log: log}}
	if detector != nil {
		judges = append(judges, VisionJudge{Detector: detector, Threshold: threshold, Log: log})
	}
	if model != nil {
		judges = append(judges, LLMJudge{Model: model, Log: log})
	}
	return judges
}

// Evaluate compares the snapshots before and after an action. An
// interruption on post wins over any expected-state evidence.
func (e *Evaluator) Evaluate(ctx context.Context, step *scenario.Step, pre, post *core.Snapshot) core.Verdict {
	if post == nil || post.Tree == nil {
		return core.Failure(core.ReasonPerceptionFailed)
	}
	if d := interrupt.Detect(post, step); d.Found() {
		e.log.Info("interruption detected", zap.String("step", step.ID),
			zap.String("kind", string(d.Kind)), zap.String("reason", d.Reason))
		return core.Interrupted(d.Kind, d.Reason)
	}

	in := &Input{Step: step, Pre: pre, Post: post, BusinessGoal: e.opts.BusinessGoal}
	for _, j := range e.judges {
		if ctx.Err() != nil {
			break
		}
		res := j.Judge(ctx, in)
		e.log.Debug("judgement", zap.String("step", step.ID), zap.String("judge", j.Name()),
			zap.Stringer("outcome", res.Outcome), zap.String("reason", res.Reason))

		switch res.Outcome {
		case Pass:
			v := core.Success(j.Name(), res.Reason)
			v.Confidence = res.Confidence
			return v
		case Fail:
			reason := res.Reason
			if reason == "" {
				reason = in.unreachedReason()
			}
			if !in.Changed() {
				reason = core.ReasonNoVisibleChange
			}
			v := core.Failure(reason)
			v.Judge = j.Name()
			v.Confidence = res.Confidence
			return v
		case Blocked:
			v := core.Interrupted(res.Interruption, res.Reason)
			v.Judge = j.Name()
			return v
		}
	}

	if !in.Changed() {
		return core.Failure(core.ReasonNoVisibleChange)
	}
	return core.Failure(in.unreachedReason())
}

// unreachedReason names the cause when the screen changed but the expected
// state is missing. After acting on a resolved target the change came from
// some other element.
func (in *Input) unreachedReason() string {
	if in.Pre != nil && in.Step.NeedsTarget() {
		return core.ReasonWrongElement
	}
	return core.ReasonExpectedNotReached
}

// Satisfied reports whether snap already shows the expected state of step,
// judged without a baseline.
func (e *Evaluator) Satisfied(ctx context.Context, step *scenario.Step, snap *core.Snapshot) bool {
	return e.Evaluate(ctx, step, nil, snap).IsSuccess()
}
