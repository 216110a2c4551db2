package evaluator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/llm"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/vision"
)

// VisionJudge asks the detector whether a class named by the expected state
// appeared: detected after the action and not before it.
type VisionJudge struct {
	Detector  vision.Detector
	Threshold float64
	Log       *zap.Logger
}

func (VisionJudge) Name() string { return "vision" }

func (j VisionJudge) Judge(ctx context.Context, in *Input) Judgement {
	if j.Detector == nil || len(in.Post.Screenshot) == 0 {
		return inconclusive("no detector")
	}
	query := in.Step.ExpectedState
	if len(vision.TargetClasses(query)) == 0 {
		return inconclusive("no detector class for expected state")
	}
	threshold := j.Threshold
	if threshold <= 0 {
		threshold = vision.DefaultThreshold
	}

	after, err := j.Detector.Predict(ctx, vision.PredictRequest{Image: in.Post.Screenshot, Query: query, Threshold: threshold})
	if err != nil {
		j.logger().Warn("detector unavailable", zap.Error(err))
		return inconclusive("detector unavailable")
	}
	if !after.Accepted(threshold) {
		return inconclusive("detector found nothing")
	}
	if in.Pre != nil && len(in.Pre.Screenshot) > 0 {
		before, err := j.Detector.Predict(ctx, vision.PredictRequest{Image: in.Pre.Screenshot, Query: query, Threshold: threshold})
		if err != nil || before.Accepted(threshold) {
			return inconclusive("class was already visible")
		}
	}
	return Judgement{
		Outcome:    Pass,
		Reason:     fmt.Sprintf("detector found %s (%.2f)", after.Class, after.Confidence),
		Confidence: after.Confidence,
	}
}

func (j VisionJudge) logger() *zap.Logger {
	if j.Log == nil {
		return zap.NewNop()
	}
	return j.Log
}

// ModelJudge is the subset of llm.Provider used for judging.
type ModelJudge interface {
	Judge(ctx context.Context, req llm.JudgeRequest) (*llm.Judgement, error)
}

// LLMJudge asks the language model to judge the post screenshot.
type LLMJudge struct {
	Model ModelJudge
	Log   *zap.Logger
}

func (LLMJudge) Name() string { return "llm" }

func (j LLMJudge) Judge(ctx context.Context, in *Input) Judgement {
	if j.Model == nil || len(in.Post.Screenshot) == 0 {
		return inconclusive("no model")
	}
	res, err := j.Model.Judge(ctx, llm.JudgeRequest{
		BusinessGoal:    in.BusinessGoal,
		StepDescription: in.Step.Label(),
		ExpectedState:   in.Step.ExpectedState,
		LastAction:      lastAction(in),
		Screenshot:      in.Post.Screenshot,
	})
	if err != nil {
		if j.Log != nil {
			j.Log.Warn("model judgement unavailable", zap.Error(err))
		}
		return inconclusive("model unavailable")
	}

	if kind := res.Interruption(); kind != core.InterruptionNone && !res.OK {
		return Judgement{Outcome: Blocked, Reason: res.Reason, Interruption: kind, Confidence: res.Confidence}
	}
	if res.OK {
		return Judgement{Outcome: Pass, Reason: res.Reason, Confidence: res.Confidence}
	}
	return Judgement{Outcome: Fail, Reason: res.Reason, Confidence: res.Confidence}
}

func lastAction(in *Input) string {
	parts := []string{string(in.Step.Action)}
	if in.Step.Target != "" {
		parts = append(parts, fmt.Sprintf("target=%q", in.Step.Target))
	}
	if in.Step.Text != "" {
		parts = append(parts, fmt.Sprintf("text=%q", in.Step.Text))
	}
	if in.Step.Direction != "" {
		parts = append(parts, "direction="+in.Step.Direction)
	}
	return strings.Join(parts, " ")
}
