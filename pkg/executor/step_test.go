package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/action"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/driver/mock"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/evaluator"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/locator"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/perception"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/recovery"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/vision"
)

var (
	likeBox  = core.Bounds{X: 100, Y: 200, Width: 40, Height: 40}
	allowBox = core.BoundsFromCorners(120, 1200, 960, 1300)
)

// countingDetector answers every query with pred, or no match when pred is nil.
type countingDetector struct {
	mu    sync.Mutex
	calls int
	pred  *vision.Prediction
}

func (d *countingDetector) Predict(_ context.Context, _ vision.PredictRequest) (*vision.Prediction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.pred == nil {
		return &vision.Prediction{OK: true, Reason: "no match"}, nil
	}
	p := *d.pred
	return &p, nil
}

func (d *countingDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type harness struct {
	dev    *mock.Device
	det    *countingDetector
	runner *StepRunner
}

func newHarness(screen string, cfg StepConfig) *harness {
	dev := mock.New(mock.Config{}, screen)
	det := &countingDetector{}
	if cfg.FuzzyPoints == 0 {
		cfg.FuzzyPoints = 5
	}
	c := Collaborators{
		Perception: perception.New(dev, time.Second, nil),
		Locator:    locator.New(locator.DefaultThreshold),
		Vision:     vision.NewResolver(det, nil, vision.Options{DetectorTimeout: time.Second}, nil),
		Actions:    action.New(dev, action.Options{ActionTimeout: time.Second, WaitDuration: 10 * time.Millisecond}, nil),
		Evaluator:  evaluator.New(evaluator.DefaultJudges(nil, 0, nil, nil), evaluator.Options{}, nil),
		Recovery:   recovery.New(dev, nil, recovery.Options{ActionTimeout: time.Second}, nil),
	}
	return &harness{dev: dev, det: det, runner: NewStepRunner(c, cfg, nil)}
}

// likeTaps moves to next whenever the like button is tapped.
func likeTaps(next string) mock.Transition {
	return func(c mock.Call, _ string) string {
		if c.Op == "tap" && likeBox.Contains(core.Point{X: c.X, Y: c.Y}) {
			return next
		}
		return ""
	}
}

func likeStep() *scenario.Step {
	return &scenario.Step{
		ID:            "like",
		Description:   "Like the current video",
		Action:        scenario.ActionTap,
		Target:        "Like button",
		ExpectedState: "like count incremented",
	}
}

func TestRunStep_LikeButtonEndToEnd(t *testing.T) {
	var transitions []string
	h := newHarness(mock.FeedScreen(1204), StepConfig{
		OnTransition: func(_ string, _ int, from, to State) {
			transitions = append(transitions, string(from)+">"+string(to))
		},
	})
	h.dev.OnAction(likeTaps(mock.LikedFeedScreen(1205)))

	out, err := h.runner.RunStep(context.Background(), likeStep(), 3)
	require.NoError(t, err)

	assert.Equal(t, core.StatusPassed, out.Status)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, core.VerdictSuccess, out.Verdict.Kind)
	assert.Equal(t, "structural", out.Verdict.Judge)
	assert.Equal(t, []string{"like count 1204 -> 1205"}, out.Reasons)
	assert.Equal(t, []core.Point{{X: 120, Y: 220}}, h.dev.Taps())
	require.Len(t, out.Actions, 1)
	assert.Equal(t, core.SourceStructural, out.Actions[0].Target.Source)
	assert.Equal(t, 1, out.Actions[0].Attempt)
	assert.Zero(t, h.det.Calls(), "detector must not be called when the tree resolves the target")
	assert.NoError(t, out.Err)
	assert.Equal(t, []string{
		"perceiving>resolving", "resolving>executing", "executing>evaluating", "evaluating>finished",
	}, transitions)
}

func TestRunStep_VisionFallback(t *testing.T) {
	h := newHarness(mock.FeedScreen(1204), StepConfig{})
	// Screenshot pixels are a tenth of the screen size.
	h.det.pred = &vision.Prediction{OK: true, Match: true, X: 12, Y: 22, Class: "like", Confidence: 0.95}
	h.dev.OnAction(likeTaps(mock.LikedFeedScreen(1205)))

	st := likeStep()
	st.Target = "heart icon"
	out, err := h.runner.RunStep(context.Background(), st, 3)
	require.NoError(t, err)

	assert.Equal(t, core.StatusPassed, out.Status)
	assert.Equal(t, 1, h.det.Calls())
	require.Len(t, out.Actions, 1)
	assert.Equal(t, core.SourceVision, out.Actions[0].Target.Source)
	assert.Equal(t, []core.Point{{X: 120, Y: 220}}, h.dev.Taps())
}

// recordingLocator resolves the queries in hits and records every query.
type recordingLocator struct {
	queries []string
	hits    map[string]*core.ResolvedTarget
}

func (l *recordingLocator) Resolve(_ *core.Tree, q string) (*core.ResolvedTarget, bool) {
	l.queries = append(l.queries, q)
	t, ok := l.hits[q]
	return t, ok
}

type recordingVision struct {
	queries []string
	hits    map[string]*core.ResolvedTarget
}

func (v *recordingVision) Resolve(_ context.Context, _ *core.Snapshot, q string, _ float64) (*core.ResolvedTarget, bool) {
	v.queries = append(v.queries, q)
	t, ok := v.hits[q]
	return t, ok
}

func runnerWith(dev *mock.Device, loc Locator, vis VisionResolver, cfg StepConfig) *StepRunner {
	return NewStepRunner(Collaborators{
		Perception: perception.New(dev, time.Second, nil),
		Locator:    loc,
		Vision:     vis,
		Actions:    action.New(dev, action.Options{ActionTimeout: time.Second, WaitDuration: 10 * time.Millisecond}, nil),
		Evaluator:  evaluator.New(evaluator.DefaultJudges(nil, 0, nil, nil), evaluator.Options{}, nil),
		Recovery:   recovery.New(dev, nil, recovery.Options{ActionTimeout: time.Second}, nil),
	}, cfg, nil)
}

func TestRunStep_AlternativesInOrder(t *testing.T) {
	dev := mock.New(mock.Config{}, mock.FeedScreen(1204))
	dev.OnAction(likeTaps(mock.LikedFeedScreen(1205)))
	box := likeBox
	loc := &recordingLocator{hits: map[string]*core.ResolvedTarget{
		"like_button": {Source: core.SourceStructural, Query: "like_button", Point: box.Center(), Box: &box, Confidence: 1},
		"Heart":       {Source: core.SourceStructural, Query: "Heart", Point: core.Point{X: 900, Y: 900}, Confidence: 1},
	}}
	vis := &recordingVision{}

	st := likeStep()
	st.Target = "Bookmark"
	st.Alternatives = []string{"like_button", "Heart"}
	out, err := runnerWith(dev, loc, vis, StepConfig{}).RunStep(context.Background(), st, 3)
	require.NoError(t, err)

	assert.Equal(t, core.StatusPassed, out.Status)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, []string{"Bookmark", "like_button"}, loc.queries)
	assert.Equal(t, []string{"Bookmark"}, vis.queries, "vision is asked for the primary only")
	require.Len(t, out.Actions, 1)
	assert.Equal(t, "like_button", out.Actions[0].Target.Query)
	assert.Equal(t, []core.Point{{X: 120, Y: 220}}, dev.Taps())
}

func TestRunStep_FuzzyClicksIncludeCenterAfterVisionPoint(t *testing.T) {
	dev := mock.New(mock.Config{}, mock.FeedScreen(1204))
	box := likeBox
	vis := &recordingVision{hits: map[string]*core.ResolvedTarget{
		"heart icon": {Source: core.SourceVision, Query: "heart icon", Point: core.Point{X: 105, Y: 205}, Box: &box, Confidence: 0.9},
	}}

	st := likeStep()
	st.Target = "heart icon"
	out, err := runnerWith(dev, &recordingLocator{}, vis, StepConfig{FuzzyPoints: 5}).RunStep(context.Background(), st, 3)
	require.NoError(t, err)

	assert.Equal(t, core.StatusFailed, out.Status)
	pts := action.FuzzyPoints(likeBox, 5)
	assert.Equal(t, []core.Point{{X: 105, Y: 205}, pts[0], pts[1]}, dev.Taps())
	assert.Len(t, vis.queries, 1, "fuzzy retries reuse the resolved box")
}

func TestRunStep_UnresolvedTarget(t *testing.T) {
	h := newHarness(mock.FeedScreen(1204), StepConfig{})
	st := &scenario.Step{
		ID:            "bookmark",
		Action:        scenario.ActionTap,
		Target:        "Bookmark",
		ExpectedState: "video saved to favourites",
	}

	out, err := h.runner.RunStep(context.Background(), st, 3)
	require.NoError(t, err)

	assert.Equal(t, core.StatusFailed, out.Status)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, core.VerdictFailure, out.Verdict.Kind)
	assert.Equal(t, core.ReasonUnresolvedTarget, out.Verdict.Reason)
	assert.Equal(t, []string{core.ReasonUnresolvedTarget, core.ReasonUnresolvedTarget, core.ReasonUnresolvedTarget}, out.Reasons)
	assert.Empty(t, h.dev.Taps())
	assert.Empty(t, out.Actions)
	assert.ErrorIs(t, out.Err, core.ErrAttemptLimitExceeded)
	assert.ErrorIs(t, out.Err, core.ErrUnresolvedTarget)
}

func TestRunStep_TerminationBoundWithFuzzyClicks(t *testing.T) {
	for _, limit := range []int{1, 2, 3, 5} {
		h := newHarness(mock.FeedScreen(1204), StepConfig{})
		out, err := h.runner.RunStep(context.Background(), likeStep(), limit)
		require.NoError(t, err)

		assert.Equal(t, core.StatusFailed, out.Status)
		assert.Equal(t, limit, out.Attempts)
		assert.Len(t, out.Reasons, limit)
		assert.Equal(t, core.ReasonNoVisibleChange, out.Verdict.Reason)
		// Each retry taps the next point inside the like button.
		assert.Equal(t, action.FuzzyPoints(likeBox, 5)[:limit], h.dev.Taps())
		for i, a := range out.Actions {
			assert.Equal(t, i+1, a.Attempt)
		}
	}
}

func TestRunStep_PermissionPromptIsRecovered(t *testing.T) {
	h := newHarness(mock.FeedScreen(1204), StepConfig{})
	prompted := false
	h.dev.OnAction(func(c mock.Call, _ string) string {
		if c.Op != "tap" {
			return ""
		}
		p := core.Point{X: c.X, Y: c.Y}
		switch {
		case likeBox.Contains(p) && !prompted:
			prompted = true
			return mock.PermissionScreen(1205)
		case likeBox.Contains(p):
			return mock.LikedFeedScreen(1205)
		case allowBox.Contains(p):
			return mock.FeedScreen(1204)
		}
		return ""
	})

	out, err := h.runner.RunStep(context.Background(), likeStep(), 3)
	require.NoError(t, err)

	assert.Equal(t, core.StatusPassed, out.Status)
	assert.Equal(t, 2, out.Attempts)
	require.Len(t, out.Reasons, 2)
	assert.True(t, strings.HasPrefix(out.Reasons[0], "interruption(permission-prompt)"), out.Reasons[0])
	require.Len(t, out.Actions, 3)
	assert.False(t, out.Actions[0].Recovery)
	assert.True(t, out.Actions[1].Recovery)
	assert.Equal(t, 1, out.Actions[1].Attempt)
	assert.Equal(t, 2, out.Actions[2].Attempt)
	assert.Equal(t, []core.Point{{X: 120, Y: 220}, {X: 540, Y: 1250}, {X: 120, Y: 220}}, h.dev.Taps())
}

func TestRunStep_UnrecoveredInterruption(t *testing.T) {
	h := newHarness(mock.BlockingScreen(), StepConfig{})
	st := &scenario.Step{ID: "wait", Action: scenario.ActionWait, ExpectedState: "feed is visible"}

	out, err := h.runner.RunStep(context.Background(), st, 3)
	require.NoError(t, err)

	assert.Equal(t, core.StatusFailed, out.Status)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, core.InterruptionUnknown, out.Verdict.Interruption)
	assert.Equal(t, "unrecovered interruption: unknown", out.Verdict.Reason)
	assert.Len(t, h.dev.CallsOf("back"), 3)
	assert.ErrorIs(t, out.Err, core.ErrInterruption)
}

func TestRunStep_TransportErrorIsAttemptFailure(t *testing.T) {
	h := newHarness(mock.FeedScreen(1204), StepConfig{})
	h.dev.FailTransport("hierarchy")

	out, err := h.runner.RunStep(context.Background(), likeStep(), 3)
	require.NoError(t, err)

	assert.Equal(t, core.StatusFailed, out.Status)
	assert.Equal(t, 3, out.Attempts)
	for _, r := range out.Reasons {
		assert.True(t, strings.HasPrefix(r, core.ReasonPerceptionFailed), r)
	}
	assert.True(t, core.IsTransport(out.Err))
	assert.ErrorIs(t, out.Err, core.ErrAttemptLimitExceeded)
}

func TestRunStep_InvalidStep(t *testing.T) {
	h := newHarness(mock.FeedScreen(1204), StepConfig{})
	st := likeStep()
	st.ExpectedState = "  "

	out, err := h.runner.RunStep(context.Background(), st, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidStep)
	assert.Equal(t, core.StatusErrored, out.Status)
	assert.Zero(t, out.Attempts)
	assert.Empty(t, h.dev.Calls())
}

func TestRunStep_CancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(mock.FeedScreen(1204), StepConfig{RetryDelay: time.Second})
	h.dev.OnAction(func(c mock.Call, _ string) string {
		if c.Op == "tap" {
			cancel()
		}
		return ""
	})

	start := time.Now()
	out, err := h.runner.RunStep(ctx, likeStep(), 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.StatusErrored, out.Status)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, core.ReasonCancelled, out.Verdict.Reason)
	assert.Len(t, h.dev.Taps(), 1)
	assert.Less(t, time.Since(start), time.Second, "retry delay must end on cancellation")
}

func TestRunStep_PreCheck(t *testing.T) {
	h := newHarness(mock.FeedScreen(1204), StepConfig{PreCheck: true})
	st := likeStep()
	st.ExpectedState = `"For You" is shown`

	out, err := h.runner.RunStep(context.Background(), st, 3)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPassed, out.Status)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, "precheck", out.Verdict.Judge)
	assert.Empty(t, h.dev.Taps())
}

func TestRunStep_CaptureOnFailure(t *testing.T) {
	h := newHarness(mock.FeedScreen(1204), StepConfig{CaptureOnFailure: true})
	out, err := h.runner.RunStep(context.Background(), likeStep(), 2)
	require.NoError(t, err)

	require.Len(t, out.Attachments, 2)
	assert.Equal(t, "like-attempt2.png", out.Attachments[0].Path)
	assert.Equal(t, core.ContentTypePNG, out.Attachments[0].ContentType)
	assert.Equal(t, "like-attempt2.xml", out.Attachments[1].Path)
	assert.NotEmpty(t, out.Attachments[1].Body)
}

func TestRunStep_ActionFailure(t *testing.T) {
	h := newHarness(mock.FeedScreen(1204), StepConfig{})
	h.dev.Fail("tap", errors.New("element detached"))

	out, err := h.runner.RunStep(context.Background(), likeStep(), 2)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, out.Status)
	assert.Equal(t, 2, out.Attempts)
	require.Len(t, out.Actions, 2)
	assert.False(t, out.Actions[0].Performed)
	assert.True(t, strings.HasPrefix(out.Verdict.Reason, core.ReasonActionFailed), out.Verdict.Reason)
}

func TestState_IsTerminal(t *testing.T) {
	for _, s := range []State{StatePerceiving, StateResolving, StateExecuting, StateEvaluating, StateRecovering} {
		assert.False(t, s.IsTerminal(), s)
	}
	assert.True(t, StateFinished.IsTerminal())
}
