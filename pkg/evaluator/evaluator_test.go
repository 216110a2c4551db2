package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/driver/mock"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/llm"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/uitree"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/vision"
)

func snap(screen string, shot string) *core.Snapshot {
	return &core.Snapshot{
		Tree:       uitree.MustParse(screen),
		Screenshot: []byte(shot),
		Width:      1080,
		Height:     2340,
		CapturedAt: time.Unix(0, 0),
	}
}

func step(expected string) *scenario.Step {
	return &scenario.Step{
		ID:            "s1",
		Description:   "Tap the like button",
		Action:        scenario.ActionTap,
		Target:        "Like button",
		ExpectedState: expected,
	}
}

func structuralOnly() *Evaluator {
	return New(DefaultJudges(nil, 0, nil, nil), Options{}, nil)
}

func TestEvaluate_Structural(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		pre      string
		post     string
		want     core.VerdictKind
		reason   string
	}{
		{"count incremented", "like count incremented", mock.FeedScreen(1204), mock.LikedFeedScreen(1205), core.VerdictSuccess, "like count 1204 -> 1205"},
		{"count went the wrong way", "like count incremented", mock.FeedScreen(1204), mock.FeedScreen(1203), core.VerdictFailure, "like count 1204 -> 1203"},
		{"count decreased", "likes count decreases", mock.LikedFeedScreen(1205), mock.FeedScreen(1204), core.VerdictSuccess, "likes count 1205 -> 1204"},
		{"nothing changed", "like count incremented", mock.FeedScreen(1204), mock.FeedScreen(1204), core.VerdictFailure, core.ReasonNoVisibleChange},
		{"changed elsewhere", "like count incremented", mock.FeedScreen(1204), mock.CommentSheetScreen(1204), core.VerdictFailure, core.ReasonWrongElement},
		{"toggle", "like button is highlighted", mock.FeedScreen(1204), mock.LikedFeedScreen(1204), core.VerdictSuccess, `"Like" turned on`},
		{"toggle off", "video is unliked", mock.LikedFeedScreen(1205), mock.FeedScreen(1205), core.VerdictSuccess, `"Like" turned off`},
		{"quoted text", `"87 comments" header is shown`, mock.FeedScreen(1), mock.CommentSheetScreen(1), core.VerdictSuccess, `"87 comments" is shown`},
		{"keywords on new elements", "comment panel is open", mock.FeedScreen(1), mock.CommentSheetScreen(1), core.VerdictSuccess, "new elements mention comment"},
		{"screen change", "screen changes after the tap", mock.FeedScreen(1), mock.CommentSheetScreen(1), core.VerdictSuccess, "screen changed"},
	}
	ev := structuralOnly()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ev.Evaluate(context.Background(), step(tt.expected), snap(tt.pre, ""), snap(tt.post, ""))
			assert.Equal(t, tt.want, v.Kind, v.String())
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestEvaluate_WrongElement(t *testing.T) {
	ev := structuralOnly()
	ctx := context.Background()
	pre, post := snap(mock.FeedScreen(1204), ""), snap(mock.CommentSheetScreen(1204), "")

	// The like tap opened the comment sheet instead.
	v := ev.Evaluate(ctx, step("like count incremented"), pre, post)
	assert.Equal(t, core.Failure(core.ReasonWrongElement), v)

	// Without an acted-on target the screen change is not blamed on one.
	swipe := &scenario.Step{ID: "s2", Action: scenario.ActionSwipe, Direction: "up", ExpectedState: "like count incremented"}
	v = ev.Evaluate(ctx, swipe, pre, post)
	assert.Equal(t, core.Failure(core.ReasonExpectedNotReached), v)

	// Unchanged screen still reads as no visible change.
	v = ev.Evaluate(ctx, step("like count incremented"), pre, snap(mock.FeedScreen(1204), ""))
	assert.Equal(t, core.Failure(core.ReasonNoVisibleChange), v)
}

func TestEvaluate_InterruptionWins(t *testing.T) {
	// The expected like is visible under the prompt.
	v := structuralOnly().Evaluate(context.Background(), step("like count incremented"),
		snap(mock.FeedScreen(1204), ""), snap(mock.PermissionScreen(1205), ""))
	assert.Equal(t, core.VerdictInterruption, v.Kind)
	assert.Equal(t, core.InterruptionPermission, v.Interruption)
}

func TestEvaluate_NoPostSnapshot(t *testing.T) {
	v := structuralOnly().Evaluate(context.Background(), step("x"), nil, nil)
	assert.Equal(t, core.Failure(core.ReasonPerceptionFailed), v)
}

func TestEvaluate_Idempotent(t *testing.T) {
	ev := New(DefaultJudges(nil, 0, &fakeModel{res: &llm.Judgement{OK: false, Reason: "not yet"}}, nil), Options{}, nil)
	pre, post := snap(mock.FeedScreen(1204), "pre"), snap(mock.CommentSheetScreen(1204), "post")
	st := step("like count incremented")

	first := ev.Evaluate(context.Background(), st, pre, post)
	for i := 0; i < 3; i++ {
		if diff := cmp.Diff(first, ev.Evaluate(context.Background(), st, pre, post)); diff != "" {
			t.Fatalf("verdict changed on repeat (-first +again):\n%s", diff)
		}
	}
	assert.Equal(t, "llm", first.Judge)
	assert.Equal(t, "not yet", first.Reason)
}

func TestScriptJudge(t *testing.T) {
	ev := New([]Judge{ScriptJudge{}}, Options{}, nil)
	pre, post := snap(mock.FeedScreen(1204), ""), snap(mock.LikedFeedScreen(1205), "")

	tests := []struct {
		script string
		want   core.VerdictKind
		reason string
	}{
		{"count('like') === preCount('like') + 1 && selected('like_button')", core.VerdictSuccess, "script returned true"},
		{"contains('For You') && changed", core.VerdictSuccess, "script returned true"},
		{"texts.length > preTexts.length", core.VerdictFailure, "script returned false"},
		{"step.id === 's1'", core.VerdictSuccess, "script returned true"},
		{"count('nothing') === null", core.VerdictSuccess, "script returned true"},
		{"this is not javascript", core.VerdictFailure, core.ReasonWrongElement},
	}
	for _, tt := range tests {
		st := step("the like registers")
		st.ExpectScript = tt.script
		v := ev.Evaluate(context.Background(), st, pre, post)
		assert.Equal(t, tt.want, v.Kind, tt.script)
		assert.Equal(t, tt.reason, v.Reason, tt.script)
	}
}

type fakeDetector struct {
	calls int
	seen  map[string]bool // screenshots on which the class is found
}

func (f *fakeDetector) Predict(_ context.Context, req vision.PredictRequest) (*vision.Prediction, error) {
	f.calls++
	if f.seen[string(req.Image)] {
		return &vision.Prediction{OK: true, Match: true, Class: "share", Confidence: 0.95}, nil
	}
	return &vision.Prediction{OK: true, Match: false, Reason: "no match"}, nil
}

func TestVisionJudge(t *testing.T) {
	st := step("share sheet is visible")
	// The tree is unchanged, so only the detector can tell.
	pre, post := snap(mock.FeedScreen(1), "pre"), snap(mock.FeedScreen(1), "post")

	det := &fakeDetector{seen: map[string]bool{"post": true}}
	v := New([]Judge{VisionJudge{Detector: det}}, Options{}, nil).Evaluate(context.Background(), st, pre, post)
	assert.Equal(t, core.VerdictSuccess, v.Kind)
	assert.Equal(t, "vision", v.Judge)
	assert.Equal(t, 2, det.calls)

	det = &fakeDetector{seen: map[string]bool{"pre": true, "post": true}}
	v = New([]Judge{VisionJudge{Detector: det}}, Options{}, nil).Evaluate(context.Background(), st, pre, post)
	assert.Equal(t, core.Failure(core.ReasonNoVisibleChange), v)

	det = &fakeDetector{}
	v = New([]Judge{VisionJudge{Detector: det}}, Options{}, nil).Evaluate(context.Background(), step("zzz qqq"), pre, post)
	assert.Equal(t, 0, det.calls, "no class maps, detector not called")
	assert.False(t, v.IsSuccess())
}

type fakeModel struct {
	res  *llm.Judgement
	err  error
	reqs []llm.JudgeRequest
}

func (f *fakeModel) Judge(_ context.Context, req llm.JudgeRequest) (*llm.Judgement, error) {
	f.reqs = append(f.reqs, req)
	return f.res, f.err
}

func TestLLMJudge(t *testing.T) {
	pre, post := snap(mock.FeedScreen(1), "pre"), snap(mock.CommentSheetScreen(1), "post")
	st := step("the video is bookmarked")

	t.Run("pass", func(t *testing.T) {
		m := &fakeModel{res: &llm.Judgement{OK: true, Reason: "bookmark filled", Confidence: 0.8}}
		v := New([]Judge{LLMJudge{Model: m}}, Options{BusinessGoal: "engage"}, nil).Evaluate(context.Background(), st, pre, post)
		assert.Equal(t, core.VerdictSuccess, v.Kind)
		assert.Equal(t, 0.8, v.Confidence)
		require.Len(t, m.reqs, 1)
		assert.Equal(t, "engage", m.reqs[0].BusinessGoal)
		assert.Equal(t, `tap target="Like button"`, m.reqs[0].LastAction)
		assert.Equal(t, []byte("post"), m.reqs[0].Screenshot)
	})

	t.Run("gate", func(t *testing.T) {
		m := &fakeModel{res: &llm.Judgement{OK: false, Recovery: llm.RecoveryRequireAuth, GateType: llm.GateAuth, Reason: "login sheet"}}
		v := New([]Judge{LLMJudge{Model: m}}, Options{}, nil).Evaluate(context.Background(), st, pre, post)
		assert.Equal(t, core.VerdictInterruption, v.Kind)
		assert.Equal(t, core.InterruptionLoginWall, v.Interruption)
	})

	t.Run("fail on unchanged screen", func(t *testing.T) {
		m := &fakeModel{res: &llm.Judgement{OK: false, Reason: "nothing happened"}}
		same := snap(mock.FeedScreen(1), "post")
		v := New([]Judge{LLMJudge{Model: m}}, Options{}, nil).Evaluate(context.Background(), st, pre, same)
		assert.Equal(t, core.ReasonNoVisibleChange, v.Reason)
	})

	t.Run("unavailable", func(t *testing.T) {
		m := &fakeModel{err: errors.New("503")}
		v := New([]Judge{LLMJudge{Model: m}}, Options{}, nil).Evaluate(context.Background(), st, pre, post)
		assert.Equal(t, core.Failure(core.ReasonWrongElement), v)
	})
}

func TestSatisfied(t *testing.T) {
	ev := structuralOnly()
	assert.True(t, ev.Satisfied(context.Background(), step(`"1205" likes are shown`), snap(mock.LikedFeedScreen(1205), "")))
	assert.False(t, ev.Satisfied(context.Background(), step("like count incremented"), snap(mock.FeedScreen(1204), "")))
}

func TestDefaultJudges(t *testing.T) {
	ev := New(DefaultJudges(&fakeDetector{}, 0.9, &fakeModel{}, nil), Options{}, nil)
	assert.Equal(t, []string{"structural", "script", "vision", "llm"}, ev.Judges())
}
