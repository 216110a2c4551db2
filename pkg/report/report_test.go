package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
)

func testPlan() *scenario.Plan {
	return &scenario.Plan{
		BusinessGoal: "Increase engagement",
		Scenarios: []scenario.Scenario{
			{
				ID:    "engage/like",
				Title: "Like a video",
				Steps: []scenario.Step{
					{ID: "like", Description: "Like the video", Action: scenario.ActionTap, Target: "Like button", ExpectedState: "like count incremented"},
					{ID: "save", Action: scenario.ActionTap, Target: "Bookmark", ExpectedState: "video saved"},
					{ID: "share", Action: scenario.ActionTap, Target: "Share", ExpectedState: "share sheet is open"},
				},
			},
			{
				ID:    "comment",
				Title: "Comment",
				Steps: []scenario.Step{
					{ID: "open", Action: scenario.ActionTap, Target: "Comment", ExpectedState: "comment sheet is open"},
				},
			},
		},
	}
}

func passed(id string) *core.StepOutcome {
	start := time.Now().Add(-time.Second)
	return &core.StepOutcome{
		StepID:      id,
		Status:      core.StatusPassed,
		Verdict:     core.Success("structural", "like count 1204 -> 1205"),
		Attempts:    1,
		MaxAttempts: 3,
		Reasons:     []string{"like count 1204 -> 1205"},
		Actions:     []core.ActionResult{{Attempt: 1, Action: "tap", Performed: true, Point: &core.Point{X: 120, Y: 220}}},
		StartTime:   start,
		Duration:    time.Second,
	}
}

func failed(id string) *core.StepOutcome {
	return &core.StepOutcome{
		StepID:   id,
		Status:   core.StatusFailed,
		Verdict:  core.Failure(core.ReasonUnresolvedTarget),
		Attempts: 3,
		Reasons:  []string{"unresolved target", "unresolved target", "unresolved target"},
		Error:    "attempt limit exceeded",
		Attachments: []core.Attachment{
			{Name: core.AttachmentScreenshot, ContentType: core.ContentTypePNG, Path: "save-attempt3.png", Body: []byte("png")},
			{Name: core.AttachmentHierarchy, ContentType: core.ContentTypeXML, Path: "save-attempt3.xml", Body: []byte("<hierarchy/>")},
			{Name: "empty", Path: "nothing.bin"},
		},
		StartTime: time.Now(),
	}
}

func TestBuildSkeleton(t *testing.T) {
	rep := BuildSkeleton(testPlan(), BuilderConfig{RunID: "run-1", DriverName: "mock", MaxAttempts: 3})

	assert.Equal(t, Version, rep.Version)
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, "Increase engagement", rep.BusinessGoal)
	assert.Equal(t, StatusPending, rep.Status)
	assert.Equal(t, Summary{Total: 2, Pending: 2}, rep.Summary)
	require.Len(t, rep.Scenarios, 2)

	sc := rep.Scenarios[0]
	assert.Equal(t, filepath.Join("assets", "scenario-000-engage_like"), sc.AssetsDir)
	assert.Equal(t, StepSummary{Total: 3, Pending: 3}, sc.Counts)
	assert.Equal(t, "Like the video", sc.Steps[0].Label)
	assert.Equal(t, "tap Bookmark", sc.Steps[1].Label)
	assert.Equal(t, "video saved", sc.Steps[1].ExpectedState)
	for _, st := range sc.Steps {
		assert.Equal(t, StatusPending, st.Status)
	}
}

func TestWriteSkeletonAndRead(t *testing.T) {
	dir := t.TempDir()
	rep := BuildSkeleton(testPlan(), BuilderConfig{RunID: "run-1"})
	require.NoError(t, WriteSkeleton(dir, rep))

	assert.DirExists(t, filepath.Join(dir, "assets", "scenario-001-comment"))
	got, err := ReadReport(dir)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Len(t, got.Scenarios, 2)
}

func TestReadReport_Missing(t *testing.T) {
	_, err := ReadReport(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRecorder_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	plan := testPlan()
	rec, err := NewRecorder(dir, plan, BuilderConfig{RunID: "run-1"}, nil)
	require.NoError(t, err)

	rec.Start()
	rec.ScenarioStarted(0, 2, &plan.Scenarios[0])
	rec.StepStarted(0, &plan.Scenarios[0].Steps[0])

	live, err := ReadReport(dir)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, live.Status)
	assert.Equal(t, StatusRunning, live.Scenarios[0].Status)
	require.NotNil(t, live.Scenarios[0].Counts.Current)
	assert.Equal(t, 0, *live.Scenarios[0].Counts.Current)

	rec.StepCompleted(0, passed("like"))
	rec.StepStarted(1, &plan.Scenarios[0].Steps[1])
	rec.StepCompleted(1, failed("save"))

	skipped := core.StepOutcome{StepID: "share", Status: core.StatusSkipped, Error: "previous step save failed"}
	res := core.ScenarioResult{
		ID: "engage/like", StartTime: time.Now(), Duration: 2 * time.Second,
		Steps: []core.StepOutcome{*passed("like"), *failed("save"), skipped},
	}
	res.ComputeSummary()
	rec.ScenarioEnded(0, &res)

	// The second scenario was never started.
	run := &core.RunResult{Scenarios: []core.ScenarioResult{res, {
		ID:    "comment",
		Error: "run cancelled",
		Steps: []core.StepOutcome{{StepID: "open", Status: core.StatusSkipped}},
	}}}
	run.Scenarios[1].ComputeSummary()
	require.NoError(t, rec.Finish(run))

	got, err := ReadReport(dir)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.NotNil(t, got.EndTime)
	assert.Equal(t, Summary{Total: 2, Failed: 2}, got.Summary)
	assert.Greater(t, got.UpdateSeq, uint64(5))

	sc := got.Scenarios[0]
	assert.Equal(t, StatusFailed, sc.Status)
	assert.Equal(t, StepSummary{Total: 3, Passed: 1, Failed: 1, Skipped: 1}, sc.Counts)
	require.NotNil(t, sc.Duration)
	assert.Equal(t, int64(2000), *sc.Duration)
	require.NotNil(t, sc.Error)
	assert.Equal(t, "attempt limit exceeded", *sc.Error)

	like := sc.Steps[0]
	assert.Equal(t, StatusPassed, like.Status)
	require.NotNil(t, like.Verdict)
	assert.Equal(t, "structural", like.Verdict.Judge)
	assert.Equal(t, []string{"like count 1204 -> 1205"}, like.Reasons)
	require.Len(t, like.Actions, 1)
	assert.Equal(t, &core.Point{X: 120, Y: 220}, like.Actions[0].Point)
	assert.Nil(t, like.Error)

	save := sc.Steps[1]
	assert.Equal(t, 3, save.Attempts)
	require.NotNil(t, save.Error)
	assert.Equal(t, "unresolved_target", save.Error.Type)
	require.Len(t, save.Artifacts, 2)
	shot := filepath.Join(dir, save.Artifacts[0].Path)
	assert.FileExists(t, shot)
	assert.FileExists(t, filepath.Join(dir, save.Artifacts[1].Path))
	assert.Equal(t, filepath.Join(sc.AssetsDir, "save-attempt3.png"), save.Artifacts[0].Path)

	share := sc.Steps[2]
	assert.Equal(t, StatusSkipped, share.Status)
	require.NotNil(t, share.Error)
	assert.Equal(t, "skipped", share.Error.Type)
	assert.Nil(t, share.Verdict)

	cancelled := got.Scenarios[1]
	assert.Equal(t, StatusFailed, cancelled.Status)
	require.NotNil(t, cancelled.Error)
	assert.Equal(t, "run cancelled", *cancelled.Error)
	assert.Equal(t, StatusSkipped, cancelled.Steps[0].Status)

	html, err := os.ReadFile(filepath.Join(dir, "report.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "Like a video")
	assert.Contains(t, string(html), "Increase engagement")
	assert.Contains(t, string(html), "save-attempt3.png")
}

func TestStepError(t *testing.T) {
	tests := []struct {
		name string
		out  core.StepOutcome
		want string
	}{
		{"passed", core.StepOutcome{Status: core.StatusPassed}, ""},
		{"interruption", core.StepOutcome{Status: core.StatusFailed, Verdict: core.Verdict{
			Kind: core.VerdictFailure, Reason: "unrecovered interruption: ad", Interruption: core.InterruptionAd}}, "interruption"},
		{"no change", core.StepOutcome{Status: core.StatusFailed, Verdict: core.Failure(core.ReasonNoVisibleChange)}, "no_visible_change"},
		{"not reached", core.StepOutcome{Status: core.StatusFailed, Verdict: core.Failure(core.ReasonExpectedNotReached)}, "expected_not_reached"},
		{"wrong element", core.StepOutcome{Status: core.StatusFailed, Verdict: core.Failure(core.ReasonWrongElement)}, "wrong_element"},
		{"action", core.StepOutcome{Status: core.StatusFailed, Verdict: core.Failure("action failed: boom")}, "action_failed"},
		{"perception", core.StepOutcome{Status: core.StatusFailed, Verdict: core.Failure("perception failed: refused")}, "perception_failed"},
		{"cancelled", core.StepOutcome{Status: core.StatusErrored, Verdict: core.Failure(core.ReasonCancelled)}, "cancelled"},
		{"invalid", core.StepOutcome{Status: core.StatusErrored, Verdict: core.Failure(`step "x": expected state is required`)}, "invalid_step"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := stepError(&tt.out)
			if tt.want == "" {
				assert.Nil(t, e)
				return
			}
			require.NotNil(t, e)
			assert.Equal(t, tt.want, e.Type)
		})
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusPending, StatusOf(core.StatusPending))
	assert.Equal(t, StatusRunning, StatusOf(core.StatusRunning))
	assert.Equal(t, StatusPassed, StatusOf(core.StatusPassed))
	assert.Equal(t, StatusFailed, StatusOf(core.StatusFailed))
	assert.Equal(t, StatusFailed, StatusOf(core.StatusErrored))
	assert.Equal(t, StatusSkipped, StatusOf(core.StatusSkipped))
}

func TestGenerateHTML_EmbedAssets(t *testing.T) {
	dir := t.TempDir()
	plan := testPlan()
	rec, err := NewRecorder(dir, plan, BuilderConfig{RunID: "run-1"}, nil)
	require.NoError(t, err)
	rec.ScenarioStarted(0, 2, &plan.Scenarios[0])
	rec.StepCompleted(1, failed("save"))

	out := filepath.Join(dir, "embedded.html")
	require.NoError(t, GenerateHTML(dir, HTMLConfig{OutputPath: out, EmbedAssets: true, Title: "Nightly"}))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "data:image/png;base64,"))
	assert.Contains(t, string(data), "<title>Nightly</title>")
}

func TestFormatDuration(t *testing.T) {
	ms := func(v int64) *int64 { return &v }
	assert.Equal(t, "-", formatDuration(nil))
	assert.Equal(t, "450ms", formatDuration(ms(450)))
	assert.Equal(t, "2.5s", formatDuration(ms(2500)))
	assert.Equal(t, "1m 5s", formatDuration(ms(65000)))
}
