package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const likeFile = `business_goal: Increase engagement
scenarios:
  - scenario_id: like
    scenario_title: Like a video
    steps:
      - step_id: like
        action_type: tap
        target: Like button
        expected_state: like count incremented
  - scenario_id: share
    steps:
      - step_id: share
        action_type: tap
        target: Share button
        expected_state: share sheet is shown
`

const commentFile = `scenario_id: comment
steps:
  - step_id: open
    action_type: tap
    target: Comment button
    expected_state: comment sheet is shown
    expect_script: contains("Add comment")
`

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func scenarioIDs(r *Result) []string {
	var ids []string
	for _, sc := range r.Plan.Scenarios {
		ids = append(ids, sc.ID)
	}
	return ids
}

func TestValidate_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"like.yaml": likeFile})

	result := New(nil, nil).Validate(filepath.Join(dir, "like.yaml"))

	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.Files) != 1 {
		t.Errorf("expected 1 file, got %d", len(result.Files))
	}
	if got := strings.Join(scenarioIDs(result), ","); got != "like,share" {
		t.Errorf("expected like,share, got %s", got)
	}
	if result.Plan.BusinessGoal != "Increase engagement" {
		t.Errorf("unexpected business goal %q", result.Plan.BusinessGoal)
	}
}

func TestValidate_DirectoryRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"b_like.yaml":          likeFile,
		"a/comment.yml":        commentFile,
		"a/notes.txt":          "not a scenario",
		"c/nested/README.yaml": "- step_id: back\n  action_type: back\n  expected_state: feed is shown\n",
	})

	result := New(nil, nil).Validate(dir)

	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
	want := []string{
		filepath.Join(dir, "a/comment.yml"),
		filepath.Join(dir, "b_like.yaml"),
		filepath.Join(dir, "c/nested/README.yaml"),
	}
	if strings.Join(result.Files, "|") != strings.Join(want, "|") {
		t.Errorf("expected files %v, got %v", want, result.Files)
	}
	if got := strings.Join(scenarioIDs(result), ","); got != "comment,like,share,README" {
		t.Errorf("unexpected scenarios %s", got)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"broken.yaml": "scenarios: [unclosed",
		"steps.yaml": `scenarios:
  - scenario_id: missing_expectation
    steps:
      - step_id: tap
        action_type: tap
        target: Like button
  - scenario_id: bad_script
    steps:
      - step_id: check
        action_type: back
        expected_state: feed is shown
        expect_script: "contains("
  - scenario_id: fine
    steps:
      - step_id: back
        action_type: back
        expected_state: feed is shown
`,
	})

	result := New(nil, nil).Validate(dir)

	if result.IsValid() {
		t.Fatal("expected validation errors")
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(result.Errors), result.Errors)
	}
	joined := ""
	for _, err := range result.Errors {
		joined += err.Error() + "\n"
	}
	for _, want := range []string{"broken.yaml: parse error", `scenario "missing_expectation"`, `step "check": expect_script`} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected error containing %q, got:\n%s", want, joined)
		}
	}
	if got := strings.Join(scenarioIDs(result), ","); got != "fine" {
		t.Errorf("expected only the valid scenario in the plan, got %s", got)
	}
}

func TestValidate_DuplicateScenarioAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"one.yaml": likeFile, "two.yaml": likeFile})

	result := New(nil, nil).Validate(dir)

	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 duplicate errors, got %v", result.Errors)
	}
	var verr *ValidationError
	for _, err := range result.Errors {
		var ok bool
		verr, ok = err.(*ValidationError)
		if !ok {
			t.Fatalf("expected *ValidationError, got %T", err)
		}
		if !strings.Contains(verr.Message, "first declared in "+filepath.Join(dir, "one.yaml")) {
			t.Errorf("unexpected message %q", verr.Message)
		}
	}
}

func TestValidate_IncludeExclude(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"like.yaml": likeFile, "comment.yaml": commentFile})

	tests := []struct {
		name    string
		include []string
		exclude []string
		want    string
	}{
		{"all", nil, nil, "comment,like,share"},
		{"include exact", []string{"like"}, nil, "like"},
		{"include glob", []string{"s*", "c*"}, nil, "comment,share"},
		{"exclude", nil, []string{"share"}, "comment,like"},
		{"exclude wins", []string{"*"}, []string{"like"}, "comment,share"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := New(tt.include, tt.exclude).Validate(dir)
			if !result.IsValid() {
				t.Fatalf("unexpected errors: %v", result.Errors)
			}
			if got := strings.Join(scenarioIDs(result), ","); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestValidate_NothingSelected(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"like.yaml": likeFile})

	result := New([]string{"checkout"}, nil).Validate(dir)

	if result.IsValid() {
		t.Fatal("expected an error when no scenario is selected")
	}
	if !strings.Contains(result.Errors[0].Error(), "no scenarios selected") {
		t.Errorf("unexpected error %v", result.Errors[0])
	}
}

func TestValidate_MissingPath(t *testing.T) {
	result := New(nil, nil).Validate(filepath.Join(t.TempDir(), "missing.yaml"))
	if result.IsValid() {
		t.Fatal("expected error for missing path")
	}
	if !strings.Contains(result.Errors[0].Error(), "cannot access") {
		t.Errorf("unexpected error %v", result.Errors[0])
	}
}

func TestValidate_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	result := New(nil, nil).Validate(dir)
	if result.IsValid() {
		t.Fatal("expected error for empty directory")
	}
	if !strings.Contains(result.Errors[0].Error(), "no scenario files found") {
		t.Errorf("unexpected error %v", result.Errors[0])
	}
}

func TestValidationError_Error(t *testing.T) {
	e := &ValidationError{File: "a.yaml", Message: "parse error"}
	if e.Error() != "a.yaml: parse error" {
		t.Errorf("unexpected %q", e.Error())
	}
	e.Scenario = "like"
	if e.Error() != `a.yaml: scenario "like": parse error` {
		t.Errorf("unexpected %q", e.Error())
	}
}
