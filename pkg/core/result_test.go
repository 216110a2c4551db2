package core

import "testing"

func TestScenarioResult_ComputeSummary(t *testing.T) {
	tests := []struct {
		name   string
		steps  []StepStatus
		status StepStatus
	}{
		{"all passed", []StepStatus{StatusPassed, StatusPassed}, StatusPassed},
		{"one failed", []StepStatus{StatusPassed, StatusFailed, StatusSkipped}, StatusFailed},
		{"errored counts as failed", []StepStatus{StatusErrored}, StatusFailed},
		{"empty", nil, StatusSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := &ScenarioResult{}
			for i, s := range tt.steps {
				sr.Steps = append(sr.Steps, StepOutcome{StepID: string(rune('a' + i)), Status: s})
			}
			sr.ComputeSummary()
			if sr.Status != tt.status {
				t.Errorf("Status = %s, want %s", sr.Status, tt.status)
			}
			if sr.TotalSteps != len(tt.steps) {
				t.Errorf("TotalSteps = %d", sr.TotalSteps)
			}
		})
	}
}

func TestRunResult_Success(t *testing.T) {
	r := &RunResult{Scenarios: []ScenarioResult{{Status: StatusPassed}, {Status: StatusFailed}}}
	r.ComputeSummary()
	if r.Success() {
		t.Error("Success() = true with a failed scenario")
	}
	if r.PassedScenarios != 1 || r.FailedScenarios != 1 {
		t.Errorf("counts = %d/%d", r.PassedScenarios, r.FailedScenarios)
	}

	empty := &RunResult{}
	empty.ComputeSummary()
	if empty.Success() {
		t.Error("empty run must not report success")
	}
}

func TestSnapshotAttachments(t *testing.T) {
	snap := &Snapshot{Screenshot: []byte{1, 2}, Tree: &Tree{Raw: "<hierarchy/>"}}
	att := SnapshotAttachments("s1-attempt1", snap)
	if len(att) != 2 {
		t.Fatalf("len = %d, want 2", len(att))
	}
	if att[0].Path != "s1-attempt1.png" || att[1].Path != "s1-attempt1.xml" {
		t.Errorf("paths = %q, %q", att[0].Path, att[1].Path)
	}
	if SnapshotAttachments("x", nil) != nil {
		t.Error("nil snapshot should yield no attachments")
	}
}
