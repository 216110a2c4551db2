package report

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Writer provides thread-safe updates to the run report. Every update
// bumps UpdateSeq and rewrites report.json atomically.
type Writer struct {
	mu        sync.Mutex
	outputDir string
	path      string
	report    *Report
	log       *zap.Logger
}

// NewWriter creates a Writer for a report whose skeleton is already on disk.
func NewWriter(outputDir string, rep *Report, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		outputDir: outputDir,
		path:      filepath.Join(outputDir, FileName),
		report:    rep,
		log:       log.Named("report"),
	}
}

// Dir returns the run directory.
func (w *Writer) Dir() string { return w.outputDir }

// Start marks the run as started.
func (w *Writer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.report.Status = StatusRunning
	w.report.StartTime = now
	w.flushLocked()
}

// UpdateScenario applies fn to the entry of scenario idx and flushes.
func (w *Writer) UpdateScenario(idx int, fn func(*ScenarioEntry)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if idx < 0 || idx >= len(w.report.Scenarios) {
		return
	}
	sc := &w.report.Scenarios[idx]
	fn(sc)
	sc.Counts = countSteps(sc.Steps)
	sc.UpdateSeq++
	w.flushLocked()
}

// End marks the run as complete.
func (w *Writer) End() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.report.EndTime = &now
	w.report.Status = w.computeRunStatus()
	w.flushLocked()
}

// Snapshot returns a deep copy of the current report.
func (w *Writer) Snapshot() *Report {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(w.report)
	if err != nil {
		return nil
	}
	var cp Report
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil
	}
	return &cp
}

// flushLocked writes the report while holding the lock.
func (w *Writer) flushLocked() {
	w.report.UpdateSeq++
	w.report.LastUpdated = time.Now()
	w.report.Summary = w.computeSummary()

	if err := atomicWriteJSON(w.path, w.report); err != nil {
		w.log.Warn("report write failed", zap.String("path", w.path), zap.Error(err))
	}
}

// computeSummary calculates summary from scenario statuses.
func (w *Writer) computeSummary() Summary {
	var s Summary
	for _, sc := range w.report.Scenarios {
		s.Total++
		switch sc.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// computeRunStatus determines overall run status from scenarios.
func (w *Writer) computeRunStatus() Status {
	hasFailure := false
	allComplete := true

	for _, sc := range w.report.Scenarios {
		if sc.Status == StatusFailed {
			hasFailure = true
		}
		if !sc.Status.IsTerminal() {
			allComplete = false
		}
	}

	if !allComplete {
		// A cancelled run leaves pending scenarios behind.
		return StatusFailed
	}
	if hasFailure {
		return StatusFailed
	}
	return StatusPassed
}

func countSteps(steps []Step) StepSummary {
	s := StepSummary{Total: len(steps)}
	for i, st := range steps {
		switch st.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
			cur := i
			s.Current = &cur
		default:
			s.Pending++
		}
	}
	return s
}
