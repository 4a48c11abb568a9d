package revert

import "time"

// RunRecord is one completed (or in-flight) restore run as stored in the
// audit log.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Reference  string // reference timepoint token
	Preview    bool
	Mode       string // "detected" or "manual"
	Summary    Summary
}

// History is the audit log of restore runs and their per-file outcomes.
type History interface {
	// BeginRun records a run before any file is touched.
	BeginRun(id string, startedAt time.Time, reference string, preview bool, mode string) error

	// RecordFile appends one per-file outcome to a run.
	RecordFile(runID string, result FileResult) error

	// FinishRun stores the aggregate counters and completion time.
	FinishRun(runID string, finishedAt time.Time, summary Summary) error

	// Runs returns the most recent runs, newest first.
	Runs(limit int) ([]RunRecord, error)

	// Close closes the underlying store.
	Close() error
}
