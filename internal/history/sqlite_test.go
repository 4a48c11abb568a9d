package history_test

import (
	"testing"
	"time"

	"dbrevert/internal/history"
	"dbrevert/internal/history/migrations"
	"dbrevert/internal/revert"
)

func newTestHistory(t *testing.T) *history.SQLiteHistory {
	t.Helper()
	h, err := history.NewSQLiteHistory(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteHistory() error = %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestSQLiteHistoryRoundTrip(t *testing.T) {
	h := newTestHistory(t)

	started := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	if err := h.BeginRun("run-1", started, "20240610_120001", false, "detected"); err != nil {
		t.Fatalf("BeginRun() error = %v", err)
	}

	files := []revert.FileResult{
		{Path: "/data/folders.edb", Outcome: revert.OutcomeRestored,
			Backup: "/data/folders.edb_20240610_120005.backup", Reason: "first snapshot at or after 20240610_120001"},
		{Path: "/data/cache.edb", Outcome: revert.OutcomeDeleted, Reason: "non-recoverable"},
	}
	for _, f := range files {
		if err := h.RecordFile("run-1", f); err != nil {
			t.Fatalf("RecordFile(%s) error = %v", f.Path, err)
		}
	}

	summary := revert.Summary{Restored: 1, Deleted: 1}
	if err := h.FinishRun("run-1", started.Add(2*time.Second), summary); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	runs, err := h.Runs(10)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Runs() returned %d runs, want 1", len(runs))
	}

	r := runs[0]
	if r.ID != "run-1" {
		t.Errorf("ID = %s, want run-1", r.ID)
	}
	if r.Reference != "20240610_120001" {
		t.Errorf("Reference = %s, want 20240610_120001", r.Reference)
	}
	if r.Preview {
		t.Error("Preview = true, want false")
	}
	if r.Mode != "detected" {
		t.Errorf("Mode = %s, want detected", r.Mode)
	}
	if !r.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", r.StartedAt, started)
	}
	if r.FinishedAt.IsZero() {
		t.Error("FinishedAt is zero after FinishRun")
	}
	if r.Summary != summary {
		t.Errorf("Summary = %+v, want %+v", r.Summary, summary)
	}

	got, err := h.FileResults("run-1")
	if err != nil {
		t.Fatalf("FileResults() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("FileResults() returned %d rows, want 2", len(got))
	}
	for i, f := range files {
		if got[i].Path != f.Path || got[i].Outcome != f.Outcome || got[i].Backup != f.Backup || got[i].Reason != f.Reason {
			t.Errorf("FileResults()[%d] = %+v, want %+v", i, got[i], f)
		}
	}
}

func TestSQLiteHistoryRunOrdering(t *testing.T) {
	h := newTestHistory(t)

	base := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "middle", "new"} {
		if err := h.BeginRun(id, base.Add(time.Duration(i)*time.Hour), "20240610_120000", true, "manual"); err != nil {
			t.Fatalf("BeginRun(%s) error = %v", id, err)
		}
	}

	runs, err := h.Runs(2)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Runs(2) returned %d runs, want 2", len(runs))
	}
	if runs[0].ID != "new" || runs[1].ID != "middle" {
		t.Errorf("Runs(2) = [%s, %s], want newest first", runs[0].ID, runs[1].ID)
	}
}

func TestSQLiteHistoryUnfinishedRun(t *testing.T) {
	h := newTestHistory(t)

	started := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	if err := h.BeginRun("crashed", started, "20240610_120000", false, "detected"); err != nil {
		t.Fatalf("BeginRun() error = %v", err)
	}

	runs, err := h.Runs(10)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Runs() returned %d runs, want 1", len(runs))
	}
	if !runs[0].FinishedAt.IsZero() {
		t.Errorf("FinishedAt = %v for an unfinished run, want zero", runs[0].FinishedAt)
	}
}

func TestSQLiteHistoryFinishUnknownRun(t *testing.T) {
	h := newTestHistory(t)

	err := h.FinishRun("missing", time.Now(), revert.Summary{})
	if err == nil {
		t.Fatal("FinishRun() on unknown run succeeded, want error")
	}
}

func TestSQLiteHistoryPersistsToFile(t *testing.T) {
	path := t.TempDir() + "/audit.db"

	h, err := history.NewSQLiteHistory(path)
	if err != nil {
		t.Fatalf("NewSQLiteHistory() error = %v", err)
	}
	if err := h.BeginRun("run-1", time.Now().UTC(), "20240610_120000", false, "manual"); err != nil {
		t.Fatalf("BeginRun() error = %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// The schema left behind reports as fully migrated.
	db, err := history.OpenConnection(path)
	if err != nil {
		t.Fatalf("OpenConnection() error = %v", err)
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() error = %v", err)
	}
	db.Close()

	// Reopen: the run must still be there and migrations must tolerate an
	// already-migrated database.
	h2, err := history.NewSQLiteHistory(path)
	if err != nil {
		t.Fatalf("NewSQLiteHistory() reopen error = %v", err)
	}
	defer h2.Close()

	runs, err := h2.Runs(10)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" {
		t.Fatalf("Runs() after reopen = %+v, want the recorded run", runs)
	}
}
