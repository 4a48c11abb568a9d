package history

import (
	"database/sql"
	"fmt"
	"time"

	"dbrevert/internal/history/migrations"
	"dbrevert/internal/revert"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteHistory implements revert.History on a SQLite file.
type SQLiteHistory struct {
	db   *sql.DB
	path string
}

// NewSQLiteHistory opens (and migrates) the audit database at path.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteHistory(path string) (*SQLiteHistory, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating audit database: %w", err)
	}

	return &SQLiteHistory{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the
// appropriate PRAGMAs. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward
	// compatibility).
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

func (h *SQLiteHistory) BeginRun(id string, startedAt time.Time, reference string, preview bool, mode string) error {
	_, err := h.db.Exec(
		`INSERT INTO runs (id, started_at, reference, preview, mode) VALUES (?, ?, ?, ?, ?)`,
		id, startedAt.UTC(), reference, boolToInt(preview), mode)
	if err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}
	return nil
}

func (h *SQLiteHistory) RecordFile(runID string, result revert.FileResult) error {
	detail := result.Reason
	_, err := h.db.Exec(
		`INSERT INTO run_files (run_id, path, outcome, backup, detail) VALUES (?, ?, ?, ?, ?)`,
		runID, result.Path, string(result.Outcome), result.Backup, detail)
	if err != nil {
		return fmt.Errorf("recording file outcome: %w", err)
	}
	return nil
}

func (h *SQLiteHistory) FinishRun(runID string, finishedAt time.Time, summary revert.Summary) error {
	res, err := h.db.Exec(
		`UPDATE runs SET finished_at = ?, restored = ?, kept = ?, archived = ?, deleted = ?, skipped = ? WHERE id = ?`,
		finishedAt.UTC(), summary.Restored, summary.Kept, summary.Archived, summary.Deleted, summary.Skipped, runID)
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking run update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no run with id %s", runID)
	}
	return nil
}

func (h *SQLiteHistory) Runs(limit int) ([]revert.RunRecord, error) {
	rows, err := h.db.Query(
		`SELECT id, started_at, finished_at, reference, preview, mode,
		        restored, kept, archived, deleted, skipped
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []revert.RunRecord
	for rows.Next() {
		var r revert.RunRecord
		var finished sql.NullTime
		var preview int
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Reference, &preview, &r.Mode,
			&r.Summary.Restored, &r.Summary.Kept, &r.Summary.Archived, &r.Summary.Deleted, &r.Summary.Skipped); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		r.Preview = preview != 0
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// FileResults returns the per-file outcomes recorded for one run, in
// insertion order.
func (h *SQLiteHistory) FileResults(runID string) ([]revert.FileResult, error) {
	rows, err := h.db.Query(
		`SELECT path, outcome, backup, detail FROM run_files WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing run files: %w", err)
	}
	defer rows.Close()

	var results []revert.FileResult
	for rows.Next() {
		var r revert.FileResult
		var outcome string
		var backup, detail sql.NullString
		if err := rows.Scan(&r.Path, &outcome, &backup, &detail); err != nil {
			return nil, fmt.Errorf("scanning run file: %w", err)
		}
		r.Outcome = revert.Outcome(outcome)
		r.Backup = backup.String
		r.Reason = detail.String
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run files: %w", err)
	}
	return results, nil
}

func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ revert.History = (*SQLiteHistory)(nil)
