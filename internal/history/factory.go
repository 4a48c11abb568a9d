package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dbrevert/internal/config"
	"dbrevert/internal/revert"
)

// NewHistoryFromConfig creates a History implementation based on the
// history config type.
func NewHistoryFromConfig(cfg config.HistoryConfig) (revert.History, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("sqlite history requires data_dir to be set")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating history data directory: %w", err)
		}
		return NewSQLiteHistory(filepath.Join(cfg.DataDir, "dbrevert.db"))
	case "none", "":
		return NopHistory{}, nil
	default:
		return nil, fmt.Errorf("unknown history type: %s", cfg.Type)
	}
}

// NopHistory discards everything. Used when auditing is disabled.
type NopHistory struct{}

func (NopHistory) BeginRun(string, time.Time, string, bool, string) error { return nil }
func (NopHistory) RecordFile(string, revert.FileResult) error             { return nil }
func (NopHistory) FinishRun(string, time.Time, revert.Summary) error      { return nil }
func (NopHistory) Runs(int) ([]revert.RunRecord, error)                   { return nil, nil }
func (NopHistory) Close() error                                           { return nil }

var _ revert.History = NopHistory{}
