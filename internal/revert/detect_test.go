package revert_test

import (
	"path/filepath"
	"testing"

	"dbrevert/internal/revert"
	"dbrevert/internal/testutil"
)

func buildDetector(t *testing.T, root string, cfg revert.DetectorConfig) *revert.Detector {
	t.Helper()
	ix, err := revert.BuildIndex(root, revert.NewNopLogger())
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	clock := testutil.FixedClock()
	return revert.NewDetector(ix, "operations.edb", []string{"settings.edb", "accounts.edb"},
		cfg, clock, revert.NewNopLogger())
}

func TestDetector(t *testing.T) {
	t.Parallel()

	t.Run("confirms an event from two in-window sentinels", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		// Trigger at 12:00:00; sentinels one second and two hours later.
		testutil.WriteBackup(t, root, "operations.edb", "20240610_120000", []byte("log"))
		testutil.WriteBackup(t, filepath.Join(root, "sub"), "settings.edb", "20240610_120001", []byte("s"))
		testutil.WriteBackup(t, root, "accounts.edb", "20240610_140000", []byte("a"))

		events, err := buildDetector(t, root, revert.DefaultDetectorConfig()).Detect()
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("Detect() returned %d events, want 1", len(events))
		}

		ev := events[0]
		if got := ev.Trigger.Token(); got != "20240610_120000" {
			t.Errorf("Trigger = %s, want 20240610_120000", got)
		}
		// Reference is the earlier of the two sentinel timepoints, not the
		// trigger itself.
		if got := ev.Reference.Token(); got != "20240610_120001" {
			t.Errorf("Reference = %s, want 20240610_120001", got)
		}
		if ev.SentinelCount != 2 {
			t.Errorf("SentinelCount = %d, want 2", ev.SentinelCount)
		}
		if filepath.Base(ev.ReferenceSource) != "settings.edb_20240610_120001.backup" {
			t.Errorf("ReferenceSource = %s, want the settings backup", ev.ReferenceSource)
		}
	})

	t.Run("rejects a candidate below the threshold", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteBackup(t, root, "operations.edb", "20240610_120000", []byte("log"))
		testutil.WriteBackup(t, root, "settings.edb", "20240610_120001", []byte("s"))

		events, err := buildDetector(t, root, revert.DefaultDetectorConfig()).Detect()
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(events) != 0 {
			t.Fatalf("Detect() returned %d events, want 0", len(events))
		}
	})

	t.Run("tolerates sentinels slightly before the trigger", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteBackup(t, root, "operations.edb", "20240610_120000", []byte("log"))
		// Two seconds before the trigger: inside the 3-second margin.
		testutil.WriteBackup(t, root, "settings.edb", "20240610_115958", []byte("s"))
		testutil.WriteBackup(t, root, "accounts.edb", "20240610_120010", []byte("a"))

		events, err := buildDetector(t, root, revert.DefaultDetectorConfig()).Detect()
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("Detect() returned %d events, want 1", len(events))
		}
		if got := events[0].Reference.Token(); got != "20240610_115958" {
			t.Errorf("Reference = %s, want 20240610_115958", got)
		}
	})

	t.Run("ignores sentinels outside the window", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteBackup(t, root, "operations.edb", "20240610_120000", []byte("log"))
		// Ten seconds before: outside the margin.
		testutil.WriteBackup(t, root, "settings.edb", "20240610_115950", []byte("s"))
		// Four days after: outside the 3-day window.
		testutil.WriteBackup(t, root, "accounts.edb", "20240614_120000", []byte("a"))

		events, err := buildDetector(t, root, revert.DefaultDetectorConfig()).Detect()
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(events) != 0 {
			t.Fatalf("Detect() returned %d events, want 0", len(events))
		}
	})

	t.Run("surfaces duplicate events from nearby triggers", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteBackup(t, root, "operations.edb", "20240610_120000", []byte("log"))
		testutil.WriteBackup(t, root, "operations.edb", "20240610_120030", []byte("log"))
		testutil.WriteBackup(t, root, "settings.edb", "20240610_120040", []byte("s"))
		testutil.WriteBackup(t, root, "accounts.edb", "20240610_130000", []byte("a"))

		events, err := buildDetector(t, root, revert.DefaultDetectorConfig()).Detect()
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		// Both triggers see both sentinels; most recent trigger first.
		if len(events) != 2 {
			t.Fatalf("Detect() returned %d events, want 2", len(events))
		}
		if !events[0].Trigger.After(events[1].Trigger) {
			t.Error("events are not ordered most-recent-trigger-first")
		}
		if !events[0].Reference.Equal(events[1].Reference) {
			t.Error("duplicate events disagree on the reference")
		}
	})

	t.Run("no event log backups means no events", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteBackup(t, root, "settings.edb", "20240610_120001", []byte("s"))

		events, err := buildDetector(t, root, revert.DefaultDetectorConfig()).Detect()
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(events) != 0 {
			t.Fatalf("Detect() returned %d events, want 0", len(events))
		}
	})

	t.Run("custom threshold applies", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteBackup(t, root, "operations.edb", "20240610_120000", []byte("log"))
		testutil.WriteBackup(t, root, "settings.edb", "20240610_120001", []byte("s"))

		cfg := revert.DefaultDetectorConfig()
		cfg.MinSentinels = 1
		events, err := buildDetector(t, root, cfg).Detect()
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("Detect() returned %d events, want 1", len(events))
		}
	})
}
