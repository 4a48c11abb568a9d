package revert_test

import (
	"path/filepath"
	"testing"

	"dbrevert/internal/revert"
	"dbrevert/internal/testutil"
)

func TestParseBackupName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		wantBase  string
		wantToken string
		wantOK    bool
	}{
		{"folders.edb_20240610_120000.backup", "folders.edb", "20240610_120000", true},
		{"mail_data.edb_20240610_120000.backup", "mail_data.edb", "20240610_120000", true},
		{"folders.edb", "", "", false},
		{"folders.edb_20240610_120000.backup.new", "", "", false},
		{"folders.edb_2024_120000.backup", "", "", false},
		{"folders.edb.backup", "", "", false},
		{"_20240610_120000.backup", "", "", false},
	}
	for _, tt := range tests {
		base, token, ok := revert.ParseBackupName(tt.name)
		if base != tt.wantBase || token != tt.wantToken || ok != tt.wantOK {
			t.Errorf("ParseBackupName(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.name, base, token, ok, tt.wantBase, tt.wantToken, tt.wantOK)
		}
	}
}

func TestBuildIndex(t *testing.T) {
	t.Parallel()

	t.Run("collects and orders backups per directory", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		dirA := filepath.Join(root, "a")

		// Inserted out of chronological order.
		testutil.WriteBackup(t, dirA, "folders.edb", "20240612_090000", []byte("late"))
		testutil.WriteBackup(t, dirA, "folders.edb", "20240610_120000", []byte("early"))
		testutil.WriteBackup(t, dirA, "folders.edb", "20240611_000000", []byte("middle"))

		// Noise that must not be indexed.
		testutil.WriteFile(t, filepath.Join(dirA, "folders.edb"), []byte("live"))
		testutil.WriteFile(t, filepath.Join(dirA, "notes.txt"), []byte("x"))
		testutil.WriteFile(t, filepath.Join(dirA, "folders.edb_20240612_090000.backup.new"), []byte("x"))

		ix, err := revert.BuildIndex(root, revert.NewNopLogger())
		if err != nil {
			t.Fatalf("BuildIndex() error = %v", err)
		}
		if ix.Buckets() != 1 {
			t.Fatalf("Buckets() = %d, want 1", ix.Buckets())
		}

		records := ix.Lookup(dirA, "folders.edb")
		if len(records) != 3 {
			t.Fatalf("Lookup() returned %d records, want 3", len(records))
		}
		want := []string{"20240610_120000", "20240611_000000", "20240612_090000"}
		for i, rec := range records {
			if rec.RawToken != want[i] {
				t.Errorf("records[%d].RawToken = %q, want %q", i, rec.RawToken, want[i])
			}
		}
	})

	t.Run("lookup anywhere spans directories", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteBackup(t, filepath.Join(root, "a"), "settings.edb", "20240610_120000", []byte("x"))
		testutil.WriteBackup(t, filepath.Join(root, "b", "nested"), "settings.edb", "20240611_120000", []byte("y"))

		ix, err := revert.BuildIndex(root, revert.NewNopLogger())
		if err != nil {
			t.Fatalf("BuildIndex() error = %v", err)
		}

		buckets := ix.LookupAnywhere("settings.edb")
		if len(buckets) != 2 {
			t.Fatalf("LookupAnywhere() returned %d buckets, want 2", len(buckets))
		}
	})

	t.Run("exact lookup misses return nil", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteBackup(t, root, "settings.edb", "20240610_120000", []byte("x"))

		ix, err := revert.BuildIndex(root, revert.NewNopLogger())
		if err != nil {
			t.Fatalf("BuildIndex() error = %v", err)
		}
		if got := ix.Lookup(root, "accounts.edb"); got != nil {
			t.Errorf("Lookup() = %v, want nil", got)
		}
		if got := ix.LookupAnywhere("accounts.edb"); got != nil {
			t.Errorf("LookupAnywhere() = %v, want nil", got)
		}
	})
}

func TestBackupRecordLazyDecode(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	testutil.WriteBackup(t, root, "settings.edb", "20240610_120000", []byte("x"))
	testutil.WriteBackup(t, root, "broken.edb", "20249910_120000", []byte("x"))

	ix, err := revert.BuildIndex(root, revert.NewNopLogger())
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}

	rec := ix.Lookup(root, "settings.edb")[0]
	tp, err := rec.Timepoint(testNow)
	if err != nil {
		t.Fatalf("Timepoint() error = %v", err)
	}
	if tp.Token() != "20240610_120000" {
		t.Errorf("Timepoint() = %s, want 20240610_120000", tp.Token())
	}

	// Second access hits the memoized value.
	again, err := rec.Timepoint(testNow)
	if err != nil || !again.Equal(tp) {
		t.Errorf("second Timepoint() = (%v, %v), want (%v, nil)", again, err, tp)
	}

	// A month-99 token is indexed (the lexical shape matches) but fails to
	// decode when actually used.
	bad := ix.Lookup(root, "broken.edb")[0]
	if _, err := bad.Timepoint(testNow); err == nil {
		t.Error("Timepoint() on month-99 token succeeded, want error")
	}
}
