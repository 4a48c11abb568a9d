package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile creates a file (and its parent directories) with the given
// content.
func WriteFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating parent directory: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// WriteFileAt creates a file with the given content and modification time.
func WriteFileAt(t *testing.T, path string, content []byte, mtime time.Time) {
	t.Helper()
	WriteFile(t, path, content)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("setting mtime on %s: %v", path, err)
	}
}

// WriteBackup creates a backup snapshot for the given primary file path
// using the embedded token, e.g. WriteBackup(t, dir, "folders.edb",
// "20240610_120000").
func WriteBackup(t *testing.T, dir, base, token string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, base+"_"+token+".backup")
	WriteFile(t, path, content)
	return path
}
