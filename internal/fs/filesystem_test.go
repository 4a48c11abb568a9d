package fs_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	dbfs "dbrevert/internal/fs"
	"dbrevert/internal/testutil"
)

func TestCopyFile(t *testing.T) {
	t.Parallel()

	t.Run("copies content and permissions", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		src := filepath.Join(dir, "src")
		dst := filepath.Join(dir, "dst")
		testutil.WriteFile(t, src, []byte("payload"))
		if err := os.Chmod(src, 0600); err != nil {
			t.Fatal(err)
		}

		if err := dbfs.NewOSFileOps().CopyFile(src, dst); err != nil {
			t.Fatalf("CopyFile() error = %v", err)
		}

		data, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "payload" {
			t.Errorf("dst content = %q, want %q", data, "payload")
		}
		info, err := os.Stat(dst)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("dst perm = %o, want 0600", info.Mode().Perm())
		}
	})

	t.Run("refuses to overwrite an existing destination", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		src := filepath.Join(dir, "src")
		dst := filepath.Join(dir, "dst")
		testutil.WriteFile(t, src, []byte("new"))
		testutil.WriteFile(t, dst, []byte("old"))

		err := dbfs.NewOSFileOps().CopyFile(src, dst)
		if !errors.Is(err, os.ErrExist) {
			t.Fatalf("CopyFile() error = %v, want ErrExist", err)
		}
		data, _ := os.ReadFile(dst)
		if string(data) != "old" {
			t.Errorf("dst content = %q, existing file was clobbered", data)
		}
	})

	t.Run("missing source is an error", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		err := dbfs.NewOSFileOps().CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("CopyFile() error = %v, want ErrNotExist", err)
		}
	})
}

func TestDiscoverTracked(t *testing.T) {
	t.Parallel()

	t.Run("finds tracked extensions and skips tool artifacts", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		sub := filepath.Join(root, "profiles", "main")

		testutil.WriteFile(t, filepath.Join(root, "folders.edb"), []byte("x"))
		testutil.WriteFile(t, filepath.Join(sub, "settings.edb"), []byte("x"))

		// None of these may surface.
		testutil.WriteFile(t, filepath.Join(root, "folders.edb_20240610_120000.backup"), []byte("x"))
		testutil.WriteFile(t, filepath.Join(root, "folders.edb_20240611_090000.backup.new"), []byte("x"))
		testutil.WriteFile(t, filepath.Join(root, "folders.edb.restoretmp"), []byte("x"))
		testutil.WriteFile(t, filepath.Join(root, "folders.edb.displaced"), []byte("x"))
		testutil.WriteFile(t, filepath.Join(root, "folders.edb-wal"), []byte("x"))
		testutil.WriteFile(t, filepath.Join(root, "folders.edb-shm"), []byte("x"))
		testutil.WriteFile(t, filepath.Join(root, "notes.edb_post_migration_20240611_090000"), []byte("x"))
		testutil.WriteFile(t, filepath.Join(root, "readme.txt"), []byte("x"))

		got, err := dbfs.DiscoverTracked(root, []string{"edb"})
		if err != nil {
			t.Fatalf("DiscoverTracked() error = %v", err)
		}
		want := []string{
			filepath.Join(root, "folders.edb"),
			filepath.Join(sub, "settings.edb"),
		}
		if len(got) != len(want) {
			t.Fatalf("DiscoverTracked() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("tracked[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	})

	t.Run("extension spelling is normalized", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteFile(t, filepath.Join(root, "a.edb"), []byte("x"))

		withDot, err := dbfs.DiscoverTracked(root, []string{".edb"})
		if err != nil {
			t.Fatalf("DiscoverTracked() error = %v", err)
		}
		if len(withDot) != 1 {
			t.Errorf("DiscoverTracked(.edb) = %v, want one file", withDot)
		}
	})

	t.Run("results are sorted", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		testutil.WriteFile(t, filepath.Join(root, "z.edb"), []byte("x"))
		testutil.WriteFile(t, filepath.Join(root, "a.edb"), []byte("x"))
		testutil.WriteFile(t, filepath.Join(root, "m.edb"), []byte("x"))

		got, err := dbfs.DiscoverTracked(root, []string{"edb"})
		if err != nil {
			t.Fatalf("DiscoverTracked() error = %v", err)
		}
		for i := 1; i < len(got); i++ {
			if got[i-1] > got[i] {
				t.Errorf("results out of order: %s before %s", got[i-1], got[i])
			}
		}
	})
}
