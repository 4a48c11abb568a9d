package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dbrevert/internal/revert"
)

// OSFileOps is the real filesystem implementation of revert.FileOps.
type OSFileOps struct{}

func NewOSFileOps() *OSFileOps { return &OSFileOps{} }

// CopyFile creates dst with src's content and permissions. dst must not
// already exist.
func (*OSFileOps) CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copying content: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("closing destination: %w", err)
	}
	return nil
}

func (*OSFileOps) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (*OSFileOps) Remove(path string) error {
	return os.Remove(path)
}

func (*OSFileOps) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Compile-time check that OSFileOps implements revert.FileOps.
var _ revert.FileOps = (*OSFileOps)(nil)

// transient suffixes produced by this tool itself; never tracked.
var skipSuffixes = []string{
	revert.BackupSuffix,
	revert.ArchiveSuffix,
	".restoretmp",
	".displaced",
	"-wal",
	"-shm",
}

// DiscoverTracked walks the working tree and returns the database files the
// executor should process: regular files carrying one of the configured
// extensions, excluding snapshots, companions, and artifacts of earlier
// runs. Paths come back sorted for stable run ordering.
func DiscoverTracked(root string, extensions []string) ([]string, error) {
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet["."+strings.TrimPrefix(ext, ".")] = struct{}{}
	}

	var tracked []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		for _, suffix := range skipSuffixes {
			if strings.HasSuffix(name, suffix) {
				return nil
			}
		}
		if strings.Contains(name, revert.PostMigrationInfix) {
			return nil
		}
		if _, ok := extSet[filepath.Ext(name)]; !ok {
			return nil
		}
		tracked = append(tracked, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking working tree %s: %w", root, err)
	}

	sort.Strings(tracked)
	return tracked, nil
}
