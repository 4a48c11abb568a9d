package testutil

import (
	"io/fs"

	"dbrevert/internal/revert"
)

// FlakyFileOps wraps another FileOps and fails specific operations on
// specific paths, for exercising mid-swap failure and rollback.
type FlakyFileOps struct {
	Inner revert.FileOps

	// Keyed by destination path (Rename newpath, CopyFile dst) or the
	// operated-on path (Remove, Stat). A hit returns the mapped error
	// without touching the filesystem, then consumes the entry, so a
	// rollback over the same path proceeds normally.
	FailCopy   map[string]error
	FailRename map[string]error
	FailRemove map[string]error
	FailStat   map[string]error
}

// NewFlakyFileOps wraps inner with empty failure maps.
func NewFlakyFileOps(inner revert.FileOps) *FlakyFileOps {
	return &FlakyFileOps{
		Inner:      inner,
		FailCopy:   make(map[string]error),
		FailRename: make(map[string]error),
		FailRemove: make(map[string]error),
		FailStat:   make(map[string]error),
	}
}

func (f *FlakyFileOps) CopyFile(src, dst string) error {
	if err, ok := f.FailCopy[dst]; ok {
		delete(f.FailCopy, dst)
		return err
	}
	return f.Inner.CopyFile(src, dst)
}

func (f *FlakyFileOps) Rename(oldpath, newpath string) error {
	if err, ok := f.FailRename[newpath]; ok {
		delete(f.FailRename, newpath)
		return err
	}
	return f.Inner.Rename(oldpath, newpath)
}

func (f *FlakyFileOps) Remove(path string) error {
	if err, ok := f.FailRemove[path]; ok {
		delete(f.FailRemove, path)
		return err
	}
	return f.Inner.Remove(path)
}

func (f *FlakyFileOps) Stat(path string) (fs.FileInfo, error) {
	if err, ok := f.FailStat[path]; ok {
		delete(f.FailStat, path)
		return nil, err
	}
	return f.Inner.Stat(path)
}

var _ revert.FileOps = (*FlakyFileOps)(nil)
