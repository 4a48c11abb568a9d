package revert

import "io/fs"

// FileOps is the narrow filesystem seam used by the executor. Every
// mutation of the tree goes through it, which is what lets tests inject
// mid-swap failures and preview mode substitute no-ops.
type FileOps interface {
	// CopyFile creates dst with src's content and permissions.
	// dst must not already exist.
	CopyFile(src, dst string) error

	// Rename atomically moves oldpath to newpath. Callers only ever rename
	// within a single directory, so the move is a single atomic step.
	Rename(oldpath, newpath string) error

	// Remove deletes a single file.
	Remove(path string) error

	// Stat returns file info for a path.
	Stat(path string) (fs.FileInfo, error)
}

// CompanionSuffixes are the write-ahead / shared-memory side files tied to
// a primary database file. They are handled as a unit with the primary:
// whatever state they encode is invalid the moment the primary is replaced.
var CompanionSuffixes = []string{"-wal", "-shm"}

// CompanionPaths returns the side-file paths for a primary database file.
func CompanionPaths(primary string) []string {
	paths := make([]string, 0, len(CompanionSuffixes))
	for _, suffix := range CompanionSuffixes {
		paths = append(paths, primary+suffix)
	}
	return paths
}
