package revert

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// BackupSuffix terminates every snapshot file name.
const BackupSuffix = ".backup"

// backupNamePattern decomposes a snapshot file name into the logical base
// name (including the database's own extension) and the embedded timepoint
// token: <name>.<ext>_<YYYYMMDD_HHMMSS>.backup
var backupNamePattern = regexp.MustCompile(`^(.+)_(\d{8}_\d{6})\.backup$`)

// ParseBackupName splits a file name into its logical base name and raw
// timepoint token. ok is false when the name is not a backup file.
func ParseBackupName(name string) (base, token string, ok bool) {
	m := backupNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// BackupRecord is one snapshot found on disk. The timepoint token is kept
// raw and decoded on first use: most buckets are queried at most a few
// times, and eagerly parsing every token in a large tree wastes work.
type BackupRecord struct {
	Dir      string // directory holding the backup file
	Base     string // logical base name, e.g. "folders.edb"
	Path     string // absolute path of the backup file itself
	RawToken string

	decoded *Timepoint // memoized on first successful decode
}

// Timepoint decodes the record's token, caching the result. now anchors the
// codec's future-dated check.
func (r *BackupRecord) Timepoint(now time.Time) (Timepoint, error) {
	if r.decoded != nil {
		return *r.decoded, nil
	}
	tp, err := ParseTimepoint(r.RawToken, r.Path, now)
	if err != nil {
		return Timepoint{}, err
	}
	r.decoded = &tp
	return tp, nil
}

type bucketKey struct {
	dir  string
	base string
}

// Bucket holds all snapshots of one logical file in one directory, ordered
// by timepoint ascending. Ordering sorts the raw tokens: the fixed-width
// token is lexicographically chronological, so no decode is needed.
type Bucket struct {
	Dir     string
	Base    string
	Records []*BackupRecord
}

// Index maps every logical database file under a root to its available
// snapshots. Built once per run by a single tree walk, read-only after.
type Index struct {
	buckets map[bucketKey]*Bucket
	byBase  map[string][]*Bucket
}

// BuildIndex scans the directory tree under root once, collecting every
// file whose name matches the backup pattern.
func BuildIndex(root string, logger Logger) (*Index, error) {
	ix := &Index{
		buckets: make(map[bucketKey]*Bucket),
		byBase:  make(map[string][]*Bucket),
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		base, token, ok := ParseBackupName(d.Name())
		if !ok {
			return nil
		}
		dir := filepath.Dir(path)
		ix.add(&BackupRecord{
			Dir:      dir,
			Base:     base,
			Path:     path,
			RawToken: token,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning backup tree %s: %w", root, err)
	}

	for _, b := range ix.buckets {
		sort.Slice(b.Records, func(i, j int) bool {
			return b.Records[i].RawToken < b.Records[j].RawToken
		})
	}

	logger.Debug("backup index built", "root", root, "buckets", len(ix.buckets))
	return ix, nil
}

func (ix *Index) add(r *BackupRecord) {
	key := bucketKey{dir: r.Dir, base: r.Base}
	b, ok := ix.buckets[key]
	if !ok {
		b = &Bucket{Dir: r.Dir, Base: r.Base}
		ix.buckets[key] = b
		ix.byBase[r.Base] = append(ix.byBase[r.Base], b)
	}
	b.Records = append(b.Records, r)
}

// Lookup returns the snapshots of one logical file in one exact directory,
// ordered by timepoint ascending. nil when none exist.
func (ix *Index) Lookup(dir, base string) []*BackupRecord {
	b, ok := ix.buckets[bucketKey{dir: dir, base: base}]
	if !ok {
		return nil
	}
	return b.Records
}

// LookupAnywhere returns every bucket whose logical base name matches,
// regardless of directory. Used by detection, where sentinel files may live
// in different subdirectories.
func (ix *Index) LookupAnywhere(base string) []*Bucket {
	return ix.byBase[base]
}

// Buckets returns the number of (directory, base name) groups indexed.
func (ix *Index) Buckets() int { return len(ix.buckets) }
