package revert

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// Outcome classifies the handling of one tracked file. Exactly one outcome
// is produced per file.
type Outcome string

const (
	OutcomeRestored Outcome = "restored" // swapped with a post-reference backup
	OutcomeKept     Outcome = "kept"     // untouched, already pre-event state
	OutcomeArchived Outcome = "archived" // renamed aside, post-event with no backup
	OutcomeDeleted  Outcome = "deleted"  // non-recoverable, removed outright
	OutcomeSkipped  Outcome = "skipped"  // failed locally, run continued
)

// PostMigrationInfix joins an archived post-event file's original name and
// the run stamp.
const PostMigrationInfix = "_post_migration_"

// FileResult is the per-file output consumed by collaborators.
type FileResult struct {
	Path    string
	Outcome Outcome
	Reason  string
	Backup  string // path of the snapshot swapped in, when restored
	Archive string // where the displaced or preserved file ended up
	Err     error  // set only for OutcomeSkipped
}

// Summary aggregates outcome counts for one run.
type Summary struct {
	Restored int
	Kept     int
	Archived int
	Deleted  int
	Skipped  int
}

func (s *Summary) count(o Outcome) {
	switch o {
	case OutcomeRestored:
		s.Restored++
	case OutcomeKept:
		s.Kept++
	case OutcomeArchived:
		s.Archived++
	case OutcomeDeleted:
		s.Deleted++
	case OutcomeSkipped:
		s.Skipped++
	}
}

// Executor walks the tracked database files and applies the restore
// protocol for a selected reference timepoint. Files are independent: no
// cross-file ordering, and one file's failure never aborts the rest.
type Executor struct {
	index          *Index
	fops           FileOps
	nonRecoverable map[string]struct{}
	preview        bool
	runStamp       Timepoint
	clock          Clock
	logger         Logger
}

// NewExecutor creates an Executor. nonRecoverable lists logical base names
// whose content the owning application regenerates on next start. runStamp
// is embedded in every archive name produced by this run. When preview is
// true, classification runs in full but no filesystem state changes.
func NewExecutor(index *Index, fops FileOps, nonRecoverable []string, preview bool, runStamp Timepoint, clock Clock, logger Logger) *Executor {
	nr := make(map[string]struct{}, len(nonRecoverable))
	for _, name := range nonRecoverable {
		nr[name] = struct{}{}
	}
	return &Executor{
		index:          index,
		fops:           fops,
		nonRecoverable: nr,
		preview:        preview,
		runStamp:       runStamp,
		clock:          clock,
		logger:         logger,
	}
}

// planKind is the action chosen by classification, before apply.
type planKind int

const (
	planRestore planKind = iota
	planKeep
	planArchive
	planDelete
)

type plan struct {
	kind   planKind
	backup *BackupRecord // set for planRestore
	reason string
}

// Run classifies and handles every tracked file against the reference
// timepoint, returning per-file results in input order and the aggregate
// counters.
func (e *Executor) Run(reference Timepoint, files []string) (Summary, []FileResult) {
	var summary Summary
	results := make([]FileResult, 0, len(files))

	for _, path := range files {
		res := e.runOne(reference, path)
		summary.count(res.Outcome)
		results = append(results, res)
	}

	e.logger.Info("restore pass complete",
		"reference", reference.Token(),
		"preview", e.preview,
		"restored", summary.Restored,
		"kept", summary.Kept,
		"archived", summary.Archived,
		"deleted", summary.Deleted,
		"skipped", summary.Skipped)
	return summary, results
}

func (e *Executor) runOne(reference Timepoint, path string) FileResult {
	p, err := e.classify(reference, path)
	if err != nil {
		e.logger.Warn("file skipped", "path", path, "error", err)
		return FileResult{Path: path, Outcome: OutcomeSkipped, Reason: err.Error(), Err: err}
	}

	if !e.preview {
		if err := e.apply(path, p); err != nil {
			e.logger.Warn("file skipped", "path", path, "error", err)
			return FileResult{Path: path, Outcome: OutcomeSkipped, Reason: err.Error(), Err: err}
		}
	}

	res := FileResult{Path: path, Reason: p.reason}
	switch p.kind {
	case planRestore:
		res.Outcome = OutcomeRestored
		res.Backup = p.backup.Path
		res.Archive = e.displacedArchiveName(path)
	case planKeep:
		res.Outcome = OutcomeKept
	case planArchive:
		res.Outcome = OutcomeArchived
		res.Archive = e.postMigrationName(path)
	case planDelete:
		res.Outcome = OutcomeDeleted
	}
	e.logger.Info("file classified", "path", path, "outcome", string(res.Outcome), "preview", e.preview)
	return res
}

// classify decides the action for one file without mutating anything.
// Preview and apply mode share this path in full; only apply differs.
func (e *Executor) classify(reference Timepoint, path string) (plan, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	if _, ok := e.nonRecoverable[base]; ok {
		return plan{kind: planDelete, reason: "non-recoverable, regenerated by the application"}, nil
	}

	records := e.index.Lookup(dir, base)
	if len(records) > 0 {
		rec, err := e.selectBackup(reference, records)
		if err != nil {
			return plan{}, err
		}
		return plan{
			kind:   planRestore,
			backup: rec,
			reason: fmt.Sprintf("first snapshot at or after %s", reference.Token()),
		}, nil
	}

	// No backup history at all: the modification time decides whether the
	// file predates the event.
	info, err := e.fops.Stat(path)
	if err != nil {
		return plan{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.ModTime().After(reference.Time()) {
		return plan{kind: planArchive, reason: "modified after the event with no backup to restore from"}, nil
	}
	return plan{kind: planKeep, reason: "unmodified since before the event"}, nil
}

// selectBackup picks the earliest snapshot at or after the reference: the
// first post-event snapshot sits closest to the corruption boundary.
// Snapshots strictly before the reference are ignored no matter how many
// exist.
func (e *Executor) selectBackup(reference Timepoint, records []*BackupRecord) (*BackupRecord, error) {
	now := e.clock.Now()
	// Records are ordered ascending, so the first qualifying one wins.
	for _, rec := range records {
		tp, err := rec.Timepoint(now)
		if err != nil {
			return nil, err
		}
		if !tp.Before(reference) {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w (reference %s, %d earlier snapshots)", ErrNoUsableBackup, reference.Token(), len(records))
}

// apply mutates the tree according to the plan. Never called in preview.
func (e *Executor) apply(path string, p plan) error {
	switch p.kind {
	case planKeep:
		return nil
	case planDelete:
		return e.deleteWithCompanions(path)
	case planArchive:
		return e.archivePostEvent(path)
	case planRestore:
		s := newSwap(e.fops, e.logger, path, p.backup.Path, e.runStamp)
		if err := s.run(); err != nil {
			return err
		}
		// Side files encode state incompatible with the swapped-in
		// snapshot and must not be replayed against it.
		e.removeCompanions(path)
		return nil
	}
	return fmt.Errorf("unknown plan kind %d for %s", p.kind, path)
}

// deleteWithCompanions removes a non-recoverable primary and its side
// files. The primary must go; companions are tolerated missing.
func (e *Executor) deleteWithCompanions(path string) error {
	if err := e.fops.Remove(path); err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	e.removeCompanions(path)
	return nil
}

// archivePostEvent renames a post-event file (and companions) in place,
// preserving data that cannot be trusted but cannot be safely discarded.
func (e *Executor) archivePostEvent(path string) error {
	if err := e.fops.Rename(path, e.postMigrationName(path)); err != nil {
		return fmt.Errorf("archiving %s: %w", path, err)
	}
	for _, companion := range CompanionPaths(path) {
		if _, err := e.fops.Stat(companion); err != nil {
			continue
		}
		if err := e.fops.Rename(companion, e.postMigrationName(companion)); err != nil {
			e.logger.Warn("archiving companion failed", "path", companion, "error", err)
		}
	}
	return nil
}

// postMigrationName appends the preserve suffix to a full original name.
func (e *Executor) postMigrationName(path string) string {
	return path + PostMigrationInfix + e.runStamp.Token()
}

// displacedArchiveName is where the swap parks the displaced original.
func (e *Executor) displacedArchiveName(path string) string {
	return fmt.Sprintf("%s_%s%s", path, e.runStamp.Token(), ArchiveSuffix)
}

// removeCompanions best-effort deletes the side files of a primary.
func (e *Executor) removeCompanions(primary string) {
	for _, companion := range CompanionPaths(primary) {
		if err := e.fops.Remove(companion); err != nil && !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("removing companion failed", "path", companion, "error", err)
		}
	}
}
