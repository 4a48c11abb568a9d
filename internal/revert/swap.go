package revert

import (
	"errors"
	"fmt"
	"io/fs"
)

// The swap is modeled as an explicit state machine rather than nested
// error handlers: four forward states, one rollback path reachable from any
// of them. Each forward step is a single rename (or a copy to a name nothing
// else uses), so no step can leave the live file partially written.
type swapState int

const (
	swapPending  swapState = iota // nothing touched yet
	swapCopied                    // backup copied to the temp name
	swapSecured                   // live file moved aside
	swapPromoted                  // temp copy renamed into the live name
	swapArchived                  // secured original archived: done
)

// tempCopySuffix and displacedSuffix name the two transient files of a
// swap. Tracked-file discovery must never pick these up.
const (
	tempCopySuffix  = ".restoretmp"
	displacedSuffix = ".displaced"
)

// ArchiveSuffix marks a displaced original as a fresh, unreviewed artifact.
const ArchiveSuffix = ".backup.new"

// swap performs the crash-safe replacement of one live file with a chosen
// backup. All four paths live in the same directory as the live file.
type swap struct {
	fops   FileOps
	logger Logger

	live         string // the tracked database file
	backup       string // the chosen snapshot
	tempCopy     string // step 1 target
	tempOriginal string // step 2 target
	archive      string // step 4 target

	state swapState
}

func newSwap(fops FileOps, logger Logger, live, backup string, runStamp Timepoint) *swap {
	return &swap{
		fops:         fops,
		logger:       logger,
		live:         live,
		backup:       backup,
		tempCopy:     live + tempCopySuffix,
		tempOriginal: live + displacedSuffix,
		archive:      fmt.Sprintf("%s_%s%s", live, runStamp.Token(), ArchiveSuffix),
	}
}

// run executes the four forward steps. On any failure it rolls back to the
// pre-attempt state before returning the step's error; rollback failures
// are logged but do not mask the original error.
func (s *swap) run() error {
	if err := s.forward(); err != nil {
		s.rollback()
		return err
	}
	return nil
}

func (s *swap) forward() error {
	// 1. Copy the chosen backup to a temporary name. The original backup
	// file is never touched.
	if err := s.fops.CopyFile(s.backup, s.tempCopy); err != nil {
		return fmt.Errorf("copying backup %s: %w", s.backup, err)
	}
	s.state = swapCopied

	// 2. Move the live file aside. From here the original is safe under
	// its temporary name.
	if err := s.fops.Rename(s.live, s.tempOriginal); err != nil {
		return fmt.Errorf("securing original %s: %w", s.live, err)
	}
	s.state = swapSecured

	// 3. Promote the copy. The restoration becomes visible in one rename.
	if err := s.fops.Rename(s.tempCopy, s.live); err != nil {
		return fmt.Errorf("promoting restored copy to %s: %w", s.live, err)
	}
	s.state = swapPromoted

	// 4. Archive the original under a permanent name carrying the run
	// stamp and the unreviewed-artifact suffix.
	if err := s.fops.Rename(s.tempOriginal, s.archive); err != nil {
		return fmt.Errorf("archiving original as %s: %w", s.archive, err)
	}
	s.state = swapArchived

	return nil
}

// rollback undoes the forward steps in reverse order, restoring the tree to
// its pre-attempt state. It is safe to call from any state.
func (s *swap) rollback() {
	// The promoted copy occupies the live name; it has to go before the
	// original can come back.
	if s.state >= swapPromoted {
		if err := s.fops.Remove(s.live); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("rollback: removing promoted copy failed", "path", s.live, "error", err)
		}
	}

	// Put the secured original back under the live name.
	if s.state >= swapSecured {
		if err := s.fops.Rename(s.tempOriginal, s.live); err != nil {
			s.logger.Error("rollback: restoring original failed", "path", s.live, "error", err)
		}
	}

	// Drop the never-promoted temp copy, including a partial one left by a
	// failed copy step.
	if s.state < swapPromoted {
		if err := s.fops.Remove(s.tempCopy); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("rollback: removing temp copy failed", "path", s.tempCopy, "error", err)
		}
	}

	// Drop any partially created archive.
	if err := s.fops.Remove(s.archive); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("rollback: removing partial archive failed", "path", s.archive, "error", err)
	}
}
