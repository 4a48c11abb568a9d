package revert

import "errors"

// Sentinel errors for the failure taxonomy. Callers match with errors.Is;
// wrapped messages carry the offending value and call-site context.
var (
	// ErrBadFormat marks a token or file name that does not match its
	// required lexical shape. Never guessed-at or repaired.
	ErrBadFormat = errors.New("malformed token")

	// ErrOutOfRange marks a timepoint whose fields decode but fall outside
	// calendar bounds or the allowed clock-skew horizon.
	ErrOutOfRange = errors.New("timepoint out of range")

	// ErrNoMigrationFound means detection ran to completion and no candidate
	// reached the corroboration threshold.
	ErrNoMigrationFound = errors.New("no confirmed migration found")

	// ErrAmbiguousMigration means more than one event confirmed and the
	// caller did not name a reference timepoint to use.
	ErrAmbiguousMigration = errors.New("multiple confirmed migrations")

	// ErrNoUsableBackup means a file required restoration but no backup at
	// or after the reference timepoint exists for it.
	ErrNoUsableBackup = errors.New("no usable backup at or after reference")
)
