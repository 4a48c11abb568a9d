package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dbrevert/internal/config"
	"dbrevert/internal/encryption"
	"dbrevert/internal/fs"
	"dbrevert/internal/history"
	"dbrevert/internal/revert"
	"dbrevert/internal/vault"
)

// App is the application layer between the CLI and the core packages. It
// constructs all dependencies from config and exposes the high-level
// operations the commands call.
type App struct {
	cfg       *config.Config
	history   revert.History
	vault     revert.Vault // nil when retention is disabled
	encryptor revert.Encryptor
	fops      revert.FileOps
	clock     revert.Clock
	idgen     revert.IDGenerator
	logger    revert.Logger
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "Detect", "Restore"). The
// caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	hist, err := history.NewHistoryFromConfig(cfg.History)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating history store: %w", err)
	}

	var v revert.Vault
	if cfg.Retention.Vault.Type != "" {
		v, err = vault.NewVaultFromConfig(cfg.Retention.Vault)
		if err != nil {
			hist.Close()
			logFile.Close()
			return nil, fmt.Errorf("creating retention vault: %w", err)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		hist.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	logger.Info("operation started", "operation", operation, "root", cfg.RootDir)

	return &App{
		cfg:       cfg,
		history:   hist,
		vault:     v,
		encryptor: enc,
		fops:      fs.NewOSFileOps(),
		clock:     revert.RealClock{},
		idgen:     revert.UUIDGenerator{},
		logger:    logger,
		logFile:   logFile,
	}, nil
}

// detectorConfig maps the TOML detection section onto the core constants,
// falling back to the defaults for unset fields.
func (a *App) detectorConfig() revert.DetectorConfig {
	cfg := revert.DefaultDetectorConfig()
	if a.cfg.Detection.WindowDays > 0 {
		cfg.WindowDays = a.cfg.Detection.WindowDays
	}
	if a.cfg.Detection.MarginSeconds > 0 {
		cfg.MarginSeconds = a.cfg.Detection.MarginSeconds
	}
	if a.cfg.Detection.MinSentinels > 0 {
		cfg.MinSentinels = a.cfg.Detection.MinSentinels
	}
	return cfg
}

// Detect scans the working tree and returns all confirmed migration
// events, most recent trigger first.
func (a *App) Detect() ([]revert.MigrationEvent, error) {
	index, err := revert.BuildIndex(a.cfg.RootDir, a.logger)
	if err != nil {
		return nil, err
	}
	det := revert.NewDetector(index, a.cfg.Tracking.EventLog, a.cfg.Tracking.Sentinels,
		a.detectorConfig(), a.clock, a.logger)
	return det.Detect()
}

// Restore runs the full restore pass. refToken selects the reference
// timepoint; when empty, detection must confirm exactly one event — zero
// confirmed events halt the run with ErrNoMigrationFound, several with
// ErrAmbiguousMigration, both before any mutation. preview substitutes all
// mutating actions with no-ops.
func (a *App) Restore(refToken string, preview bool) (revert.Summary, []revert.FileResult, error) {
	now := a.clock.Now()

	index, err := revert.BuildIndex(a.cfg.RootDir, a.logger)
	if err != nil {
		return revert.Summary{}, nil, err
	}

	mode := "manual"
	var reference revert.Timepoint
	if refToken != "" {
		reference, err = revert.ParseTimepoint(refToken, "reference timepoint", now)
		if err != nil {
			return revert.Summary{}, nil, err
		}
	} else {
		mode = "detected"
		reference, err = a.detectSingleReference(index)
		if err != nil {
			return revert.Summary{}, nil, err
		}
	}

	files, err := fs.DiscoverTracked(a.cfg.RootDir, a.cfg.Tracking.Extensions)
	if err != nil {
		return revert.Summary{}, nil, err
	}

	runStamp := revert.TimepointOf(now)
	exec := revert.NewExecutor(index, a.fops, a.cfg.Tracking.NonRecoverable,
		preview, runStamp, a.clock, a.logger)

	runID := a.idgen.New()
	if err := a.history.BeginRun(runID, now, reference.Token(), preview, mode); err != nil {
		return revert.Summary{}, nil, err
	}

	summary, results := exec.Run(reference, files)

	for _, res := range results {
		if err := a.history.RecordFile(runID, res); err != nil {
			a.logger.Warn("recording file outcome failed", "path", res.Path, "error", err)
		}
	}
	if err := a.history.FinishRun(runID, a.clock.Now(), summary); err != nil {
		a.logger.Warn("recording run finish failed", "run", runID, "error", err)
	}

	if !preview && a.vault != nil {
		a.uploadArchives(runStamp, results)
	}

	return summary, results, nil
}

// detectSingleReference runs detection and insists on an unambiguous
// outcome. Multiple confirmed events with differing references are an
// operator decision, never guessed at here.
func (a *App) detectSingleReference(index *revert.Index) (revert.Timepoint, error) {
	det := revert.NewDetector(index, a.cfg.Tracking.EventLog, a.cfg.Tracking.Sentinels,
		a.detectorConfig(), a.clock, a.logger)
	events, err := det.Detect()
	if err != nil {
		return revert.Timepoint{}, err
	}
	if len(events) == 0 {
		return revert.Timepoint{}, revert.ErrNoMigrationFound
	}

	reference := events[0].Reference
	var others []string
	for _, ev := range events[1:] {
		if !ev.Reference.Equal(reference) {
			others = append(others, ev.Reference.Token())
		}
	}
	if len(others) > 0 {
		return revert.Timepoint{}, fmt.Errorf("%w: candidates %s and %s; re-run with an explicit reference",
			revert.ErrAmbiguousMigration, reference.Token(), strings.Join(others, ", "))
	}
	return reference, nil
}

// uploadArchives ships this run's displaced originals to the retention
// vault, best-effort: a failed upload never fails the restore that already
// happened.
func (a *App) uploadArchives(runStamp revert.Timepoint, results []revert.FileResult) {
	for _, res := range results {
		if res.Outcome != revert.OutcomeRestored || res.Archive == "" {
			continue
		}
		key := a.cfg.HostID + "/" + runStamp.Token() + "/" + filepath.Base(res.Archive)
		if err := a.uploadOne(key, res.Archive); err != nil {
			a.logger.Warn("archive upload failed", "path", res.Archive, "error", err)
			continue
		}
		a.logger.Info("archive uploaded", "key", key)
	}
}

// uploadOne uploads a single archive, encrypting it first when retention
// is configured that way.
func (a *App) uploadOne(key, path string) error {
	if !a.cfg.Retention.Encrypt {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat archive: %w", err)
		}
		return a.vault.PutArchive(key, f, info.Size())
	}

	// Encrypted: the ciphertext size is unknown up front, so encrypt to a
	// temp file first and upload that.
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "dbrevert-upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := a.encryptor.Encrypt(src, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encrypting archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	enc, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("reopening encrypted archive: %w", err)
	}
	defer enc.Close()

	info, err := enc.Stat()
	if err != nil {
		return fmt.Errorf("stat encrypted archive: %w", err)
	}
	return a.vault.PutArchive(key+".age", enc, info.Size())
}

// Runs returns the most recent audit records, newest first.
func (a *App) Runs(limit int) ([]revert.RunRecord, error) {
	return a.history.Runs(limit)
}

// SetupKeys generates the archive-encryption key pair.
func (a *App) SetupKeys(passphrase string) error {
	if a.encryptor.IsConfigured() {
		return errors.New("encryption keys already exist")
	}
	return a.encryptor.Setup(passphrase)
}

// Close releases the history store and log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.history.Close(); err != nil {
		firstErr = fmt.Errorf("closing history store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
