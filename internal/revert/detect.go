package revert

import (
	"sort"
	"time"
)

// DetectorConfig holds the correlation constants. The margin tolerates
// sentinel backups written just before the event-log backup due to ordering
// jitter; it is deliberately configurable rather than inferred.
type DetectorConfig struct {
	WindowDays    int // forward correlation window length
	MarginSeconds int // backward tolerance before the trigger
	MinSentinels  int // minimum corroborating sentinel backups
}

// DefaultDetectorConfig returns the standard correlation constants.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		WindowDays:    3,
		MarginSeconds: 3,
		MinSentinels:  2,
	}
}

// MigrationEvent is one confirmed corruption incident. Constructed once
// during detection and never mutated.
type MigrationEvent struct {
	// Trigger is the event-log backup timepoint that anchored the
	// correlation window.
	Trigger Timepoint

	// Reference is the earliest sentinel backup inside the window. It, not
	// the trigger, marks the moment corruption began: the first sentinel
	// failure brackets the incident most precisely.
	Reference Timepoint

	// SentinelCount is the number of corroborating sentinel backups found
	// inside the window.
	SentinelCount int

	// ReferenceSource is the path of the sentinel backup that produced the
	// reference timepoint.
	ReferenceSource string
}

// Detector correlates event-log backups with sentinel backups to decide
// whether, and when, a migration failure occurred.
type Detector struct {
	index     *Index
	eventLog  string   // logical base name of the primary event log file
	sentinels []string // logical base names opened right after app start
	cfg       DetectorConfig
	clock     Clock
	logger    Logger
}

// NewDetector creates a Detector over a built index.
func NewDetector(index *Index, eventLog string, sentinels []string, cfg DetectorConfig, clock Clock, logger Logger) *Detector {
	return &Detector{
		index:     index,
		eventLog:  eventLog,
		sentinels: sentinels,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
	}
}

// Detect returns every confirmed migration event, most recent trigger
// first. Candidates are independent: nearby triggers may confirm duplicate
// events, which are surfaced rather than merged — choosing among them is the
// operator's decision. An empty result is not an error here; callers that
// cannot proceed without an event report ErrNoMigrationFound.
func (d *Detector) Detect() ([]MigrationEvent, error) {
	now := d.clock.Now()

	triggers, err := d.eventLogTimepoints(now)
	if err != nil {
		return nil, err
	}

	var events []MigrationEvent
	for _, trigger := range triggers {
		ev, ok := d.correlate(trigger, now)
		if !ok {
			continue
		}
		d.logger.Info("migration confirmed",
			"trigger", ev.Trigger.Token(),
			"reference", ev.Reference.Token(),
			"sentinels", ev.SentinelCount)
		events = append(events, ev)
	}
	return events, nil
}

// eventLogTimepoints collects the backup timepoints of the event log file
// across all directories, sorted descending so the most recent candidate is
// examined first.
func (d *Detector) eventLogTimepoints(now time.Time) ([]Timepoint, error) {
	var tps []Timepoint
	for _, bucket := range d.index.LookupAnywhere(d.eventLog) {
		for _, rec := range bucket.Records {
			tp, err := rec.Timepoint(now)
			if err != nil {
				// A corrupt token disqualifies that one backup, not the run.
				d.logger.Warn("skipping undecodable backup token", "error", err)
				continue
			}
			tps = append(tps, tp)
		}
	}
	sort.Slice(tps, func(i, j int) bool { return tps[i].After(tps[j]) })
	return tps, nil
}

// correlate checks one candidate trigger against the sentinel set.
func (d *Detector) correlate(trigger Timepoint, now time.Time) (MigrationEvent, bool) {
	windowStart := trigger.Add(-time.Duration(d.cfg.MarginSeconds) * time.Second)
	windowEnd := trigger.Add(time.Duration(d.cfg.WindowDays) * 24 * time.Hour)

	count := 0
	var reference Timepoint
	var referenceSource string

	for _, name := range d.sentinels {
		for _, bucket := range d.index.LookupAnywhere(name) {
			for _, rec := range bucket.Records {
				tp, err := rec.Timepoint(now)
				if err != nil {
					d.logger.Warn("skipping undecodable backup token", "error", err)
					continue
				}
				if tp.Before(windowStart) || tp.After(windowEnd) {
					continue
				}
				count++
				if reference.IsZero() || tp.Before(reference) {
					reference = tp
					referenceSource = rec.Path
				}
			}
		}
	}

	if count < d.cfg.MinSentinels {
		d.logger.Debug("candidate below threshold",
			"trigger", trigger.Token(), "sentinels", count, "needed", d.cfg.MinSentinels)
		return MigrationEvent{}, false
	}

	return MigrationEvent{
		Trigger:         trigger,
		Reference:       reference,
		SentinelCount:   count,
		ReferenceSource: referenceSource,
	}, true
}
