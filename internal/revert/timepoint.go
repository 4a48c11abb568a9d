package revert

import (
	"fmt"
	"regexp"
	"time"
)

// TokenLayout is the time.Format layout matching the backup token shape.
const TokenLayout = "20060102_150405"

// tokenPattern is checked before any numeric decoding so that a token of the
// wrong shape is rejected as a format error, not a range error.
var tokenPattern = regexp.MustCompile(`^\d{8}_\d{6}$`)

// Timepoint is a calendar instant truncated to whole seconds, carried on the
// wire as the 15-character token YYYYMMDD_HHMMSS. Immutable once parsed.
type Timepoint struct {
	t time.Time
}

// ParseTimepoint decodes and validates a timepoint token. label names the
// call site (a file path, a flag name) so that failures from different
// callers stay attributable. now anchors the future-dated check: tokens more
// than one day ahead of it are rejected, tolerating clock skew but catching
// corrupted or mistyped tokens.
//
// Decoding never normalizes: month 13 or Feb 30 is an error, not January or
// March 2 of the following period.
func ParseTimepoint(token, label string, now time.Time) (Timepoint, error) {
	if !tokenPattern.MatchString(token) {
		return Timepoint{}, fmt.Errorf("%s: %w: %q", label, ErrBadFormat, token)
	}

	// The pattern guarantees pure digits, so Atoi-style decoding cannot fail;
	// slice out the fields directly.
	year := numField(token[0:4])
	month := numField(token[4:6])
	day := numField(token[6:8])
	hour := numField(token[9:11])
	minute := numField(token[11:13])
	second := numField(token[13:15])

	switch {
	case year < 2000 || year > 2100:
		return Timepoint{}, fmt.Errorf("%s: %w: year %d in %q", label, ErrOutOfRange, year, token)
	case month < 1 || month > 12:
		return Timepoint{}, fmt.Errorf("%s: %w: month %d in %q", label, ErrOutOfRange, month, token)
	case day < 1 || day > daysIn(year, month):
		return Timepoint{}, fmt.Errorf("%s: %w: day %d in %q", label, ErrOutOfRange, day, token)
	case hour > 23:
		return Timepoint{}, fmt.Errorf("%s: %w: hour %d in %q", label, ErrOutOfRange, hour, token)
	case minute > 59:
		return Timepoint{}, fmt.Errorf("%s: %w: minute %d in %q", label, ErrOutOfRange, minute, token)
	case second > 59:
		return Timepoint{}, fmt.Errorf("%s: %w: second %d in %q", label, ErrOutOfRange, second, token)
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
	if t.After(now.Add(24 * time.Hour)) {
		return Timepoint{}, fmt.Errorf("%s: %w: %q is more than a day in the future", label, ErrOutOfRange, token)
	}

	return Timepoint{t: t}, nil
}

// TimepointOf truncates a time to whole seconds. Used to stamp the current
// run; the result round-trips through ParseTimepoint.
func TimepointOf(t time.Time) Timepoint {
	return Timepoint{t: t.Truncate(time.Second)}
}

// Token renders the canonical 15-character form.
func (tp Timepoint) Token() string {
	return tp.t.Format(TokenLayout)
}

// Time exposes the underlying instant.
func (tp Timepoint) Time() time.Time { return tp.t }

// IsZero reports whether tp is the zero Timepoint.
func (tp Timepoint) IsZero() bool { return tp.t.IsZero() }

func (tp Timepoint) Before(other Timepoint) bool { return tp.t.Before(other.t) }
func (tp Timepoint) After(other Timepoint) bool  { return tp.t.After(other.t) }
func (tp Timepoint) Equal(other Timepoint) bool  { return tp.t.Equal(other.t) }

// Add returns a timepoint shifted by d.
func (tp Timepoint) Add(d time.Duration) Timepoint {
	return Timepoint{t: tp.t.Add(d)}
}

func (tp Timepoint) String() string { return tp.Token() }

// numField decodes a digits-only slice of the token. Input is pre-validated
// by tokenPattern.
func numField(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}

// daysIn returns the number of days in the given month, accounting for
// leap years.
func daysIn(year, month int) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
