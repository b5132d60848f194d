// Package rangeselect decides how much history to request for a country.
package rangeselect

import (
	"fmt"
	"time"
)

// Mode is both the run's requested mode and the per-country range mode.
type Mode int

const (
	Recent Mode = iota
	All
)

// DefaultMaxRecentDays bounds the catch-up window of a Recent fetch.
const DefaultMaxRecentDays = 60

func (m Mode) String() string {
	switch m {
	case Recent:
		return "recent"
	case All:
		return "all"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText lets modes appear by name in JSON and YAML.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ParseMode accepts exactly "recent" or "all".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "recent":
		return Recent, nil
	case "all":
		return All, nil
	default:
		return Recent, fmt.Errorf("rangeselect: unknown mode %q (want recent or all)", s)
	}
}

// Range is the fetch range chosen for one country.
type Range struct {
	Mode  Mode
	Since time.Time // first day to fetch; zero when Mode is All
}

// Days is the number of calendar days from Since to now inclusive, at least 1.
func (r Range) Days(now time.Time) int {
	if r.Mode == All {
		return 0
	}
	d := int(Day(now).Sub(Day(r.Since)).Hours()/24) + 1
	if d < 1 {
		d = 1
	}
	return d
}

// Select picks the range for one country. known reports whether the store
// holds any record for it; last is its newest stored date.
//
// A Recent request for a country with no history escalates to All. A known
// country is re-fetched from its last stored day, so that day is fetched
// again to absorb same-day upstream corrections. A gap wider than
// maxRecentDays also escalates to All; maxRecentDays <= 0 disables that.
func Select(requested Mode, last time.Time, known bool, now time.Time, maxRecentDays int) Range {
	if requested == All || !known {
		return Range{Mode: All}
	}
	r := Range{Mode: Recent, Since: Day(last)}
	if maxRecentDays > 0 && r.Days(now) > maxRecentDays {
		return Range{Mode: All}
	}
	return r
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
