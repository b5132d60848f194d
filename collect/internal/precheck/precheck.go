// Package precheck gates a collection run on the SQLite engine version.
package precheck

import (
	"fmt"
	"strconv"
	"strings"
)

// Level is the outcome of a check.
type Level int

const (
	LevelOK Level = iota
	LevelWarn
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelOK:
		return "ok"
	case LevelWarn:
		return "warn"
	case LevelFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// Status is the result of Check.
type Status struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// Requirements are the version thresholds. Zero values take the defaults.
type Requirements struct {
	Minimum     string // below: fatal
	Recommended string // below: warn
}

const (
	// DefaultMinimum is the first release with UPSERT (ON CONFLICT DO UPDATE).
	DefaultMinimum = "3.24.0"
	// DefaultRecommended adds RETURNING and DROP COLUMN.
	DefaultRecommended = "3.35.0"
)

// Version is a dotted engine version.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch) }

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	for _, d := range [3]int{v.Major - o.Major, v.Minor - o.Minor, v.Patch - o.Patch} {
		if d < 0 {
			return -1
		}
		if d > 0 {
			return 1
		}
	}
	return 0
}

// ParseVersion parses "3", "3.46" or "3.46.1". Extra components are ignored.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("precheck: empty version")
	}
	parts := strings.Split(s, ".")
	var nums [3]int
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("precheck: invalid version %q", s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Check compares the engine version against req. It has no side effects.
// An unparseable engine version is fatal; invalid thresholds are fatal too.
func Check(version string, req Requirements) Status {
	if req.Minimum == "" {
		req.Minimum = DefaultMinimum
	}
	if req.Recommended == "" {
		req.Recommended = DefaultRecommended
	}
	st := Status{Version: version}

	v, err := ParseVersion(version)
	if err != nil {
		st.Level = LevelFatal
		st.Message = fmt.Sprintf("cannot determine SQLite version: %v", err)
		return st
	}
	minV, err := ParseVersion(req.Minimum)
	if err != nil {
		st.Level = LevelFatal
		st.Message = fmt.Sprintf("bad minimum version: %v", err)
		return st
	}
	recV, err := ParseVersion(req.Recommended)
	if err != nil {
		st.Level = LevelFatal
		st.Message = fmt.Sprintf("bad recommended version: %v", err)
		return st
	}

	switch {
	case v.Compare(minV) < 0:
		st.Level = LevelFatal
		st.Message = fmt.Sprintf("SQLite %s is too old, at least %s is required", v, minV)
	case v.Compare(recV) < 0:
		st.Level = LevelWarn
		st.Message = fmt.Sprintf("SQLite %s is supported but %s or newer is recommended", v, recV)
	default:
		st.Level = LevelOK
		st.Message = fmt.Sprintf("SQLite %s", v)
	}
	return st
}
