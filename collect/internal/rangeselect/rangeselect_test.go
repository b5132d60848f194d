package rangeselect

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSelect(t *testing.T) {
	now := time.Date(2021, 3, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		requested Mode
		last      time.Time
		known     bool
		max       int
		want      Range
	}{
		{"all stays all", All, day("2021-03-09"), true, 60, Range{Mode: All}},
		{"all without history", All, time.Time{}, false, 60, Range{Mode: All}},
		{"bootstrap recent without history", Recent, time.Time{}, false, 60, Range{Mode: All}},
		{"recent overlaps last day", Recent, day("2021-03-08"), true, 60, Range{Mode: Recent, Since: day("2021-03-08")}},
		{"recent same day", Recent, day("2021-03-10"), true, 60, Range{Mode: Recent, Since: day("2021-03-10")}},
		{"gap beyond window escalates", Recent, day("2020-12-01"), true, 60, Range{Mode: All}},
		{"gap exactly at window", Recent, day("2021-01-10"), true, 60, Range{Mode: Recent, Since: day("2021-01-10")}},
		{"window disabled", Recent, day("2020-01-01"), true, 0, Range{Mode: Recent, Since: day("2020-01-01")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(tt.requested, tt.last, tt.known, now, tt.max)
			if got.Mode != tt.want.Mode || !got.Since.Equal(tt.want.Since) {
				t.Fatalf("Select = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRange_Days(t *testing.T) {
	now := time.Date(2021, 3, 10, 23, 59, 0, 0, time.UTC)
	if d := (Range{Mode: Recent, Since: day("2021-03-08")}).Days(now); d != 3 {
		t.Fatalf("Days = %d, want 3", d)
	}
	// WHAT: a since in the future still asks for one day.
	if d := (Range{Mode: Recent, Since: day("2021-03-12")}).Days(now); d != 1 {
		t.Fatalf("Days = %d, want 1", d)
	}
	if d := (Range{Mode: All}).Days(now); d != 0 {
		t.Fatalf("All Days = %d, want 0", d)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"recent": Recent, "all": All} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	// WHAT: only the two mode names parse; defaults belong to the caller.
	for _, in := range []string{"weekly", "", "full", "ALL", " all "} {
		if _, err := ParseMode(in); err == nil {
			t.Errorf("ParseMode(%q) accepted", in)
		}
	}
	if All.String() != "all" || Recent.String() != "recent" {
		t.Fatal("String mismatch")
	}
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	in := time.Date(2021, 3, 10, 8, 0, 0, 0, loc) // 2021-03-09 22:00 UTC
	if got := Day(in); !got.Equal(day("2021-03-09")) {
		t.Fatalf("Day = %v", got)
	}
}
