package collect

import (
	"fmt"
	"time"

	"github.com/striezel/corona-sub001/collect/internal/rangeselect"
	"github.com/striezel/corona-sub001/collect/internal/store"
)

// Mode is the requested collection mode.
type Mode = rangeselect.Mode

const (
	Recent = rangeselect.Recent
	All    = rangeselect.All
)

// ParseMode accepts "recent" or "all".
func ParseMode(s string) (Mode, error) {
	m, err := rangeselect.ParseMode(s)
	if err != nil {
		return m, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

type (
	DailyRecord = store.DailyRecord
	Anomaly     = store.Anomaly
	Stats       = store.Stats
)

// Status is the outcome class of one country.
type Status int

const (
	StatusSuccess Status = iota
	StatusPartialFailure
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPartialFailure:
		return "partial_failure"
	case StatusFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Outcome is the result of collecting one country in one run.
type Outcome struct {
	CountryID      string        `json:"country_id"`
	Name           string        `json:"name"`
	Status         Status        `json:"status"`
	Mode           Mode          `json:"mode"` // range actually fetched
	RecordsWritten int           `json:"records_written"`
	Attempts       int           `json:"attempts"`
	Anomalies      int           `json:"anomalies"`
	Reason         string        `json:"reason,omitempty"`
	Duration       time.Duration `json:"duration_ns"`

	anomalies []Anomaly
}

// Failure names a country and why it failed.
type Failure struct {
	CountryID string `json:"country_id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
}

// RunReport aggregates the outcomes of one Collect call. Outcomes are in
// catalog order regardless of completion order.
type RunReport struct {
	RunID               string    `json:"run_id"`
	Mode                Mode      `json:"mode"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
	Warnings            []string  `json:"warnings,omitempty"`
	Succeeded           int       `json:"succeeded"`
	PartialFailures     []Failure `json:"partial_failures"`
	TotalRecordsWritten int       `json:"total_records_written"`
	Anomalies           []Anomaly `json:"anomalies"`
	Fatal               *Failure  `json:"fatal,omitempty"`
	Cancelled           bool      `json:"cancelled,omitempty"`
	NotStarted          []string  `json:"not_started,omitempty"` // country ids skipped after abort or cancel
	Outcomes            []Outcome `json:"outcomes"`
}

// Outcome returns the outcome of countryID, if it was attempted.
func (r *RunReport) Outcome(countryID string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.CountryID == countryID {
			return o, true
		}
	}
	return Outcome{}, false
}
