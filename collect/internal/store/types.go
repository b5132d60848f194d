package store

import (
	"encoding/json"
	"time"
)

// DateLayout is the on-disk and wire format of record dates.
const DateLayout = "2006-01-02"

// DailyRecord is one day of cumulative counts for one country.
type DailyRecord struct {
	CountryID string
	Date      time.Time // midnight UTC
	Confirmed int64
	Deaths    int64
	Recovered *int64 // nil when the upstream does not report it
}

type recordJSON struct {
	CountryID string `json:"country_id"`
	Date      string `json:"date"`
	Confirmed int64  `json:"confirmed"`
	Deaths    int64  `json:"deaths"`
	Recovered *int64 `json:"recovered"`
}

// MarshalJSON renders Date as YYYY-MM-DD.
func (r DailyRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		CountryID: r.CountryID,
		Date:      r.Date.Format(DateLayout),
		Confirmed: r.Confirmed,
		Deaths:    r.Deaths,
		Recovered: r.Recovered,
	})
}

func (r *DailyRecord) UnmarshalJSON(b []byte) error {
	var j recordJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	d, err := time.Parse(DateLayout, j.Date)
	if err != nil {
		return err
	}
	*r = DailyRecord{CountryID: j.CountryID, Date: d, Confirmed: j.Confirmed, Deaths: j.Deaths, Recovered: j.Recovered}
	return nil
}

// sameCounts reports whether r and o carry identical values.
func (r DailyRecord) sameCounts(o DailyRecord) bool {
	if r.Confirmed != o.Confirmed || r.Deaths != o.Deaths {
		return false
	}
	if (r.Recovered == nil) != (o.Recovered == nil) {
		return false
	}
	return r.Recovered == nil || *r.Recovered == *o.Recovered
}

// AnomalyKind classifies a flagged decrease.
type AnomalyKind string

const (
	// RevisionDecrease: an overwrite lowered the value stored for that date.
	RevisionDecrease AnomalyKind = "revision_decrease"
	// SeriesDecrease: the written value is below the preceding day's value.
	SeriesDecrease AnomalyKind = "series_decrease"
)

// Anomaly is a decrease of a cumulative counter observed during a merge.
// The record is stored regardless.
type Anomaly struct {
	Record   DailyRecord `json:"record"`
	Kind     AnomalyKind `json:"kind"`
	Field    string      `json:"field"` // "confirmed" or "deaths"
	Previous int64       `json:"previous"`
	Current  int64       `json:"current"`
}

// MergeResult summarises one Upsert batch.
type MergeResult struct {
	Inserted      int       `json:"inserted"`
	Updated       int       `json:"updated"`
	Unchanged     int       `json:"unchanged"`
	SkippedFuture int       `json:"skipped_future"`
	Anomalies     []Anomaly `json:"anomalies,omitempty"`
}

// Written is the number of rows the batch inserted or changed.
func (m *MergeResult) Written() int { return m.Inserted + m.Updated }

// CountryStat summarises the stored history of one country.
type CountryStat struct {
	CountryID string `json:"country_id"`
	Records   int    `json:"records"`
	FirstDate string `json:"first_date"`
	LastDate  string `json:"last_date"`
	Anomalies int    `json:"anomalies"`
}

// Stats summarises the whole store.
type Stats struct {
	Countries         int           `json:"countries"`
	CountriesWithData int           `json:"countries_with_data"`
	Records           int           `json:"records"`
	Anomalies         int           `json:"anomalies"`
	PerCountry        []CountryStat `json:"per_country"`
}
