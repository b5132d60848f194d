package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/striezel/corona-sub001/catalog"
)

// LastKnownDate returns the newest stored date for countryID. ok is false
// when the country has no records.
func (s *Store) LastKnownDate(ctx context.Context, countryID string) (last time.Time, ok bool, err error) {
	var d sql.NullString
	err = s.DB.QueryRowContext(ctx,
		`SELECT MAX(date) FROM daily_records WHERE country_id = ?`, countryID).Scan(&d)
	if err != nil {
		return time.Time{}, false, wrap("last date "+countryID, err)
	}
	if !d.Valid {
		return time.Time{}, false, nil
	}
	last, err = time.Parse(DateLayout, d.String)
	if err != nil {
		return time.Time{}, false, wrap("last date "+countryID, err)
	}
	return last, true, nil
}

// Records returns the stored series of countryID in date order.
func (s *Store) Records(ctx context.Context, countryID string) ([]DailyRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT country_id, date, confirmed, deaths, recovered FROM daily_records
		WHERE country_id = ? ORDER BY date`, countryID)
	if err != nil {
		return nil, wrap("records "+countryID, err)
	}
	defer rows.Close()

	var out []DailyRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, wrap("records "+countryID, err)
		}
		out = append(out, r)
	}
	return out, wrap("records "+countryID, rows.Err())
}

// Countries returns the registered countries ordered by id.
func (s *Store) Countries(ctx context.Context) ([]catalog.Country, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT country_id, name, continent, upstream_key FROM countries ORDER BY country_id`)
	if err != nil {
		return nil, wrap("countries", err)
	}
	defer rows.Close()

	var out []catalog.Country
	for rows.Next() {
		var c catalog.Country
		var continent string
		if err := rows.Scan(&c.ID, &c.Name, &continent, &c.UpstreamKey); err != nil {
			return nil, wrap("countries", err)
		}
		c.Continent = catalog.Continent(continent)
		out = append(out, c)
	}
	return out, wrap("countries", rows.Err())
}

// Anomalies returns the flagged merges of countryID, oldest first.
func (s *Store) Anomalies(ctx context.Context, countryID string) ([]Anomaly, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT date, kind, field, previous, current, confirmed, deaths, recovered
		FROM anomalies WHERE country_id = ? ORDER BY anomaly_id`, countryID)
	if err != nil {
		return nil, wrap("anomalies "+countryID, err)
	}
	defer rows.Close()

	var out []Anomaly
	for rows.Next() {
		var (
			a                 Anomaly
			date, kind        string
			confirmed, deaths int64
			recovered         sql.NullInt64
		)
		if err := rows.Scan(&date, &kind, &a.Field, &a.Previous, &a.Current, &confirmed, &deaths, &recovered); err != nil {
			return nil, wrap("anomalies "+countryID, err)
		}
		d, err := time.Parse(DateLayout, date)
		if err != nil {
			return nil, wrap("anomalies "+countryID, fmt.Errorf("bad date %q: %w", date, err))
		}
		a.Kind = AnomalyKind(kind)
		a.Record = DailyRecord{CountryID: countryID, Date: d, Confirmed: confirmed, Deaths: deaths}
		if recovered.Valid {
			v := recovered.Int64
			a.Record.Recovered = &v
		}
		out = append(out, a)
	}
	return out, wrap("anomalies "+countryID, rows.Err())
}

// Stats summarises the store, one CountryStat per country with data.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM countries),
		       (SELECT COUNT(*) FROM daily_records),
		       (SELECT COUNT(*) FROM anomalies)`).Scan(&st.Countries, &st.Records, &st.Anomalies)
	if err != nil {
		return nil, wrap("stats", err)
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT r.country_id, COUNT(*), MIN(r.date), MAX(r.date),
		       (SELECT COUNT(*) FROM anomalies a WHERE a.country_id = r.country_id)
		FROM daily_records r GROUP BY r.country_id ORDER BY r.country_id`)
	if err != nil {
		return nil, wrap("stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cs CountryStat
		if err := rows.Scan(&cs.CountryID, &cs.Records, &cs.FirstDate, &cs.LastDate, &cs.Anomalies); err != nil {
			return nil, wrap("stats", err)
		}
		st.PerCountry = append(st.PerCountry, cs)
	}
	st.CountriesWithData = len(st.PerCountry)
	return st, wrap("stats", rows.Err())
}
