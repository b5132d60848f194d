package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/striezel/corona-sub001/dbopen"
)

// Upsert merges one country's batch in a single transaction: either every
// row of the batch is committed or none is.
//
// A record for a new date is inserted; a record whose counts differ from the
// stored row overwrites it; an identical record is a no-op. Records dated
// after today (UTC, per s.Now) are skipped. Duplicate dates in the batch
// collapse to the last one given.
//
// Decreases of confirmed or deaths are stored anyway and reported as
// anomalies, both against the stored value for the same date and against
// the preceding day. Only written records are flagged, so re-merging
// unchanged data reports nothing.
func (s *Store) Upsert(ctx context.Context, countryID string, records []DailyRecord) (*MergeResult, error) {
	op := "upsert " + countryID
	res := &MergeResult{}

	now := s.now()
	today := dayOf(now)
	batch := make(map[string]DailyRecord, len(records))
	for _, r := range records {
		r.CountryID = countryID
		r.Date = dayOf(r.Date)
		if r.Date.After(today) {
			res.SkippedFuture++
			continue
		}
		batch[r.Date.Format(DateLayout)] = r
	}
	if len(batch) == 0 {
		return res, nil
	}
	dates := make([]string, 0, len(batch))
	for d := range batch {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	s.mu.Lock()
	defer s.mu.Unlock()

	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		*res = MergeResult{SkippedFuture: res.SkippedFuture}

		stored, err := loadRange(ctx, tx, countryID, dates[0], dates[len(dates)-1])
		if err != nil {
			return err
		}
		prev, hasPrev, err := loadBefore(ctx, tx, countryID, dates[0])
		if err != nil {
			return err
		}

		// Walk the union of stored and incoming dates so that series
		// decreases are measured against the effective preceding day.
		union := make([]string, 0, len(dates)+len(stored))
		union = append(union, dates...)
		for d := range stored {
			if _, ok := batch[d]; !ok {
				union = append(union, d)
			}
		}
		sort.Strings(union)

		ins, err := tx.PrepareContext(ctx, `
			INSERT INTO daily_records (country_id, date, confirmed, deaths, recovered, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer ins.Close()
		upd, err := tx.PrepareContext(ctx, `
			UPDATE daily_records SET confirmed = ?, deaths = ?, recovered = ?, updated_at = ?
			WHERE country_id = ? AND date = ?`)
		if err != nil {
			return err
		}
		defer upd.Close()

		ts := now.Unix()
		for _, d := range union {
			rec, incoming := batch[d]
			old, exists := stored[d]
			if !incoming {
				prev, hasPrev = old, true
				continue
			}

			written := false
			switch {
			case !exists:
				if _, err := ins.ExecContext(ctx, countryID, d, rec.Confirmed, rec.Deaths, nullInt(rec.Recovered), ts); err != nil {
					return fmt.Errorf("insert %s: %w", d, err)
				}
				res.Inserted++
				written = true
			case !rec.sameCounts(old):
				if _, err := upd.ExecContext(ctx, rec.Confirmed, rec.Deaths, nullInt(rec.Recovered), ts, countryID, d); err != nil {
					return fmt.Errorf("update %s: %w", d, err)
				}
				res.Updated++
				written = true
				res.Anomalies = appendDecreases(res.Anomalies, RevisionDecrease, rec, old)
			default:
				res.Unchanged++
			}
			if written && hasPrev {
				res.Anomalies = appendDecreases(res.Anomalies, SeriesDecrease, rec, prev)
			}
			prev, hasPrev = rec, true
		}

		return insertAnomalies(ctx, tx, res.Anomalies, ts)
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	return res, nil
}

// appendDecreases flags each cumulative field of cur that is below ref.
func appendDecreases(dst []Anomaly, kind AnomalyKind, cur, ref DailyRecord) []Anomaly {
	if cur.Confirmed < ref.Confirmed {
		dst = append(dst, Anomaly{Record: cur, Kind: kind, Field: "confirmed", Previous: ref.Confirmed, Current: cur.Confirmed})
	}
	if cur.Deaths < ref.Deaths {
		dst = append(dst, Anomaly{Record: cur, Kind: kind, Field: "deaths", Previous: ref.Deaths, Current: cur.Deaths})
	}
	return dst
}

func insertAnomalies(ctx context.Context, tx *sql.Tx, anomalies []Anomaly, ts int64) error {
	for _, a := range anomalies {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO anomalies (country_id, date, kind, field, previous, current,
			                       confirmed, deaths, recovered, detected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.Record.CountryID, a.Record.Date.Format(DateLayout), string(a.Kind), a.Field, a.Previous, a.Current,
			a.Record.Confirmed, a.Record.Deaths, nullInt(a.Record.Recovered), ts)
		if err != nil {
			return fmt.Errorf("insert anomaly: %w", err)
		}
	}
	return nil
}

func loadRange(ctx context.Context, tx *sql.Tx, countryID, from, to string) (map[string]DailyRecord, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT country_id, date, confirmed, deaths, recovered FROM daily_records
		WHERE country_id = ? AND date BETWEEN ? AND ?`, countryID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]DailyRecord)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out[r.Date.Format(DateLayout)] = r
	}
	return out, rows.Err()
}

func loadBefore(ctx context.Context, tx *sql.Tx, countryID, date string) (DailyRecord, bool, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT country_id, date, confirmed, deaths, recovered FROM daily_records
		WHERE country_id = ? AND date < ? ORDER BY date DESC LIMIT 1`, countryID, date)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return DailyRecord{}, false, nil
	}
	if err != nil {
		return DailyRecord{}, false, err
	}
	return r, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (DailyRecord, error) {
	var (
		r         DailyRecord
		date      string
		recovered sql.NullInt64
	)
	if err := sc.Scan(&r.CountryID, &date, &r.Confirmed, &r.Deaths, &recovered); err != nil {
		return r, err
	}
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return r, fmt.Errorf("bad stored date %q: %w", date, err)
	}
	r.Date = d
	if recovered.Valid {
		v := recovered.Int64
		r.Recovered = &v
	}
	return r, nil
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
