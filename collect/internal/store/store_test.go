package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/striezel/corona-sub001/catalog"
	"github.com/striezel/corona-sub001/dbopen"

	_ "modernc.org/sqlite"
)

var testNow = time.Date(2021, 3, 10, 18, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	s := New(db)
	s.Now = func() time.Time { return testNow }
	countries, err := catalog.Filter([]string{"BJ", "TD", "DE"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SyncCountries(context.Background(), countries); err != nil {
		t.Fatalf("sync countries: %v", err)
	}
	return s
}

func day(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func rec(date string, confirmed, deaths int64) DailyRecord {
	return DailyRecord{Date: day(date), Confirmed: confirmed, Deaths: deaths}
}

func i64(v int64) *int64 { return &v }

func countRows(t *testing.T, s *Store, table, countryID string) int {
	t.Helper()
	var n int
	if err := s.DB.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE country_id = ?", countryID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestApplySchema(t *testing.T) {
	// WHAT: Schema creates every table.
	s := openTestStore(t)
	for _, table := range []string{"countries", "daily_records", "anomalies"} {
		var name string
		if err := s.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	// WHAT: merging the same batch twice leaves exactly one row per date.
	// WHY: re-fetches of stored days happen on every Recent run.
	s := openTestStore(t)
	ctx := context.Background()
	batch := []DailyRecord{rec("2021-03-01", 10, 1), rec("2021-03-02", 12, 1)}

	first, err := s.Upsert(ctx, "BJ", batch)
	if err != nil {
		t.Fatal(err)
	}
	if first.Inserted != 2 || first.Written() != 2 {
		t.Fatalf("first merge = %+v", first)
	}

	second, err := s.Upsert(ctx, "BJ", batch)
	if err != nil {
		t.Fatal(err)
	}
	if second.Written() != 0 || second.Unchanged != 2 || len(second.Anomalies) != 0 {
		t.Fatalf("second merge = %+v", second)
	}
	if n := countRows(t, s, "daily_records", "BJ"); n != 2 {
		t.Fatalf("rows = %d, want 2", n)
	}
}

func TestUpsert_RowCountEqualsDistinctDates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	batches := [][]DailyRecord{
		{rec("2021-03-01", 1, 0), rec("2021-03-02", 2, 0)},
		{rec("2021-03-02", 3, 0), rec("2021-03-03", 4, 0)},
		{rec("2021-02-27", 0, 0), rec("2021-03-03", 4, 0)},
		{rec("2021-03-05", 6, 0), rec("2021-03-05", 7, 0)},
	}
	distinct := map[string]bool{}
	for _, b := range batches {
		for _, r := range b {
			distinct[r.Date.Format(DateLayout)] = true
		}
		if _, err := s.Upsert(ctx, "TD", b); err != nil {
			t.Fatal(err)
		}
	}
	if n := countRows(t, s, "daily_records", "TD"); n != len(distinct) {
		t.Fatalf("rows = %d, want %d", n, len(distinct))
	}
}

func TestUpsert_UpdatesChangedValues(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.Upsert(ctx, "DE", []DailyRecord{rec("2021-03-01", 100, 5)}); err != nil {
		t.Fatal(err)
	}

	withRecovered := rec("2021-03-01", 100, 5)
	withRecovered.Recovered = i64(40)
	res, err := s.Upsert(ctx, "DE", []DailyRecord{withRecovered})
	if err != nil {
		t.Fatal(err)
	}
	// WHAT: recovered going from unknown to known counts as a change.
	if res.Updated != 1 {
		t.Fatalf("merge = %+v, want one update", res)
	}

	got, err := s.Records(ctx, "DE")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Recovered == nil || *got[0].Recovered != 40 {
		t.Fatalf("records = %+v", got)
	}
}

func TestUpsert_RevisionDecreaseStoredAndFlagged(t *testing.T) {
	// WHAT: a lower value for a stored date is written and reported.
	// WHY: corrections must stay auditable, never silently dropped.
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.Upsert(ctx, "BJ", []DailyRecord{rec("2021-03-01", 100, 5)}); err != nil {
		t.Fatal(err)
	}

	res, err := s.Upsert(ctx, "BJ", []DailyRecord{rec("2021-03-01", 90, 5)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Updated != 1 {
		t.Fatalf("merge = %+v", res)
	}
	if len(res.Anomalies) != 1 {
		t.Fatalf("anomalies = %+v, want 1", res.Anomalies)
	}
	a := res.Anomalies[0]
	if a.Kind != RevisionDecrease || a.Field != "confirmed" || a.Previous != 100 || a.Current != 90 {
		t.Fatalf("anomaly = %+v", a)
	}

	got, _ := s.Records(ctx, "BJ")
	if got[0].Confirmed != 90 {
		t.Fatalf("stored confirmed = %d, want 90", got[0].Confirmed)
	}
	stored, err := s.Anomalies(ctx, "BJ")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].Kind != RevisionDecrease || stored[0].Record.Confirmed != 90 {
		t.Fatalf("stored anomalies = %+v", stored)
	}
}

func TestAnomalies_KeepFlaggedRecord(t *testing.T) {
	// WHAT: a stored anomaly reports the record as it was when flagged.
	// WHY: a later revision of the same date must not rewrite the audit row.
	s := openTestStore(t)
	ctx := context.Background()
	first := rec("2021-03-01", 100, 5)
	first.Recovered = i64(40)
	if _, err := s.Upsert(ctx, "BJ", []DailyRecord{first}); err != nil {
		t.Fatal(err)
	}
	lowered := rec("2021-03-01", 90, 5)
	lowered.Recovered = i64(41)
	if _, err := s.Upsert(ctx, "BJ", []DailyRecord{lowered}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Upsert(ctx, "BJ", []DailyRecord{rec("2021-03-01", 120, 7)}); err != nil {
		t.Fatal(err)
	}

	stored, err := s.Anomalies(ctx, "BJ")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored anomalies = %+v, want 1", stored)
	}
	r := stored[0].Record
	if r.CountryID != "BJ" || !r.Date.Equal(day("2021-03-01")) || r.Confirmed != 90 || r.Deaths != 5 {
		t.Fatalf("record = %+v", r)
	}
	if r.Recovered == nil || *r.Recovered != 41 {
		t.Fatalf("recovered = %v, want 41", r.Recovered)
	}
}

func TestUpsert_SeriesDecreaseFlagged(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.Upsert(ctx, "TD", []DailyRecord{rec("2021-03-01", 100, 10)}); err != nil {
		t.Fatal(err)
	}

	// WHAT: the stored predecessor is used for the first new day.
	res, err := s.Upsert(ctx, "TD", []DailyRecord{rec("2021-03-02", 95, 10), rec("2021-03-03", 96, 9)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 2 {
		t.Fatalf("merge = %+v", res)
	}
	if len(res.Anomalies) != 2 {
		t.Fatalf("anomalies = %+v, want 2", res.Anomalies)
	}
	if a := res.Anomalies[0]; a.Kind != SeriesDecrease || a.Field != "confirmed" || a.Previous != 100 {
		t.Fatalf("first anomaly = %+v", a)
	}
	if a := res.Anomalies[1]; a.Kind != SeriesDecrease || a.Field != "deaths" || a.Previous != 10 || a.Current != 9 {
		t.Fatalf("second anomaly = %+v", a)
	}

	// WHAT: re-merging the same data writes and flags nothing.
	again, err := s.Upsert(ctx, "TD", []DailyRecord{rec("2021-03-02", 95, 10), rec("2021-03-03", 96, 9)})
	if err != nil {
		t.Fatal(err)
	}
	if again.Written() != 0 || len(again.Anomalies) != 0 {
		t.Fatalf("re-merge = %+v", again)
	}
	if n := countRows(t, s, "anomalies", "TD"); n != 2 {
		t.Fatalf("anomaly rows = %d, want 2", n)
	}
}

func TestUpsert_SkipsFutureDates(t *testing.T) {
	s := openTestStore(t)
	res, err := s.Upsert(context.Background(), "BJ", []DailyRecord{
		rec("2021-03-10", 5, 0), // today
		rec("2021-03-11", 6, 0),
		rec("2022-01-01", 7, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 1 || res.SkippedFuture != 2 {
		t.Fatalf("merge = %+v", res)
	}
	last, ok, _ := s.LastKnownDate(context.Background(), "BJ")
	if !ok || !last.Equal(day("2021-03-10")) {
		t.Fatalf("last = %v, %v", last, ok)
	}
}

func TestUpsert_ConstraintRollsBackBatch(t *testing.T) {
	// WHAT: a constraint failure rejects the whole batch.
	// WHY: a country must never be half-written relative to its own batch.
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, "BJ", []DailyRecord{rec("2021-03-01", 1, 0), rec("2021-03-02", -5, 0)})
	if err == nil {
		t.Fatal("expected error for negative count")
	}
	if !IsConstraint(err) || IsIO(err) {
		t.Fatalf("err = %v, want constraint", err)
	}
	if n := countRows(t, s, "daily_records", "BJ"); n != 0 {
		t.Fatalf("rows after rollback = %d, want 0", n)
	}
}

func TestUpsert_UnregisteredCountryIsConstraint(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Upsert(context.Background(), "FR", []DailyRecord{rec("2021-03-01", 1, 0)})
	if !IsConstraint(err) {
		t.Fatalf("err = %v, want constraint", err)
	}
}

func TestUpsert_ClosedDatabaseIsIO(t *testing.T) {
	s := openTestStore(t)
	s.DB.Close()
	_, err := s.Upsert(context.Background(), "BJ", []DailyRecord{rec("2021-03-01", 1, 0)})
	if !IsIO(err) {
		t.Fatalf("err = %v, want io", err)
	}
}

func TestUpsert_EmptyBatch(t *testing.T) {
	s := openTestStore(t)
	res, err := s.Upsert(context.Background(), "BJ", nil)
	if err != nil || res.Written() != 0 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestLastKnownDate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, ok, err := s.LastKnownDate(ctx, "DE"); err != nil || ok {
		t.Fatalf("empty: ok=%v err=%v", ok, err)
	}
	s.Upsert(ctx, "DE", []DailyRecord{rec("2021-03-03", 3, 0), rec("2021-03-01", 1, 0)})
	last, ok, err := s.LastKnownDate(ctx, "DE")
	if err != nil || !ok || !last.Equal(day("2021-03-03")) {
		t.Fatalf("last=%v ok=%v err=%v", last, ok, err)
	}
}

func TestSyncCountries_Unchanged(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	var before int64
	s.DB.QueryRow("SELECT updated_at FROM countries WHERE country_id = 'BJ'").Scan(&before)

	s.Now = func() time.Time { return testNow.Add(time.Hour) }
	countries, _ := catalog.Filter([]string{"BJ", "TD", "DE"})
	if err := s.SyncCountries(ctx, countries); err != nil {
		t.Fatal(err)
	}
	var after int64
	s.DB.QueryRow("SELECT updated_at FROM countries WHERE country_id = 'BJ'").Scan(&after)
	if before != after {
		t.Fatalf("unchanged country rewritten: %d -> %d", before, after)
	}

	got, err := s.Countries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != "BJ" || got[0].Continent != catalog.Africa {
		t.Fatalf("countries = %+v", got)
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.Upsert(ctx, "BJ", []DailyRecord{rec("2021-03-01", 5, 0), rec("2021-03-02", 4, 0)})
	s.Upsert(ctx, "TD", []DailyRecord{rec("2021-03-02", 1, 0)})

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Countries != 3 || st.Records != 3 || st.CountriesWithData != 2 || st.Anomalies != 1 {
		t.Fatalf("stats = %+v", st)
	}
	bj := st.PerCountry[0]
	if bj.CountryID != "BJ" || bj.Records != 2 || bj.FirstDate != "2021-03-01" || bj.LastDate != "2021-03-02" || bj.Anomalies != 1 {
		t.Fatalf("BJ stat = %+v", bj)
	}
}

func TestEngineVersion(t *testing.T) {
	s := openTestStore(t)
	v, err := s.EngineVersion(context.Background())
	if err != nil || v == "" {
		t.Fatalf("version=%q err=%v", v, err)
	}
}

func TestDailyRecord_JSON(t *testing.T) {
	r := DailyRecord{CountryID: "BJ", Date: day("2021-03-01"), Confirmed: 3, Deaths: 1}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"country_id":"BJ","date":"2021-03-01","confirmed":3,"deaths":1,"recovered":null}` {
		t.Fatalf("json = %s", b)
	}
	var back DailyRecord
	if err := json.Unmarshal(b, &back); err != nil || !back.Date.Equal(r.Date) {
		t.Fatalf("round trip = %+v, %v", back, err)
	}
}
