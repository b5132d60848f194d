package trace

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/striezel/corona-sub001/dbopen"
	"github.com/striezel/corona-sub001/kit"

	_ "modernc.org/sqlite"
)

func setupTraceDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
}

func countTraces(t *testing.T, db *sql.DB, where string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sql_traces "+where, args...).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestStore_RecordAsync_And_Close(t *testing.T) {
	db := setupTraceDB(t)
	store := NewStore(db)

	for range 10 {
		store.RecordAsync(&Entry{
			RunID:      "run_1",
			Op:         "Query",
			Query:      "SELECT 1",
			DurationUs: 42,
			Timestamp:  time.Now().UnixMicro(),
		})
	}
	// Close flushes.
	store.Close()

	if n := countTraces(t, db, "WHERE run_id = ?", "run_1"); n != 10 {
		t.Fatalf("trace count: got %d, want 10", n)
	}
}

func TestStore_BatchFlush(t *testing.T) {
	db := setupTraceDB(t)
	store := NewStore(db)

	// Beyond one batch.
	for range 100 {
		store.RecordAsync(&Entry{Op: "Exec", Query: "INSERT INTO t VALUES (?)", Timestamp: time.Now().UnixMicro()})
	}
	store.Close()

	if n := countTraces(t, db, ""); n != 100 {
		t.Fatalf("total traces: got %d, want 100", n)
	}
}

func TestStore_RunEntries(t *testing.T) {
	db := setupTraceDB(t)
	store := NewStore(db)
	store.RecordAsync(&Entry{RunID: "run_1", Op: "Exec", Query: "fast", DurationUs: 5})
	store.RecordAsync(&Entry{RunID: "run_1", Op: "Exec", Query: "bad sql", DurationUs: 900, Error: "syntax error"})
	store.RecordAsync(&Entry{RunID: "run_2", Op: "Query", Query: "other", DurationUs: 1})
	store.Close()

	got, err := store.RunEntries(context.Background(), "run_1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Query != "bad sql" || got[0].Error != "syntax error" || got[1].Query != "fast" {
		t.Fatalf("entries = %+v", got)
	}
}

func TestSetStore(t *testing.T) {
	if s := getStore(); s != nil {
		t.Fatal("expected nil store initially")
	}
	store := NewStore(setupTraceDB(t))
	defer store.Close()

	SetStore(store)
	if s := getStore(); s != store {
		t.Fatal("getStore did not return set store")
	}
	SetStore(nil)
	if s := getStore(); s != nil {
		t.Fatal("expected nil after reset")
	}
}

func TestDriverRegistered(t *testing.T) {
	for _, d := range sql.Drivers() {
		if d == DriverName {
			return
		}
	}
	t.Fatalf("%s driver not registered", DriverName)
}

func TestTracingDriver_RecordsRunID(t *testing.T) {
	// WHAT: statements through the tracing driver land in sql_traces tagged
	// with the run ID of their context; pragmas are skipped.
	traceDB := setupTraceDB(t)
	store := NewStore(traceDB)
	SetStore(store)
	defer SetStore(nil)

	db := dbopen.OpenMemory(t, dbopen.WithDriver(DriverName))
	ctx := kit.WithRunID(context.Background(), "run_7")
	if _, err := db.ExecContext(ctx, "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO t VALUES (?)", 1); err != nil {
		t.Fatal(err)
	}
	var val int
	if err := db.QueryRowContext(ctx, "SELECT id FROM t").Scan(&val); err != nil || val != 1 {
		t.Fatalf("query: %d, %v", val, err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO missing VALUES (1)"); err == nil {
		t.Fatal("insert into missing table succeeded")
	}

	SetStore(nil)
	store.Close()

	if n := countTraces(t, traceDB, "WHERE run_id = 'run_7'"); n < 3 {
		t.Fatalf("traced statements for run_7 = %d, want >= 3", n)
	}
	if n := countTraces(t, traceDB, "WHERE query LIKE 'PRAGMA %'"); n != 0 {
		t.Fatalf("pragmas traced: %d", n)
	}
	if n := countTraces(t, traceDB, "WHERE run_id = 'run_7' AND op = 'Query'"); n != 1 {
		t.Fatalf("traced queries = %d, want 1", n)
	}
}
