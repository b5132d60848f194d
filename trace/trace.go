// Package trace records SQL statements run against the records store.
//
// It registers a "sqlite-trace" driver wrapping modernc.org/sqlite. Every
// Exec and Query is logged through slog (Debug, Warn when slower than
// SlowQuery, Error on failure) and, when a Recorder is installed, queued
// for async persistence:
//
//	traceDB, _ := dbopen.Open("metrics.db", dbopen.WithSchema(trace.Schema))
//	rec := trace.NewStore(traceDB)
//	trace.SetStore(rec)
//	db, _ := dbopen.Open("corona.db", dbopen.WithDriver(trace.DriverName))
//
// The trace database itself must use the plain "sqlite" driver. Entries
// carry the collection run ID found in the statement context.
package trace

import (
	"database/sql"
	"sync"
	"time"

	sqlite "modernc.org/sqlite"
)

// DriverName is the database/sql name of the tracing driver.
const DriverName = "sqlite-trace"

// SlowQuery is the duration above which a statement is logged at Warn.
const SlowQuery = 100 * time.Millisecond

// Entry is a single SQL trace record.
type Entry struct {
	RunID      string
	Op         string // "Exec" or "Query"
	Query      string
	DurationUs int64
	Error      string
	Timestamp  int64 // unix microseconds
}

// Recorder persists trace entries.
type Recorder interface {
	RecordAsync(e *Entry)
	Close() error
}

var (
	globalStore Recorder
	storeMu     sync.RWMutex
)

// SetStore installs the process-wide recorder. nil disables persistence.
func SetStore(s Recorder) {
	storeMu.Lock()
	globalStore = s
	storeMu.Unlock()
}

func getStore() Recorder {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return globalStore
}

func init() {
	sql.Register(DriverName, &TracingDriver{Driver: &sqlite.Driver{}})
}
