package trace

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Schema is the sql_traces table. It lives in the metrics database.
const Schema = `
CREATE TABLE IF NOT EXISTS sql_traces (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT,
	op          TEXT NOT NULL,
	query       TEXT NOT NULL,
	duration_us INTEGER NOT NULL,
	error       TEXT,
	timestamp   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sql_traces_ts ON sql_traces(timestamp);
CREATE INDEX IF NOT EXISTS idx_sql_traces_run ON sql_traces(run_id) WHERE run_id != '';
`

const (
	bufferSize = 1024
	batchSize  = 64
)

// Store persists entries to sql_traces in batches. Its database must be
// opened with the plain "sqlite" driver.
type Store struct {
	db   *sql.DB
	ch   chan *Entry
	done chan struct{}
	once sync.Once
}

// NewStore starts the flush loop. The schema must already exist.
func NewStore(db *sql.DB) *Store {
	s := &Store{
		db:   db,
		ch:   make(chan *Entry, bufferSize),
		done: make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// RecordAsync queues e. It never blocks; entries are dropped when the
// buffer is full.
func (s *Store) RecordAsync(e *Entry) {
	select {
	case s.ch <- e:
	default:
	}
}

// Close drains the buffer and stops the flush loop.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	return nil
}

// RunEntries returns the statements traced for runID, slowest first.
func (s *Store) RunEntries(ctx context.Context, runID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, op, query, duration_us, COALESCE(error, ''), timestamp
		FROM sql_traces WHERE run_id = ?
		ORDER BY duration_us DESC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("trace: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RunID, &e.Op, &e.Query, &e.DurationUs, &e.Error, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("trace: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]*Entry, 0, batchSize)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-s.ch:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= batchSize {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []*Entry) {
	if len(batch) == 0 {
		return
	}
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("trace: begin tx", "error", err)
		return
	}
	stmt, err := tx.Prepare(`INSERT INTO sql_traces (run_id, op, query, duration_us, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("trace: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.Exec(e.RunID, e.Op, e.Query, e.DurationUs, e.Error, e.Timestamp); err != nil {
			slog.Error("trace: insert", "error", err)
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Error("trace: commit", "error", err)
	}
}
