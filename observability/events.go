package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/striezel/corona-sub001/idgen"
)

// Run event types.
const (
	EventRunStarted  = "run_started"
	EventRunFinished = "run_finished"
)

// RunEvent is one lifecycle event of a collection run.
type RunEvent struct {
	RunID     string
	EventType string
	Mode      string
	Details   any // marshalled to JSON; nil stores NULL
	Success   bool
	CreatedAt time.Time
}

// EventLogger writes run lifecycle events.
type EventLogger struct {
	db    *sql.DB
	newID idgen.Generator
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets the generator used for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger creates a logger backed by the observability database.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records ev. Failures are logged, never returned: a broken
// observability database must not fail a collection run.
func (l *EventLogger) LogEvent(ctx context.Context, ev RunEvent) {
	if l == nil {
		return
	}
	var details sql.NullString
	if ev.Details != nil {
		if b, err := json.Marshal(ev.Details); err == nil {
			details = sql.NullString{String: string(b), Valid: true}
		}
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO run_events (event_id, run_id, event_type, mode, details, success, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		l.newID(), ev.RunID, ev.EventType, ev.Mode, details, ev.Success, ev.CreatedAt.Unix())
	if err != nil {
		slog.Error("observability: run event failed", "error", err, "event_type", ev.EventType, "run_id", ev.RunID)
	}
}

// RunEvents returns the events of runID in insertion order.
func (l *EventLogger) RunEvents(ctx context.Context, runID string) ([]RunEvent, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, event_type, COALESCE(mode, ''), details, success, created_at
		FROM run_events WHERE run_id = ? ORDER BY created_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run events: %w", err)
	}
	defer rows.Close()

	var out []RunEvent
	for rows.Next() {
		var (
			ev      RunEvent
			details sql.NullString
			ts      int64
		)
		if err := rows.Scan(&ev.RunID, &ev.EventType, &ev.Mode, &details, &ev.Success, &ts); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		if details.Valid {
			ev.Details = json.RawMessage(details.String)
		}
		ev.CreatedAt = time.Unix(ts, 0)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Cleanup deletes metrics and events older than retentionDays and returns
// the number of rows removed.
func Cleanup(ctx context.Context, db *sql.DB, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()
	var total int64
	for _, q := range []string{
		"DELETE FROM metrics_timeseries WHERE timestamp < ?",
		"DELETE FROM run_events WHERE created_at < ?",
	} {
		res, err := db.ExecContext(ctx, q, cutoff)
		if err != nil {
			return total, fmt.Errorf("cleanup: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
