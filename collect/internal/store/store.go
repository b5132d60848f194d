// Package store is the durable merge target of the collector: one SQLite
// database holding the country table, the daily records and the anomaly
// audit trail.
//
// Writes are serialized by a store-level mutex (SQLite has a single
// writer); reads go straight to the pool and may run concurrently.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/striezel/corona-sub001/catalog"
	"github.com/striezel/corona-sub001/dbopen"
)

// Store is the records database handle.
type Store struct {
	DB *sql.DB

	// Now is the clock used for "today" and updated_at. Defaults to time.Now.
	Now func() time.Time

	mu sync.Mutex
}

// New wraps an open database that already carries Schema.
func New(db *sql.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

// Open opens (or creates) the records database at path and applies Schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, wrap("open", err)
	}
	return New(db), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// SyncCountries registers countries, updating rows whose metadata changed.
// Unchanged rows are not written.
func (s *Store) SyncCountries(ctx context.Context, countries []catalog.Country) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().Unix()
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO countries (country_id, name, continent, upstream_key, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(country_id) DO UPDATE SET
				name = excluded.name,
				continent = excluded.continent,
				upstream_key = excluded.upstream_key,
				updated_at = excluded.updated_at
			WHERE name != excluded.name
			   OR continent != excluded.continent
			   OR upstream_key != excluded.upstream_key`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, c := range countries {
			if _, err := stmt.ExecContext(ctx, c.ID, c.Name, string(c.Continent), c.UpstreamKey, ts); err != nil {
				return fmt.Errorf("country %s: %w", c.ID, err)
			}
		}
		return nil
	})
	return wrap("sync countries", err)
}

// EngineVersion reports the SQLite library version.
func (s *Store) EngineVersion(ctx context.Context) (string, error) {
	v, err := dbopen.EngineVersion(ctx, s.DB)
	return v, wrap("engine version", err)
}
