package dbopen

import (
	"context"
	"database/sql"
	"fmt"
)

// EngineVersion returns the version string of the SQLite library linked
// into the driver, e.g. "3.46.1".
func EngineVersion(ctx context.Context, db *sql.DB) (string, error) {
	var v string
	if err := db.QueryRowContext(ctx, `SELECT sqlite_version()`).Scan(&v); err != nil {
		return "", fmt.Errorf("dbopen: sqlite_version: %w", err)
	}
	return v, nil
}
