package store

// Schema is the records database. Dates are YYYY-MM-DD text in UTC; counts
// are cumulative and never negative.
const Schema = `
CREATE TABLE IF NOT EXISTS countries (
    country_id   TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    continent    TEXT NOT NULL,
    upstream_key TEXT NOT NULL UNIQUE,
    updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_records (
    country_id  TEXT NOT NULL REFERENCES countries(country_id),
    date        TEXT NOT NULL,
    confirmed   INTEGER NOT NULL CHECK (confirmed >= 0),
    deaths      INTEGER NOT NULL CHECK (deaths >= 0),
    recovered   INTEGER CHECK (recovered IS NULL OR recovered >= 0),
    updated_at  INTEGER NOT NULL,
    PRIMARY KEY (country_id, date)
) WITHOUT ROWID;

-- Merges that lowered a cumulative counter. Written in the same
-- transaction as the records they describe.
CREATE TABLE IF NOT EXISTS anomalies (
    anomaly_id  INTEGER PRIMARY KEY AUTOINCREMENT,
    country_id  TEXT NOT NULL REFERENCES countries(country_id),
    date        TEXT NOT NULL,
    kind        TEXT NOT NULL,
    field       TEXT NOT NULL,
    previous    INTEGER NOT NULL,
    current     INTEGER NOT NULL,
    confirmed   INTEGER NOT NULL, -- the flagged record as merged
    deaths      INTEGER NOT NULL,
    recovered   INTEGER,
    detected_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_anomalies_country ON anomalies(country_id, date);
`
