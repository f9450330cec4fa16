// Package chartstore persists generated charts and the provider request
// log in a single SQLite database. Charts are cached by query
// fingerprint with LRU accounting; the request log backs the rate
// limiter across restarts.
package chartstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS charts (
	fingerprint    TEXT PRIMARY KEY,
	payload        TEXT NOT NULL,
	generated_at   DATETIME NOT NULL,
	last_access    DATETIME NOT NULL,
	image_asset_id TEXT NOT NULL DEFAULT '',
	image_format   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_charts_last_access ON charts(last_access);
CREATE INDEX IF NOT EXISTS idx_charts_generated_at ON charts(generated_at);

CREATE TABLE IF NOT EXISTS request_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_request_log_ts ON request_log(ts);
`

// DB wraps a sql.DB with chart cache operations.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("chartstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("chartstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("chartstore: apply schema: %w", err)
	}
	return &DB{conn: conn, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
