package chartstore

import (
	"fmt"
	"time"

	"github.com/rusel95/AstroSvitla-sub001/internal/ratelimit"
)

var _ ratelimit.Store = (*DB)(nil)

// AppendRequest logs one dispatched provider request.
func (db *DB) AppendRequest(ts time.Time) error {
	if _, err := db.conn.Exec(`INSERT INTO request_log (ts) VALUES (?)`, ts.UTC()); err != nil {
		return fmt.Errorf("chartstore: append request: %w", err)
	}
	return nil
}

// RequestTimes returns the persisted request log, oldest first.
func (db *DB) RequestTimes() ([]time.Time, error) {
	rows, err := db.conn.Query(`SELECT ts FROM request_log ORDER BY ts ASC`)
	if err != nil {
		return nil, fmt.Errorf("chartstore: request times: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts.UTC())
	}
	return out, rows.Err()
}

// PruneRequests drops log entries older than the cutoff.
func (db *DB) PruneRequests(before time.Time) error {
	if _, err := db.conn.Exec(`DELETE FROM request_log WHERE ts < ?`, before.UTC()); err != nil {
		return fmt.Errorf("chartstore: prune requests: %w", err)
	}
	return nil
}
