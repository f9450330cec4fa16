package chartstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rusel95/AstroSvitla-sub001/internal/apperr"
	"github.com/rusel95/AstroSvitla-sub001/internal/astro"
)

// Summary is a chart row without its payload.
type Summary struct {
	Fingerprint string                `json:"fingerprint"`
	GeneratedAt time.Time             `json:"generated_at"`
	LastAccess  time.Time             `json:"last_access"`
	Image       *astro.AssetReference `json:"image,omitempty"`
}

// Save inserts or replaces a chart under its fingerprint and refreshes
// the access time. Saving the same chart twice is a no-op apart from the
// access bump.
func (db *DB) Save(chart *astro.NatalChart) error {
	payload, err := json.Marshal(chart)
	if err != nil {
		return fmt.Errorf("chartstore: encode chart: %w", err)
	}
	var assetID, format string
	if chart.Image != nil {
		assetID = chart.Image.ID
		format = chart.Image.Format
	}
	_, err = db.conn.Exec(`
		INSERT INTO charts (fingerprint, payload, generated_at, last_access, image_asset_id, image_format)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			payload        = excluded.payload,
			generated_at   = excluded.generated_at,
			last_access    = excluded.last_access,
			image_asset_id = excluded.image_asset_id,
			image_format   = excluded.image_format
	`, chart.Fingerprint, string(payload), chart.GeneratedAt.UTC(), db.now().UTC(), assetID, format)
	if err != nil {
		return fmt.Errorf("chartstore: save chart: %w", err)
	}
	return nil
}

// Load returns the chart stored under the fingerprint and marks it as
// recently used. The image columns override the payload's reference so
// reconciliation can detach deleted assets without rewriting payloads.
func (db *DB) Load(fingerprint string) (*astro.NatalChart, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("chartstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var payload, assetID, format string
	err = tx.QueryRow(`
		SELECT payload, image_asset_id, image_format FROM charts WHERE fingerprint = ?
	`, fingerprint).Scan(&payload, &assetID, &format)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chartstore: chart %s: %w", fingerprint, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("chartstore: load chart: %w", err)
	}

	var chart astro.NatalChart
	if err := json.Unmarshal([]byte(payload), &chart); err != nil {
		return nil, fmt.Errorf("chartstore: decode chart %s: %w", fingerprint, err)
	}
	if assetID != "" {
		chart.Image = &astro.AssetReference{ID: assetID, Format: format}
	} else {
		chart.Image = nil
	}

	if _, err := tx.Exec(`UPDATE charts SET last_access = ? WHERE fingerprint = ?`, db.now().UTC(), fingerprint); err != nil {
		return nil, fmt.Errorf("chartstore: touch chart: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("chartstore: commit: %w", err)
	}
	return &chart, nil
}

// List returns all cached charts, most recently used first.
func (db *DB) List() ([]Summary, error) {
	rows, err := db.conn.Query(`
		SELECT fingerprint, generated_at, last_access, image_asset_id, image_format
		FROM charts ORDER BY last_access DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("chartstore: list charts: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// Delete removes a chart row. The caller is responsible for the image
// asset, if any; Delete returns its reference for that purpose.
func (db *DB) Delete(fingerprint string) (*astro.AssetReference, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("chartstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var assetID, format string
	err = tx.QueryRow(`SELECT image_asset_id, image_format FROM charts WHERE fingerprint = ?`, fingerprint).
		Scan(&assetID, &format)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chartstore: chart %s: %w", fingerprint, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("chartstore: delete chart: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM charts WHERE fingerprint = ?`, fingerprint); err != nil {
		return nil, fmt.Errorf("chartstore: delete chart: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("chartstore: commit: %w", err)
	}
	if assetID == "" {
		return nil, nil
	}
	return &astro.AssetReference{ID: assetID, Format: format}, nil
}

// Count returns the number of cached charts.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM charts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("chartstore: count charts: %w", err)
	}
	return n, nil
}

// FindStale returns fingerprints of charts generated before the cutoff,
// oldest first. Stale charts stay served; this only reports them.
func (db *DB) FindStale(olderThan time.Time) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT fingerprint FROM charts WHERE generated_at < ? ORDER BY generated_at ASC
	`, olderThan.UTC())
	if err != nil {
		return nil, fmt.Errorf("chartstore: find stale: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// EvictLRU removes the least recently used charts until at most max
// remain, returning the removed rows so callers can drop their assets.
func (db *DB) EvictLRU(max int) ([]Summary, error) {
	if max <= 0 {
		return nil, nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("chartstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var total int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM charts`).Scan(&total); err != nil {
		return nil, fmt.Errorf("chartstore: count charts: %w", err)
	}
	if total <= max {
		return nil, nil
	}

	rows, err := tx.Query(`
		SELECT fingerprint, generated_at, last_access, image_asset_id, image_format
		FROM charts ORDER BY last_access ASC LIMIT ?
	`, total-max)
	if err != nil {
		return nil, fmt.Errorf("chartstore: select eviction victims: %w", err)
	}
	victims, err := scanSummaries(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	stmt, err := tx.Prepare(`DELETE FROM charts WHERE fingerprint = ?`)
	if err != nil {
		return nil, fmt.Errorf("chartstore: prepare eviction: %w", err)
	}
	defer stmt.Close()
	for _, v := range victims {
		if _, err := stmt.Exec(v.Fingerprint); err != nil {
			return nil, fmt.Errorf("chartstore: evict %s: %w", v.Fingerprint, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("chartstore: commit: %w", err)
	}
	return victims, nil
}

// ClearAssetRef detaches the named asset from any chart referencing it,
// returning how many rows changed.
func (db *DB) ClearAssetRef(assetID string) (int, error) {
	res, err := db.conn.Exec(`
		UPDATE charts SET image_asset_id = '', image_format = '' WHERE image_asset_id = ?
	`, assetID)
	if err != nil {
		return 0, fmt.Errorf("chartstore: clear asset ref: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("chartstore: clear asset ref: %w", err)
	}
	return int(n), nil
}

// AssetRefs returns every referenced asset id mapped to its format.
func (db *DB) AssetRefs() (map[string]string, error) {
	rows, err := db.conn.Query(`
		SELECT image_asset_id, image_format FROM charts WHERE image_asset_id != ''
	`)
	if err != nil {
		return nil, fmt.Errorf("chartstore: asset refs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, format string
		if err := rows.Scan(&id, &format); err != nil {
			return nil, err
		}
		out[id] = format
	}
	return out, rows.Err()
}

func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	var out []Summary
	for rows.Next() {
		var s Summary
		var assetID, format string
		if err := rows.Scan(&s.Fingerprint, &s.GeneratedAt, &s.LastAccess, &assetID, &format); err != nil {
			return nil, err
		}
		if assetID != "" {
			s.Image = &astro.AssetReference{ID: assetID, Format: format}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
