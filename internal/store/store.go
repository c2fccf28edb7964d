// Package store is the relational persistence layer (spec §4.8):
// database/sql over modernc.org/sqlite, grounded on the teacher's
// sql.Open("sqlite", ...) idiom (internal/plex/dvr.go) generalized from a
// single UPDATE helper into a full schema with transactional operations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/snapetech/streamwatch-core/internal/classify"
)

// Status is a persisted check result, matching the stream_checks CHECK
// constraint's closed value set.
type Status string

const (
	StatusLive    Status = "live"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
	StatusUnknown Status = "unknown"
)

// Record is one row of the streams table joined with its most recent check.
type Record struct {
	URL           string
	Alias         string
	Platform      string
	Handle        string
	Category      string
	AddedAt       time.Time
	LastModified  time.Time
	UserNotes     string
	IsActive      bool
	Status        Status
	ViewerCount   *int
	LastCheckedAt *time.Time
}

// CheckEvent is one historical row of stream_checks.
type CheckEvent struct {
	Status          Status
	ViewerCount     *int
	Title           string
	Category        string
	CheckedAt       time.Time
	ResponseTimeMs  *int
	ErrorMessage    string
}

// Analytics summarizes stream_checks for one URL over a day window.
type Analytics struct {
	URL             string
	CheckCount      int
	UptimePercent   float64
	AvgViewers      float64
	PeakViewers     int
	AvgResponseMs   float64
	HourlyUptimePct map[int]float64 // hour-of-day (0-23) -> percent live
}

// PlatformStat is one row of PlatformStats' aggregate output.
type PlatformStat struct {
	Platform    string
	StreamCount int
	LiveCount   int
	AvgViewers  float64
}

// Store wraps a single *sql.DB with the operations spec §4.8 names.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path, applies
// connection pragmas, and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite has no internal connection pool concurrency story; serialize writers

	for _, stmt := range splitStatements(connectionPragmas) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma: %w", err)
		}
	}
	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: schema: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.ensureSchemaVersion(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func splitStatements(block string) []string {
	var out []string
	for _, stmt := range strings.Split(block, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func (s *Store) ensureSchemaVersion(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_info`).Scan(&count); err != nil {
		return fmt.Errorf("store: read schema_info: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO schema_info (version, description) VALUES (?, ?)`,
		schemaVersion, "initial schema")
	return err
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) getOrCreatePlatform(tx *sql.Tx, ctx context.Context, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM platforms WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO platforms (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Upsert inserts or replaces one stream row, creating its platform row if
// needed.
func (s *Store) Upsert(ctx context.Context, url, alias, platform, handle, category string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		platformID, err := s.getOrCreatePlatform(tx, ctx, platform)
		if err != nil {
			return fmt.Errorf("store: get/create platform: %w", err)
		}
		if category == "" {
			category = "N/A"
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO streams (url, alias, platform_id, handle, category, is_active, last_modified)
			VALUES (?, ?, ?, ?, ?, TRUE, CURRENT_TIMESTAMP)
			ON CONFLICT(url) DO UPDATE SET
				alias = excluded.alias,
				platform_id = excluded.platform_id,
				handle = excluded.handle,
				category = excluded.category,
				is_active = TRUE,
				last_modified = CURRENT_TIMESTAMP
		`, url, alias, platformID, handle, category)
		return err
	})
}

const loadBaseQuery = `
SELECT s.url, s.alias, COALESCE(p.name, 'Unknown'), COALESCE(s.handle, ''),
       COALESCE(s.category, 'N/A'), s.added_at, s.last_modified,
       COALESCE(s.user_notes, ''), s.is_active,
       COALESCE(sc.status, 'unknown'), sc.viewer_count, sc.checked_at
FROM streams s
LEFT JOIN platforms p ON s.platform_id = p.id
LEFT JOIN (
	SELECT stream_url, status, viewer_count, checked_at,
	       ROW_NUMBER() OVER (PARTITION BY stream_url ORDER BY checked_at DESC) AS rn
	FROM stream_checks
) sc ON s.url = sc.stream_url AND sc.rn = 1
`

func scanRecord(rows interface{ Scan(...any) error }) (Record, error) {
	var r Record
	var addedAt, lastModified string
	var checkedAt sql.NullString
	var viewerCount sql.NullInt64
	if err := rows.Scan(&r.URL, &r.Alias, &r.Platform, &r.Handle, &r.Category,
		&addedAt, &lastModified, &r.UserNotes, &r.IsActive,
		&r.Status, &viewerCount, &checkedAt); err != nil {
		return Record{}, err
	}
	r.AddedAt = parseTimestamp(addedAt)
	r.LastModified = parseTimestamp(lastModified)
	if viewerCount.Valid {
		v := int(viewerCount.Int64)
		r.ViewerCount = &v
	}
	if checkedAt.Valid {
		t := parseTimestamp(checkedAt.String)
		r.LastCheckedAt = &t
	}
	return r, nil
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Load returns every stream, joined with its newest check, optionally
// including soft-deleted (inactive) rows.
func (s *Store) Load(ctx context.Context, includeInactive bool) ([]Record, error) {
	query := loadBaseQuery
	if !includeInactive {
		query += " WHERE s.is_active = TRUE"
	}
	query += " ORDER BY s.alias"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns a single active stream by URL, or (zero, false) if absent.
func (s *Store) Get(ctx context.Context, url string) (Record, bool, error) {
	query := loadBaseQuery + " WHERE s.url = ? AND s.is_active = TRUE"
	row := s.db.QueryRowContext(ctx, query, url)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

// SoftDelete marks an active stream inactive; returns whether a row changed.
func (s *Store) SoftDelete(ctx context.Context, url string) (bool, error) {
	var changed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE streams SET is_active = FALSE, last_modified = CURRENT_TIMESTAMP WHERE url = ? AND is_active = TRUE`, url)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		changed = n > 0
		return nil
	})
	return changed, err
}

// RecordCheck appends one row of check history.
func (s *Store) RecordCheck(ctx context.Context, url string, status Status, viewerCount *int, title, category string, responseTimeMs *int, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stream_checks (stream_url, status, viewer_count, title, category, response_time_ms, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, url, string(status), viewerCount, nullIfEmpty(title), nullIfEmpty(category), responseTimeMs, nullIfEmpty(errMsg))
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// History returns stream_checks rows for url within the last `days`.
func (s *Store) History(ctx context.Context, url string, days int) ([]CheckEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, viewer_count, COALESCE(title, ''), COALESCE(category, ''),
		       checked_at, response_time_ms, COALESCE(error_message, '')
		FROM stream_checks
		WHERE stream_url = ? AND checked_at > datetime('now', ?)
		ORDER BY checked_at DESC
	`, url, fmt.Sprintf("-%d days", days))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CheckEvent
	for rows.Next() {
		var e CheckEvent
		var viewerCount, responseMs sql.NullInt64
		var checkedAt string
		if err := rows.Scan(&e.Status, &viewerCount, &e.Title, &e.Category, &checkedAt, &responseMs, &e.ErrorMessage); err != nil {
			return nil, err
		}
		e.CheckedAt = parseTimestamp(checkedAt)
		if viewerCount.Valid {
			v := int(viewerCount.Int64)
			e.ViewerCount = &v
		}
		if responseMs.Valid {
			v := int(responseMs.Int64)
			e.ResponseTimeMs = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LiveNow returns active streams whose newest check is live, ordered by
// viewer count descending then alias.
func (s *Store) LiveNow(ctx context.Context) ([]Record, error) {
	query := loadBaseQuery + ` WHERE s.is_active = TRUE AND sc.status = 'live' ORDER BY sc.viewer_count DESC, s.alias`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Search matches query against alias, platform, handle, or category
// (LIKE), live streams ordered first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	pattern := "%" + query + "%"
	q := loadBaseQuery + `
		WHERE s.is_active = TRUE AND (
			s.alias LIKE ? OR COALESCE(p.name, '') LIKE ? OR
			COALESCE(s.handle, '') LIKE ? OR COALESCE(s.category, '') LIKE ?
		)
		ORDER BY CASE WHEN sc.status = 'live' THEN 0 ELSE 1 END, s.alias
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, q, pattern, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetAnalytics aggregates stream_checks for url over the last `days` days.
func (s *Store) GetAnalytics(ctx context.Context, url string, days int) (Analytics, error) {
	a := Analytics{URL: url, HourlyUptimePct: make(map[int]float64)}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(CASE WHEN status = 'live' THEN 100.0 ELSE 0.0 END), 0),
		       COALESCE(AVG(viewer_count), 0),
		       COALESCE(MAX(viewer_count), 0),
		       COALESCE(AVG(response_time_ms), 0)
		FROM stream_checks
		WHERE stream_url = ? AND checked_at > datetime('now', ?)
	`, url, fmt.Sprintf("-%d days", days))
	if err := row.Scan(&a.CheckCount, &a.UptimePercent, &a.AvgViewers, &a.PeakViewers, &a.AvgResponseMs); err != nil {
		return Analytics{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(strftime('%H', checked_at) AS INTEGER) AS hr,
		       AVG(CASE WHEN status = 'live' THEN 100.0 ELSE 0.0 END)
		FROM stream_checks
		WHERE stream_url = ? AND checked_at > datetime('now', ?)
		GROUP BY hr
	`, url, fmt.Sprintf("-%d days", days))
	if err != nil {
		return Analytics{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var hr int
		var pct float64
		if err := rows.Scan(&hr, &pct); err != nil {
			return Analytics{}, err
		}
		a.HourlyUptimePct[hr] = pct
	}
	return a, rows.Err()
}

// PlatformStats aggregates stream/live counts and average viewers per platform.
func (s *Store) PlatformStats(ctx context.Context) ([]PlatformStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.name,
		       COUNT(DISTINCT s.url),
		       COUNT(DISTINCT CASE WHEN sc.status = 'live' THEN s.url END),
		       COALESCE(AVG(sc.viewer_count), 0)
		FROM platforms p
		JOIN streams s ON s.platform_id = p.id AND s.is_active = TRUE
		LEFT JOIN (
			SELECT stream_url, status, viewer_count,
			       ROW_NUMBER() OVER (PARTITION BY stream_url ORDER BY checked_at DESC) AS rn
			FROM stream_checks
		) sc ON sc.stream_url = s.url AND sc.rn = 1
		GROUP BY p.name
		ORDER BY p.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlatformStat
	for rows.Next() {
		var st PlatformStat
		if err := rows.Scan(&st.Platform, &st.StreamCount, &st.LiveCount, &st.AvgViewers); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// GetConfig returns a raw string config value and its declared data type.
func (s *Store) GetConfig(ctx context.Context, key string) (value, dataType string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT value, data_type FROM app_config WHERE key = ?`, key)
	err = row.Scan(&value, &dataType)
	if err == sql.ErrNoRows {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return value, dataType, true, nil
}

// SetConfig upserts one typed config entry.
func (s *Store) SetConfig(ctx context.Context, key, value, dataType string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_config (key, value, data_type, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, data_type = excluded.data_type, updated_at = CURRENT_TIMESTAMP
	`, key, value, dataType)
	return err
}

// ClassifyAndUpsert is a convenience wrapper used by the legacy migration:
// classifies url via C1 before upserting. The manager (C9) classifies on
// its own and calls Upsert directly.
func (s *Store) ClassifyAndUpsert(ctx context.Context, url, alias string) error {
	result := classify.Classify(url)
	if alias == "" {
		alias = result.Handle
	}
	return s.Upsert(ctx, url, alias, result.Platform, result.Handle, "N/A")
}
