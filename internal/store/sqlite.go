// Package store persists the publish engine's state in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"llmspub/internal/pub"
	"llmspub/internal/store/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements pub.Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens a SQLite store at the given path and brings its
// schema to the latest version. path can be ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store relies on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Foreign keys default to OFF in SQLite for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// History ledger

func (s *SQLiteStore) AppendHistory(e *pub.HistoryEntry) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO file_history (owner_id, website_url, output_type, summary_content, full_content, file_paths, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.OwnerID, e.WebsiteURL, string(e.OutputType), e.SummaryContent, e.FullContent, e.FilePaths, e.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("inserting history entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) GetHistoryEntry(id int64) (*pub.HistoryEntry, error) {
	row := s.db.QueryRow(`
		SELECT id, owner_id, website_url, output_type, summary_content, full_content, file_paths, created_at
		FROM file_history WHERE id = ?`, id)
	e, err := scanHistoryEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // not found
		}
		return nil, fmt.Errorf("loading history entry: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) ListHistory(ownerID string, limit int) ([]*pub.HistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, owner_id, website_url, output_type, summary_content, full_content, file_paths, created_at
		FROM file_history WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()
	return collectHistoryEntries(rows)
}

func (s *SQLiteStore) ListHistorySince(ownerID string, after time.Time) ([]*pub.HistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, owner_id, website_url, output_type, summary_content, full_content, file_paths, created_at
		FROM file_history WHERE owner_id = ? AND created_at > ?
		ORDER BY created_at DESC, id DESC`, ownerID, after)
	if err != nil {
		return nil, fmt.Errorf("listing history since: %w", err)
	}
	defer rows.Close()
	return collectHistoryEntries(rows)
}

func (s *SQLiteStore) UpdateHistoryPaths(id int64, filePaths string) error {
	if _, err := s.db.Exec(`UPDATE file_history SET file_paths = ? WHERE id = ?`, filePaths, id); err != nil {
		return fmt.Errorf("updating history paths: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteHistoryEntry(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM file_history WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting history entry: %w", err)
	}
	return nil
}

// Schedule configuration

func (s *SQLiteStore) GetSchedule(ownerID string) (*pub.ScheduleConfig, error) {
	row := s.db.QueryRow(`
		SELECT owner_id, enabled, frequency, day_of_week, day_of_month, output_type, website_url, paused,
		       consecutive_failures, alert_active, last_run_at, last_run_status, updated_at
		FROM schedules WHERE owner_id = ?`, ownerID)

	cfg := &pub.ScheduleConfig{}
	var outputType string
	var lastRunAt sql.NullTime
	err := row.Scan(&cfg.OwnerID, &cfg.Enabled, &cfg.Frequency, &cfg.DayOfWeek, &cfg.DayOfMonth,
		&outputType, &cfg.WebsiteURL, &cfg.Paused,
		&cfg.ConsecutiveFailures, &cfg.AlertActive, &lastRunAt, &cfg.LastRunStatus, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // no schedule configured
		}
		return nil, fmt.Errorf("loading schedule: %w", err)
	}
	cfg.OutputType = pub.OutputType(outputType)
	if lastRunAt.Valid {
		cfg.LastRunAt = lastRunAt.Time
	}
	return cfg, nil
}

func (s *SQLiteStore) SaveSchedule(cfg *pub.ScheduleConfig) error {
	var lastRunAt any
	if !cfg.LastRunAt.IsZero() {
		lastRunAt = cfg.LastRunAt
	}
	_, err := s.db.Exec(`
		INSERT INTO schedules (owner_id, enabled, frequency, day_of_week, day_of_month, output_type, website_url, paused,
		                       consecutive_failures, alert_active, last_run_at, last_run_status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			enabled = excluded.enabled,
			frequency = excluded.frequency,
			day_of_week = excluded.day_of_week,
			day_of_month = excluded.day_of_month,
			output_type = excluded.output_type,
			website_url = excluded.website_url,
			paused = excluded.paused,
			consecutive_failures = excluded.consecutive_failures,
			alert_active = excluded.alert_active,
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			updated_at = excluded.updated_at`,
		cfg.OwnerID, cfg.Enabled, cfg.Frequency, cfg.DayOfWeek, cfg.DayOfMonth,
		string(cfg.OutputType), cfg.WebsiteURL, cfg.Paused,
		cfg.ConsecutiveFailures, cfg.AlertActive, lastRunAt, cfg.LastRunStatus, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving schedule: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListEnabledSchedules() ([]*pub.ScheduleConfig, error) {
	rows, err := s.db.Query(`
		SELECT owner_id, enabled, frequency, day_of_week, day_of_month, output_type, website_url, paused,
		       consecutive_failures, alert_active, last_run_at, last_run_status, updated_at
		FROM schedules WHERE enabled = 1 ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	defer rows.Close()

	var cfgs []*pub.ScheduleConfig
	for rows.Next() {
		cfg := &pub.ScheduleConfig{}
		var outputType string
		var lastRunAt sql.NullTime
		if err := rows.Scan(&cfg.OwnerID, &cfg.Enabled, &cfg.Frequency, &cfg.DayOfWeek, &cfg.DayOfMonth,
			&outputType, &cfg.WebsiteURL, &cfg.Paused,
			&cfg.ConsecutiveFailures, &cfg.AlertActive, &lastRunAt, &cfg.LastRunStatus, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		cfg.OutputType = pub.OutputType(outputType)
		if lastRunAt.Valid {
			cfg.LastRunAt = lastRunAt.Time
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, rows.Err()
}

// Run log

func (s *SQLiteStore) AppendRunRecord(r *pub.RunRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO run_log (id, owner_id, status, message, attempts, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OwnerID, r.Status, r.Message, r.Attempts, r.StartedAt, r.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("inserting run record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRunRecords(ownerID string, limit int) ([]*pub.RunRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, owner_id, status, message, attempts, started_at, duration_ms
		FROM run_log WHERE owner_id = ?
		ORDER BY started_at DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing run records: %w", err)
	}
	defer rows.Close()

	var records []*pub.RunRecord
	for rows.Next() {
		r := &pub.RunRecord{}
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Status, &r.Message, &r.Attempts, &r.StartedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scanning run record: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistoryEntry(row rowScanner) (*pub.HistoryEntry, error) {
	e := &pub.HistoryEntry{}
	var outputType string
	if err := row.Scan(&e.ID, &e.OwnerID, &e.WebsiteURL, &outputType,
		&e.SummaryContent, &e.FullContent, &e.FilePaths, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.OutputType = pub.OutputType(outputType)
	return e, nil
}

func collectHistoryEntries(rows *sql.Rows) ([]*pub.HistoryEntry, error) {
	var entries []*pub.HistoryEntry
	for rows.Next() {
		e, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ pub.Store = (*SQLiteStore)(nil)
