package pub

import "time"

// Store provides persisted state for the publish engine: the history
// ledger, per-owner schedule configuration, and the scheduled-run log.
type Store interface {
	// History ledger

	// AppendHistory inserts a new history entry and returns its ID.
	// Appends are unconditional: every publish produces exactly one entry.
	AppendHistory(e *HistoryEntry) (int64, error)

	// GetHistoryEntry returns an entry by ID, or nil if it does not exist.
	GetHistoryEntry(id int64) (*HistoryEntry, error)

	// ListHistory returns an owner's entries, newest first.
	ListHistory(ownerID string, limit int) ([]*HistoryEntry, error)

	// ListHistorySince returns an owner's entries created strictly after the
	// given time, newest first.
	ListHistorySince(ownerID string, after time.Time) ([]*HistoryEntry, error)

	// UpdateHistoryPaths rewrites the path list of an existing entry. This is
	// the only permitted mutation of a history row.
	UpdateHistoryPaths(id int64, filePaths string) error

	// DeleteHistoryEntry removes an entry. Deleting a missing entry is a
	// no-op.
	DeleteHistoryEntry(id int64) error

	// Schedule configuration

	// GetSchedule returns the owner's schedule, or nil if none exists.
	GetSchedule(ownerID string) (*ScheduleConfig, error)

	// SaveSchedule inserts or replaces the owner's schedule.
	SaveSchedule(cfg *ScheduleConfig) error

	// ListEnabledSchedules returns every schedule with the enabled flag set,
	// paused or not.
	ListEnabledSchedules() ([]*ScheduleConfig, error)

	// Run log

	// AppendRunRecord records the terminal outcome of a scheduled attempt.
	AppendRunRecord(r *RunRecord) error

	// ListRunRecords returns an owner's run records, newest first.
	ListRunRecords(ownerID string, limit int) ([]*RunRecord, error)

	// Close closes the underlying storage.
	Close() error
}
