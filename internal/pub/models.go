package pub

import "time"

// HistoryEntry is an audit record of one publish event. Entries are
// append-only; the only permitted mutation after creation is rewriting a
// live path in FilePaths to a backup path once that file is backed up
// ahead of a later overwrite.
type HistoryEntry struct {
	ID             int64
	OwnerID        string
	WebsiteURL     string
	OutputType     OutputType
	SummaryContent string
	FullContent    string
	FilePaths      string // comma-joined list of the real (non-backup) paths written
	CreatedAt      time.Time
}

// BackupRecord describes one content-preserving copy of a target file taken
// immediately before an overwrite.
type BackupRecord struct {
	TargetPath string
	BackupPath string
	CreatedAt  time.Time
	Checksum   string // SHA-256 of the preserved bytes
}

// Schedule frequencies. FrequencyEveryMinute exists for fast end-to-end
// testing of the scheduled path and is not meant for production use.
const (
	FrequencyEveryMinute = "every-minute"
	FrequencyDaily       = "daily"
	FrequencyWeekly      = "weekly"
	FrequencyMonthly     = "monthly"
)

// ValidFrequency reports whether f is a supported schedule frequency.
func ValidFrequency(f string) bool {
	switch f {
	case FrequencyEveryMinute, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// ScheduleConfig is the persisted per-owner automation configuration plus
// the scheduler's own runtime bookkeeping.
type ScheduleConfig struct {
	OwnerID    string
	Enabled    bool
	Frequency  string
	DayOfWeek  int // 0=Sunday..6=Saturday, weekly only
	DayOfMonth int // 1..31, monthly only
	OutputType OutputType
	WebsiteURL string
	Paused     bool

	ConsecutiveFailures int
	AlertActive         bool
	LastRunAt           time.Time // zero if never run
	LastRunStatus       string
	UpdatedAt           time.Time
}

// Run statuses recorded in the run log.
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// RunRecord is the terminal outcome of one scheduled attempt, recorded
// after retries are exhausted or the run succeeds.
type RunRecord struct {
	ID        string
	OwnerID   string
	Status    string
	Message   string // error message when failed
	Attempts  int
	StartedAt time.Time
	Duration  time.Duration
}
