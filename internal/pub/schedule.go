package pub

import (
	"fmt"
	"time"
)

// ScheduleService manages per-owner automation configuration. It is the
// only writer of the user-facing schedule fields; the scheduler itself only
// touches the run bookkeeping (paused state excepted).
type ScheduleService struct {
	store  Store
	clock  Clock
	logger Logger
}

// NewScheduleService creates a schedule service backed by the given store.
func NewScheduleService(store Store, clock Clock, logger Logger) *ScheduleService {
	return &ScheduleService{store: store, clock: clock, logger: logger}
}

// Get returns the owner's schedule, or a disabled zero-value schedule when
// none has been saved yet.
func (s *ScheduleService) Get(ownerID string) (*ScheduleConfig, error) {
	cfg, err := s.store.GetSchedule(ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading schedule: %w", err)
	}
	if cfg == nil {
		cfg = &ScheduleConfig{
			OwnerID:    ownerID,
			Frequency:  FrequencyDaily,
			DayOfMonth: 1,
			OutputType: OutputBoth,
		}
	}
	return cfg, nil
}

// Save validates and persists the owner's schedule settings, arming or
// disarming the scheduler. Run bookkeeping carries over from any existing
// row.
func (s *ScheduleService) Save(cfg *ScheduleConfig) error {
	if !ValidFrequency(cfg.Frequency) {
		return fmt.Errorf("invalid frequency %q", cfg.Frequency)
	}
	if cfg.Frequency == FrequencyWeekly && (cfg.DayOfWeek < 0 || cfg.DayOfWeek > 6) {
		return fmt.Errorf("day of week must be 0..6, got %d", cfg.DayOfWeek)
	}
	if cfg.Frequency == FrequencyMonthly && (cfg.DayOfMonth < 1 || cfg.DayOfMonth > 31) {
		return fmt.Errorf("day of month must be 1..31, got %d", cfg.DayOfMonth)
	}
	if !cfg.OutputType.Valid() {
		return fmt.Errorf("invalid output type %q", cfg.OutputType)
	}

	existing, err := s.store.GetSchedule(cfg.OwnerID)
	if err != nil {
		return fmt.Errorf("loading schedule: %w", err)
	}
	if existing != nil {
		cfg.ConsecutiveFailures = existing.ConsecutiveFailures
		cfg.AlertActive = existing.AlertActive
		cfg.LastRunAt = existing.LastRunAt
		cfg.LastRunStatus = existing.LastRunStatus
	}
	cfg.UpdatedAt = s.clock.Now()

	if err := s.store.SaveSchedule(cfg); err != nil {
		return fmt.Errorf("saving schedule: %w", err)
	}
	s.logger.Info("schedule saved",
		"owner", cfg.OwnerID, "enabled", cfg.Enabled, "frequency", cfg.Frequency)
	return nil
}

// Pause suppresses ticks while preserving the configuration for Resume.
func (s *ScheduleService) Pause(ownerID string) error {
	return s.setPaused(ownerID, true)
}

// Resume re-activates a paused schedule.
func (s *ScheduleService) Resume(ownerID string) error {
	return s.setPaused(ownerID, false)
}

func (s *ScheduleService) setPaused(ownerID string, paused bool) error {
	cfg, err := s.store.GetSchedule(ownerID)
	if err != nil {
		return fmt.Errorf("loading schedule: %w", err)
	}
	if cfg == nil {
		return fmt.Errorf("no schedule configured for owner %s", ownerID)
	}
	cfg.Paused = paused
	cfg.UpdatedAt = s.clock.Now()
	if err := s.store.SaveSchedule(cfg); err != nil {
		return fmt.Errorf("saving schedule: %w", err)
	}
	s.logger.Info("schedule pause state changed", "owner", ownerID, "paused", paused)
	return nil
}

// Cancel disarms the schedule but deliberately preserves its settings, so
// the owner can re-arm later without re-entering frequency, day, or source
// URL.
func (s *ScheduleService) Cancel(ownerID string) error {
	cfg, err := s.store.GetSchedule(ownerID)
	if err != nil {
		return fmt.Errorf("loading schedule: %w", err)
	}
	if cfg == nil {
		return nil
	}
	cfg.Enabled = false
	cfg.Paused = false
	cfg.UpdatedAt = s.clock.Now()
	if err := s.store.SaveSchedule(cfg); err != nil {
		return fmt.Errorf("saving schedule: %w", err)
	}
	s.logger.Info("schedule cancelled, settings preserved", "owner", ownerID)
	return nil
}

// RememberSource captures the most recent manual publish's source URL and
// output type on the schedule, so scheduled runs regenerate the same
// artifacts. The scheduler never invents a target on its own.
func (s *ScheduleService) RememberSource(ownerID, websiteURL string, outputType OutputType) error {
	cfg, err := s.Get(ownerID)
	if err != nil {
		return err
	}
	cfg.WebsiteURL = websiteURL
	cfg.OutputType = outputType
	cfg.UpdatedAt = s.clock.Now()
	if err := s.store.SaveSchedule(cfg); err != nil {
		return fmt.Errorf("saving schedule: %w", err)
	}
	return nil
}

// DueAt reports whether a tick at now satisfies the schedule's conditions.
// It is a pure function of (cfg, now): evaluating it twice with the same
// inputs always yields the same answer.
func DueAt(cfg *ScheduleConfig, now time.Time) bool {
	switch cfg.Frequency {
	case FrequencyEveryMinute, FrequencyDaily:
		return true
	case FrequencyWeekly:
		return int(now.Weekday()) == cfg.DayOfWeek
	case FrequencyMonthly:
		// Clamp to the month's last day so a day-31 schedule still fires in
		// shorter months.
		day := cfg.DayOfMonth
		if last := lastDayOfMonth(now); day > last {
			day = last
		}
		return now.Day() == day
	}
	return false
}

// lastDayOfMonth returns the number of days in now's month.
func lastDayOfMonth(now time.Time) int {
	return time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
}

// RanInCurrentWindow reports whether the schedule already produced a
// terminal run inside the frequency window containing now. Ticks fire more
// often than windows, so without this guard a daily schedule would re-run
// on every tick of its due day.
func RanInCurrentWindow(cfg *ScheduleConfig, now time.Time) bool {
	if cfg.LastRunAt.IsZero() {
		return false
	}
	last := cfg.LastRunAt.In(now.Location())
	if cfg.Frequency == FrequencyEveryMinute {
		return last.Truncate(time.Minute).Equal(now.Truncate(time.Minute))
	}
	// Daily, weekly, and monthly windows all resolve to a single calendar
	// day once DueAt has matched.
	ly, lm, ld := last.Date()
	ny, nm, nd := now.Date()
	return ly == ny && lm == nm && ld == nd
}
