package pub

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// alertThreshold is the consecutive-failure count at which the standing
// alert raises.
const alertThreshold = 3

// Scheduler drives the recurring publish cycle. Each tick it evaluates
// every enabled schedule, regenerates content for the due ones, and pushes
// the result through the same publish path a manual caller uses.
type Scheduler struct {
	store     Store
	publisher *PublishService
	generator Generator
	retry     RetryPolicy
	clock     Clock
	idgen     IDGenerator
	logger    Logger

	// autoBackup controls whether scheduled overwrites take a backup first.
	autoBackup bool
}

// NewScheduler wires a scheduler from its collaborators.
func NewScheduler(store Store, publisher *PublishService, generator Generator, retry RetryPolicy, clock Clock, idgen IDGenerator, logger Logger, autoBackup bool) *Scheduler {
	return &Scheduler{
		store:      store,
		publisher:  publisher,
		generator:  generator,
		retry:      retry,
		clock:      clock,
		idgen:      idgen,
		logger:     logger,
		autoBackup: autoBackup,
	}
}

// Tick runs one scheduling pass over all enabled schedules. Per-owner
// failures are recorded on that owner's schedule and do not stop the pass.
func (s *Scheduler) Tick(ctx context.Context) error {
	cfgs, err := s.store.ListEnabledSchedules()
	if err != nil {
		return fmt.Errorf("listing schedules: %w", err)
	}
	for _, cfg := range cfgs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.runOne(ctx, cfg); err != nil && !errors.Is(err, ErrNotDue) && !errors.Is(err, ErrDisabled) {
			s.logger.Error("scheduled run failed", "owner", cfg.OwnerID, "error", err)
		}
	}
	return nil
}

// TickOwner runs a scheduling pass for one owner. It returns ErrDisabled
// when no armed schedule exists and ErrNotDue when the schedule's
// conditions are not met at the current time.
func (s *Scheduler) TickOwner(ctx context.Context, ownerID string) error {
	cfg, err := s.store.GetSchedule(ownerID)
	if err != nil {
		return fmt.Errorf("loading schedule: %w", err)
	}
	if cfg == nil {
		return ErrDisabled
	}
	return s.runOne(ctx, cfg)
}

func (s *Scheduler) runOne(ctx context.Context, cfg *ScheduleConfig) error {
	if !cfg.Enabled || cfg.Paused {
		return ErrDisabled
	}
	now := s.clock.Now()
	if !DueAt(cfg, now) || RanInCurrentWindow(cfg, now) {
		return ErrNotDue
	}
	if cfg.WebsiteURL == "" {
		// The scheduler regenerates a previously published target; it never
		// invents one. Without a remembered source URL there is nothing to do.
		return s.recordFailure(cfg, 0, now, fmt.Errorf("no source URL on schedule"))
	}

	started := s.clock.Now()
	s.logger.Info("scheduled run starting",
		"owner", cfg.OwnerID, "frequency", cfg.Frequency, "url", cfg.WebsiteURL)

	var result *PublishResult
	attempts, err := s.retry.Do(ctx, func() error {
		gen, genErr := s.generator.Run(ctx, cfg.WebsiteURL, cfg.OutputType)
		if genErr != nil {
			return fmt.Errorf("generating content: %w", genErr)
		}
		var pubErr error
		result, pubErr = s.publisher.Publish(ctx, cfg.OwnerID, PublishRequest{
			OutputType:       cfg.OutputType,
			WebsiteURL:       cfg.WebsiteURL,
			ConfirmOverwrite: true,
			SkipBackup:       !s.autoBackup,
			SummaryContent:   gen.Summary,
			FullContent:      gen.Full,
		})
		return pubErr
	})

	if err != nil {
		return s.recordFailure(cfg, attempts, started, err)
	}
	return s.recordSuccess(cfg, attempts, result, started)
}

func (s *Scheduler) recordSuccess(cfg *ScheduleConfig, attempts int, result *PublishResult, started time.Time) error {
	now := s.clock.Now()
	s.appendRun(&RunRecord{
		OwnerID:   cfg.OwnerID,
		Status:    RunStatusSuccess,
		Message:   fmt.Sprintf("published %d file(s)", len(result.SavedFiles)),
		Attempts:  attempts,
		StartedAt: started,
		Duration:  now.Sub(started),
	})

	cfg.ConsecutiveFailures = 0
	cfg.AlertActive = false
	cfg.LastRunAt = now
	cfg.LastRunStatus = RunStatusSuccess
	cfg.UpdatedAt = now
	if err := s.store.SaveSchedule(cfg); err != nil {
		return fmt.Errorf("saving schedule after run: %w", err)
	}
	s.logger.Info("scheduled run succeeded",
		"owner", cfg.OwnerID, "attempts", attempts, "files", len(result.SavedFiles))
	return nil
}

func (s *Scheduler) recordFailure(cfg *ScheduleConfig, attempts int, started time.Time, runErr error) error {
	now := s.clock.Now()
	s.appendRun(&RunRecord{
		OwnerID:   cfg.OwnerID,
		Status:    RunStatusFailed,
		Message:   runErr.Error(),
		Attempts:  attempts,
		StartedAt: started,
		Duration:  now.Sub(started),
	})

	cfg.ConsecutiveFailures++
	if cfg.ConsecutiveFailures >= alertThreshold {
		cfg.AlertActive = true
	}
	cfg.LastRunAt = now
	cfg.LastRunStatus = RunStatusFailed
	cfg.UpdatedAt = now
	if err := s.store.SaveSchedule(cfg); err != nil {
		s.logger.Error("saving schedule after failed run", "owner", cfg.OwnerID, "error", err)
	}
	if cfg.AlertActive {
		s.logger.Warn("schedule failing repeatedly",
			"owner", cfg.OwnerID, "consecutive_failures", cfg.ConsecutiveFailures)
	}
	return fmt.Errorf("scheduled run for %s: %w", cfg.OwnerID, runErr)
}

func (s *Scheduler) appendRun(r *RunRecord) {
	r.ID = s.idgen.New()
	if err := s.store.AppendRunRecord(r); err != nil {
		s.logger.Warn("run record append failed", "owner", r.OwnerID, "error", err)
	}
}
