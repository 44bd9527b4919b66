package pub_test

import (
	"testing"
	"time"

	"llmspub/internal/pub"
	"llmspub/internal/testutil"
)

func TestDueAt(t *testing.T) {
	t.Run("daily is always due", func(t *testing.T) {
		cfg := &pub.ScheduleConfig{Frequency: pub.FrequencyDaily}
		for day := 1; day <= 7; day++ {
			now := time.Date(2025, 3, day, 12, 0, 0, 0, time.UTC)
			if !pub.DueAt(cfg, now) {
				t.Errorf("daily DueAt(%v) = false, want true", now)
			}
		}
	})

	t.Run("weekly matches the configured weekday", func(t *testing.T) {
		cfg := &pub.ScheduleConfig{Frequency: pub.FrequencyWeekly, DayOfWeek: 3} // Wednesday

		tuesday := time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)
		if pub.DueAt(cfg, tuesday) {
			t.Error("weekly DueAt(Tuesday) = true, want false")
		}
		wednesday := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)
		if !pub.DueAt(cfg, wednesday) {
			t.Error("weekly DueAt(Wednesday) = false, want true")
		}
	})

	t.Run("monthly matches the configured day", func(t *testing.T) {
		cfg := &pub.ScheduleConfig{Frequency: pub.FrequencyMonthly, DayOfMonth: 15}

		on := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
		if !pub.DueAt(cfg, on) {
			t.Error("monthly DueAt(day 15) = false, want true")
		}
		off := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
		if pub.DueAt(cfg, off) {
			t.Error("monthly DueAt(day 14) = true, want false")
		}
	})

	t.Run("monthly day 31 clamps to the last day of short months", func(t *testing.T) {
		cfg := &pub.ScheduleConfig{Frequency: pub.FrequencyMonthly, DayOfMonth: 31}

		april30 := time.Date(2025, 4, 30, 12, 0, 0, 0, time.UTC)
		if !pub.DueAt(cfg, april30) {
			t.Error("DueAt(April 30) = false, want true for day-31 schedule")
		}
		may1 := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
		if pub.DueAt(cfg, may1) {
			t.Error("DueAt(May 1) = true, want false for day-31 schedule")
		}
		feb28 := time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC)
		if !pub.DueAt(cfg, feb28) {
			t.Error("DueAt(Feb 28) = false, want true for day-31 schedule")
		}
	})

	t.Run("evaluation is idempotent", func(t *testing.T) {
		cfg := &pub.ScheduleConfig{Frequency: pub.FrequencyWeekly, DayOfWeek: 1}
		now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) // Monday
		first := pub.DueAt(cfg, now)
		second := pub.DueAt(cfg, now)
		if first != second {
			t.Errorf("DueAt returned %v then %v for identical inputs", first, second)
		}
		if !first {
			t.Error("DueAt(Monday) = false for a Monday schedule")
		}
	})

	t.Run("unknown frequency is never due", func(t *testing.T) {
		cfg := &pub.ScheduleConfig{Frequency: "hourly"}
		if pub.DueAt(cfg, time.Now()) {
			t.Error("DueAt with unknown frequency = true, want false")
		}
	})
}

func TestRanInCurrentWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("never-run schedule has no window", func(t *testing.T) {
		cfg := &pub.ScheduleConfig{Frequency: pub.FrequencyDaily}
		if pub.RanInCurrentWindow(cfg, now) {
			t.Error("RanInCurrentWindow = true for a never-run schedule")
		}
	})

	t.Run("daily run earlier the same day blocks a rerun", func(t *testing.T) {
		cfg := &pub.ScheduleConfig{
			Frequency: pub.FrequencyDaily,
			LastRunAt: now.Add(-3 * time.Hour),
		}
		if !pub.RanInCurrentWindow(cfg, now) {
			t.Error("RanInCurrentWindow = false for a same-day run")
		}
	})

	t.Run("yesterday's run does not block today", func(t *testing.T) {
		cfg := &pub.ScheduleConfig{
			Frequency: pub.FrequencyDaily,
			LastRunAt: now.Add(-24 * time.Hour),
		}
		if pub.RanInCurrentWindow(cfg, now) {
			t.Error("RanInCurrentWindow = true for yesterday's run")
		}
	})

	t.Run("every-minute windows are one minute wide", func(t *testing.T) {
		cfg := &pub.ScheduleConfig{
			Frequency: pub.FrequencyEveryMinute,
			LastRunAt: now.Add(-30 * time.Second),
		}
		if !pub.RanInCurrentWindow(cfg, now) {
			t.Error("RanInCurrentWindow = false for a run 30s ago in the same minute")
		}
		cfg.LastRunAt = now.Add(-90 * time.Second)
		if pub.RanInCurrentWindow(cfg, now) {
			t.Error("RanInCurrentWindow = true for a run in a previous minute")
		}
	})
}

func TestScheduleService(t *testing.T) {
	newService := func() (*pub.ScheduleService, *testutil.MemoryStore, *testutil.StubClock) {
		clock := testutil.FixedClock()
		store := testutil.NewMemoryStore()
		return pub.NewScheduleService(store, clock, pub.NewNopLogger()), store, clock
	}

	t.Run("Get returns a disabled default when nothing is saved", func(t *testing.T) {
		svc, _, _ := newService()
		cfg, err := svc.Get("owner")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if cfg.Enabled {
			t.Error("default schedule is enabled, want disabled")
		}
		if cfg.Frequency != pub.FrequencyDaily {
			t.Errorf("default frequency = %q, want daily", cfg.Frequency)
		}
	})

	t.Run("Save validates frequency and days", func(t *testing.T) {
		svc, _, _ := newService()

		bad := []*pub.ScheduleConfig{
			{OwnerID: "o", Frequency: "hourly", OutputType: pub.OutputBoth, DayOfMonth: 1},
			{OwnerID: "o", Frequency: pub.FrequencyWeekly, DayOfWeek: 7, OutputType: pub.OutputBoth, DayOfMonth: 1},
			{OwnerID: "o", Frequency: pub.FrequencyMonthly, DayOfMonth: 0, OutputType: pub.OutputBoth},
			{OwnerID: "o", Frequency: pub.FrequencyDaily, OutputType: "everything", DayOfMonth: 1},
		}
		for _, cfg := range bad {
			if err := svc.Save(cfg); err == nil {
				t.Errorf("Save(%+v) error = nil, want validation failure", cfg)
			}
		}
	})

	t.Run("Save preserves run bookkeeping across updates", func(t *testing.T) {
		svc, store, _ := newService()

		store.SaveSchedule(&pub.ScheduleConfig{
			OwnerID:             "owner",
			Enabled:             true,
			Frequency:           pub.FrequencyDaily,
			DayOfMonth:          1,
			OutputType:          pub.OutputBoth,
			ConsecutiveFailures: 2,
		})

		if err := svc.Save(&pub.ScheduleConfig{
			OwnerID:    "owner",
			Enabled:    true,
			Frequency:  pub.FrequencyWeekly,
			DayOfWeek:  2,
			DayOfMonth: 1,
			OutputType: pub.OutputBoth,
		}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		cfg, _ := store.GetSchedule("owner")
		if cfg.Frequency != pub.FrequencyWeekly {
			t.Errorf("frequency = %q, want weekly", cfg.Frequency)
		}
		if cfg.ConsecutiveFailures != 2 {
			t.Errorf("ConsecutiveFailures = %d, want 2 preserved", cfg.ConsecutiveFailures)
		}
	})

	t.Run("pause and resume flip only the paused flag", func(t *testing.T) {
		svc, store, _ := newService()
		store.SaveSchedule(&pub.ScheduleConfig{
			OwnerID:    "owner",
			Enabled:    true,
			Frequency:  pub.FrequencyDaily,
			DayOfMonth: 1,
			OutputType: pub.OutputBoth,
		})

		if err := svc.Pause("owner"); err != nil {
			t.Fatalf("Pause() error = %v", err)
		}
		cfg, _ := store.GetSchedule("owner")
		if !cfg.Paused || !cfg.Enabled {
			t.Errorf("after pause: paused=%v enabled=%v, want true/true", cfg.Paused, cfg.Enabled)
		}

		if err := svc.Resume("owner"); err != nil {
			t.Fatalf("Resume() error = %v", err)
		}
		cfg, _ = store.GetSchedule("owner")
		if cfg.Paused {
			t.Error("after resume: still paused")
		}
	})

	t.Run("pause without a schedule fails", func(t *testing.T) {
		svc, _, _ := newService()
		if err := svc.Pause("owner"); err == nil {
			t.Error("Pause() error = nil, want failure with no schedule")
		}
	})

	t.Run("cancel disarms but preserves settings", func(t *testing.T) {
		svc, store, _ := newService()
		store.SaveSchedule(&pub.ScheduleConfig{
			OwnerID:    "owner",
			Enabled:    true,
			Frequency:  pub.FrequencyWeekly,
			DayOfWeek:  3,
			DayOfMonth: 1,
			OutputType: pub.OutputFull,
			WebsiteURL: "https://example.com",
		})

		if err := svc.Cancel("owner"); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		cfg, _ := store.GetSchedule("owner")
		if cfg.Enabled {
			t.Error("cancelled schedule is still enabled")
		}
		if cfg.Frequency != pub.FrequencyWeekly || cfg.DayOfWeek != 3 ||
			cfg.OutputType != pub.OutputFull || cfg.WebsiteURL != "https://example.com" {
			t.Errorf("cancel lost settings: %+v", cfg)
		}
	})

	t.Run("RememberSource captures the last manual publish target", func(t *testing.T) {
		svc, store, _ := newService()

		if err := svc.RememberSource("owner", "https://example.com", pub.OutputBoth); err != nil {
			t.Fatalf("RememberSource() error = %v", err)
		}
		cfg, _ := store.GetSchedule("owner")
		if cfg == nil {
			t.Fatal("no schedule row created")
		}
		if cfg.WebsiteURL != "https://example.com" || cfg.OutputType != pub.OutputBoth {
			t.Errorf("remembered source = %q/%q", cfg.WebsiteURL, cfg.OutputType)
		}
		if cfg.Enabled {
			t.Error("RememberSource armed the schedule, want disabled")
		}
	})
}
