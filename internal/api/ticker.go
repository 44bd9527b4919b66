package api

import (
	"context"
	"time"

	"llmspub/internal/pub"
)

// Ticker drives the scheduler at a fixed interval. Due-date evaluation is
// idempotent per frequency window, so the polling interval only bounds how
// soon after midnight (or the configured day) a run starts.
type Ticker struct {
	scheduler *pub.Scheduler
	interval  time.Duration
	logger    pub.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTicker creates a ticker that fires the scheduler every interval.
func NewTicker(scheduler *pub.Scheduler, interval time.Duration, logger pub.Logger) *Ticker {
	return &Ticker{
		scheduler: scheduler,
		interval:  interval,
		logger:    logger,
	}
}

// Start launches the tick loop in a new goroutine.
func (t *Ticker) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})

	ticker := time.NewTicker(t.interval)
	t.logger.Info("scheduler ticker started", "interval", t.interval.String())

	go func() {
		defer close(t.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.scheduler.Tick(ctx); err != nil && ctx.Err() == nil {
					t.logger.Error("scheduler tick failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the tick loop and waits for the current tick to finish.
func (t *Ticker) Stop() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.logger.Info("scheduler ticker stopped")
}
