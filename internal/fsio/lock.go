package fsio

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"llmspub/internal/pub"
)

// Lock timing defaults. Staleness must exceed the longest plausible publish
// so a live holder is never evicted.
const (
	DefaultMaxWait      = 10 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
	DefaultStaleAfter   = 30 * time.Second
)

// FileLock implements pub.LockService with an exclusive lock file. Creation
// with O_EXCL is the atomic acquire; waiters poll until the file disappears
// or the wait window elapses. A lock file older than StaleAfter is presumed
// abandoned by a crashed holder and reclaimed.
type FileLock struct {
	Path         string
	MaxWait      time.Duration
	PollInterval time.Duration
	StaleAfter   time.Duration

	clock  pub.Clock
	logger pub.Logger
}

// NewFileLock creates a file lock at path with default timing.
func NewFileLock(path string, clock pub.Clock, logger pub.Logger) *FileLock {
	return &FileLock{
		Path:         path,
		MaxWait:      DefaultMaxWait,
		PollInterval: DefaultPollInterval,
		StaleAfter:   DefaultStaleAfter,
		clock:        clock,
		logger:       logger,
	}
}

// Acquire takes the lock, waiting up to MaxWait. It returns pub.ErrBusy when
// the wait window elapses with the lock still held elsewhere.
func (l *FileLock) Acquire(ctx context.Context) (pub.LockHandle, error) {
	deadline := l.clock.Now().Add(l.MaxWait)

	for {
		ok, err := l.tryAcquire()
		if err != nil {
			return nil, err
		}
		if ok {
			return &fileLockHandle{lock: l}, nil
		}

		l.reclaimIfStale()

		if !l.clock.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: publish lock held at %s", pub.ErrBusy, l.Path)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.PollInterval):
		}
	}
}

// tryAcquire attempts the atomic create. The holder's pid goes into the
// file for operator diagnosis; nothing programmatic reads it back.
func (l *FileLock) tryAcquire() (bool, error) {
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("creating lock file %s: %w", l.Path, err)
	}
	if _, err := f.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		f.Close()
		os.Remove(l.Path)
		return false, fmt.Errorf("writing lock file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(l.Path)
		return false, fmt.Errorf("closing lock file: %w", err)
	}
	return true, nil
}

// reclaimIfStale removes a lock file whose age exceeds StaleAfter. The next
// poll iteration races for the freed slot as usual.
func (l *FileLock) reclaimIfStale() {
	info, err := os.Stat(l.Path)
	if err != nil {
		return // already released
	}
	age := l.clock.Now().Sub(info.ModTime())
	if age <= l.StaleAfter {
		return
	}
	if err := os.Remove(l.Path); err != nil {
		return
	}
	l.logger.Warn("reclaimed stale publish lock", "path", l.Path, "age", age.String())
}

type fileLockHandle struct {
	lock     *FileLock
	released bool
}

func (h *fileLockHandle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	if err := os.Remove(h.lock.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("releasing publish lock: %w", err)
	}
	return nil
}

var _ pub.LockService = (*FileLock)(nil)
