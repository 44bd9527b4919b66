package fsio_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"llmspub/internal/fsio"
	"llmspub/internal/pub"
	"llmspub/internal/testutil"
)

// newTestLock uses a stub clock anchored to the real wall clock so lock file
// mtimes and clock time line up for staleness math.
func newTestLock(t *testing.T) (*fsio.FileLock, *testutil.StubClock) {
	t.Helper()
	clock := testutil.NewStubClock(time.Now())
	lock := fsio.NewFileLock(filepath.Join(t.TempDir(), ".llmspub.lock"), clock, pub.NewNopLogger())
	lock.MaxWait = 50 * time.Millisecond
	lock.PollInterval = time.Millisecond
	return lock, clock
}

func TestFileLock(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire creates the lock file with the holder pid", func(t *testing.T) {
		lock, _ := newTestLock(t)

		handle, err := lock.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		defer handle.Release()

		data, err := os.ReadFile(lock.Path)
		if err != nil {
			t.Fatalf("lock file missing after acquire: %v", err)
		}
		if len(data) == 0 {
			t.Error("lock file is empty, want holder pid")
		}
	})

	t.Run("held lock turns a second acquire away busy", func(t *testing.T) {
		lock, _ := newTestLock(t)

		handle, err := lock.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		defer handle.Release()

		second := fsio.NewFileLock(lock.Path, testutil.NewStubClock(time.Now()), pub.NewNopLogger())
		second.MaxWait = 0
		if _, err := second.Acquire(ctx); !errors.Is(err, pub.ErrBusy) {
			t.Fatalf("second Acquire() error = %v, want ErrBusy", err)
		}
	})

	t.Run("release frees the lock for the next acquire", func(t *testing.T) {
		lock, _ := newTestLock(t)

		handle, err := lock.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if err := handle.Release(); err != nil {
			t.Fatalf("Release() error = %v", err)
		}

		handle, err = lock.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() after release error = %v", err)
		}
		handle.Release()
	})

	t.Run("double release is safe", func(t *testing.T) {
		lock, _ := newTestLock(t)

		handle, err := lock.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if err := handle.Release(); err != nil {
			t.Fatalf("first Release() error = %v", err)
		}
		if err := handle.Release(); err != nil {
			t.Fatalf("second Release() error = %v", err)
		}
	})

	t.Run("stale lock from a dead holder is reclaimed", func(t *testing.T) {
		lock, clock := newTestLock(t)

		held, err := lock.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		_ = held // abandoned without release

		clock.Advance(lock.StaleAfter + time.Second)

		handle, err := lock.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() over stale lock error = %v", err)
		}
		handle.Release()
	})

	t.Run("fresh lock is not treated as stale", func(t *testing.T) {
		lock, clock := newTestLock(t)

		handle, err := lock.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		defer handle.Release()

		clock.Advance(lock.StaleAfter / 2)

		second := fsio.NewFileLock(lock.Path, clock, pub.NewNopLogger())
		second.MaxWait = 0
		if _, err := second.Acquire(ctx); !errors.Is(err, pub.ErrBusy) {
			t.Fatalf("Acquire() error = %v, want ErrBusy while holder is live", err)
		}
		if _, err := os.Stat(lock.Path); err != nil {
			t.Errorf("live lock file was evicted: %v", err)
		}
	})

	t.Run("cancelled context aborts the wait", func(t *testing.T) {
		lock, _ := newTestLock(t)
		lock.MaxWait = time.Hour

		handle, err := lock.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		defer handle.Release()

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := lock.Acquire(cancelled); !errors.Is(err, context.Canceled) {
			t.Fatalf("Acquire() error = %v, want context.Canceled", err)
		}
	})
}

func TestFileLock_MutualExclusion(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".llmspub.lock")

	type span struct {
		enter, exit time.Time
	}
	var (
		mu    sync.Mutex
		spans []span
	)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock := fsio.NewFileLock(path, pub.RealClock{}, pub.NewNopLogger())
			lock.MaxWait = 10 * time.Second
			lock.PollInterval = time.Millisecond

			handle, err := lock.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			enter := time.Now()
			time.Sleep(2 * time.Millisecond)
			exit := time.Now()
			if err := handle.Release(); err != nil {
				t.Errorf("Release() error = %v", err)
			}

			mu.Lock()
			spans = append(spans, span{enter: enter, exit: exit})
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(spans) != workers {
		t.Fatalf("completed holders = %d, want %d", len(spans), workers)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].enter.Before(spans[j].enter) })
	for i := 1; i < len(spans); i++ {
		if spans[i].enter.Before(spans[i-1].exit) {
			t.Errorf("critical sections overlap: holder %d entered at %v before holder %d exited at %v",
				i, spans[i].enter, i-1, spans[i-1].exit)
		}
	}
}
