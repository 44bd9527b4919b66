package testutil

import (
	"context"
	"sync"

	"llmspub/internal/pub"
)

// FakeLock is a pub.LockService backed by a real mutex, with counters for
// asserting acquisition behavior.
type FakeLock struct {
	mu sync.Mutex

	countMu  sync.Mutex
	Acquired int
	Released int

	// Busy makes every Acquire fail with pub.ErrBusy.
	Busy bool
}

// NewFakeLock creates a fake lock.
func NewFakeLock() *FakeLock {
	return &FakeLock{}
}

func (l *FakeLock) Acquire(_ context.Context) (pub.LockHandle, error) {
	l.countMu.Lock()
	busy := l.Busy
	l.countMu.Unlock()
	if busy {
		return nil, pub.ErrBusy
	}

	l.mu.Lock()
	l.countMu.Lock()
	l.Acquired++
	l.countMu.Unlock()
	return &fakeHandle{lock: l}, nil
}

type fakeHandle struct {
	lock     *FakeLock
	released bool
}

func (h *fakeHandle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	h.lock.countMu.Lock()
	h.lock.Released++
	h.lock.countMu.Unlock()
	h.lock.mu.Unlock()
	return nil
}

var _ pub.LockService = (*FakeLock)(nil)
