package pub

import "context"

// LockHandle represents a held publish lock. Release must be called exactly
// once, normally via defer, on every exit path.
type LockHandle interface {
	Release() error
}

// LockService is the host-wide mutual exclusion guarding publish operations.
// The lock is a single token, not per-target: a "both" publish must write
// its two files as a unit, so any publish blocks all publishes.
type LockService interface {
	// Acquire blocks until the lock is held, the wait window elapses, or ctx
	// is done. A wait-window expiry returns ErrBusy.
	Acquire(ctx context.Context) (LockHandle, error)
}
