package pub

import "errors"

var (
	// ErrBusy means the publish lock could not be acquired within the wait
	// window. The operation is safe to retry.
	ErrBusy = errors.New("another publish is in progress, retry shortly")

	// ErrOverwriteNotConfirmed means a target file already exists and the
	// caller has not confirmed the overwrite.
	ErrOverwriteNotConfirmed = errors.New("target files already exist, overwrite confirmation required")

	// ErrUpstream means the generation service returned a non-success or
	// malformed response at some protocol step.
	ErrUpstream = errors.New("generation service failed")

	// ErrNotDue means a tick arrived but the schedule conditions are not met
	// for now. Not an error condition for callers driving ticks.
	ErrNotDue = errors.New("schedule not due")

	// ErrDisabled means a tick arrived but automation is disabled or paused.
	ErrDisabled = errors.New("schedule disabled")
)
