package schedule

import "errors"

var (
	// ErrAlreadyRunning is returned when starting a running scheduler.
	ErrAlreadyRunning = errors.New("schedule: scheduler already running")

	// ErrNotRunning is returned when stopping a scheduler that is not running.
	ErrNotRunning = errors.New("schedule: scheduler not running")
)
