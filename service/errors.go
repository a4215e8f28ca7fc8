package service

import "errors"

// Lifecycle preconditions. These indicate programmer errors and are
// surfaced synchronously to the caller.
var (
	// ErrNotInitialized is returned when an operation requires Initialize
	// to have been called first.
	ErrNotInitialized = errors.New("service: not initialized")

	// ErrAlreadyInitialized is returned when Initialize is called twice.
	ErrAlreadyInitialized = errors.New("service: already initialized")

	// ErrAlreadyRunning is returned when Start is called while running.
	ErrAlreadyRunning = errors.New("service: already running")

	// ErrNotRunning is returned when Stop or Restart is called while not
	// running.
	ErrNotRunning = errors.New("service: not running")
)
