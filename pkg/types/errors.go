package types

import "errors"

// Validation errors surfaced directly to callers. Callers match these with
// errors.Is; the engine wraps them with operation context.
var (
	// ErrAlreadyRunning is returned by StartIndex while a session is active
	ErrAlreadyRunning = errors.New("index session already running")

	// ErrNotRunning is returned by StopIndex when no session is active
	ErrNotRunning = errors.New("no index session running")

	// ErrNoWork is returned when a job request expands to zero files
	ErrNoWork = errors.New("no files to cache")

	// ErrProfileNotFound is returned when a profile reference resolves to nothing
	ErrProfileNotFound = errors.New("profile not found")

	// ErrJobNotFound is returned for operations on an unknown job id
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned for a disallowed job status change
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrPathDenied is returned for paths outside the configured allow-list
	ErrPathDenied = errors.New("path outside allowed roots")

	// ErrNotADirectory is returned when a directory operation targets a file
	ErrNotADirectory = errors.New("not a directory")

	// ErrEntryNotFound is returned when a catalog lookup misses
	ErrEntryNotFound = errors.New("entry not found")

	// ErrSessionNotFound is returned for operations on an unknown session id
	ErrSessionNotFound = errors.New("index session not found")
)
