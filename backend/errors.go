package backend

import "errors"

// Sentinel errors for caller-side usage violations. These fail fast and
// synchronously, before any process is spawned.
var (
	// ErrRunActive is returned when a second run is issued on a thread
	// whose active-run slot is occupied. Callers serialize their own runs
	// per thread; there is no queueing and no silent replacement.
	ErrRunActive = errors.New("a run is already active on this thread")

	// ErrUnknownBackend is returned by the registry for unregistered names.
	ErrUnknownBackend = errors.New("unknown backend")
)
