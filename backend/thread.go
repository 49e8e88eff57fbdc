package backend

import (
	"sync"

	"github.com/omnirun/omnirun/run"
)

// Thread is one conversational session against one backend. It holds the
// session identity (which the backend may assign or rotate mid-run), merged
// options, and at most one active run.
//
// The active-run slot is the only mutable state shared between a completing
// run and a newly issued one. It is written exclusively by the supervisor's
// launch and cleanup paths, which is what makes the single-run invariant a
// synchronous check rather than a race.
type Thread struct {
	mu       sync.Mutex
	provider string
	id       string
	resuming bool
	opts     Options
	current  *run.Supervisor
}

// NewThread creates a thread. resuming marks that the backend should be
// asked to continue prior context rather than start fresh.
func NewThread(provider, id string, resuming bool, opts Options) *Thread {
	return &Thread{provider: provider, id: id, resuming: resuming, opts: opts}
}

// Provider returns the owning backend name.
func (t *Thread) Provider() string { return t.provider }

// ID returns the session id, empty until the backend assigns one.
func (t *Thread) ID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

// SetID rewrites the thread identity in place. Backends assign ids on the
// first message and may rotate them; subsequent calls, including Interrupt,
// must address the current backend session.
func (t *Thread) SetID(id string) {
	if id == "" {
		return
	}
	t.mu.Lock()
	t.id = id
	t.mu.Unlock()
}

// Resuming reports whether this thread continues a prior backend session.
func (t *Thread) Resuming() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resuming || t.id != ""
}

// Options returns the merged thread options.
func (t *Thread) Options() Options { return t.opts }

// Busy reports whether a run is active.
func (t *Thread) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}

// Interrupt cancels whatever run is currently active. No-op when idle.
func (t *Thread) Interrupt(reason string) {
	t.mu.Lock()
	sup := t.current
	t.mu.Unlock()
	if sup != nil {
		sup.Cancel(reason)
	}
}

// begin reserves the active-run slot. Fails with ErrRunActive when a run is
// in flight; this check happens before any process is spawned.
func (t *Thread) begin(sup *run.Supervisor) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		return ErrRunActive
	}
	t.current = sup
	return nil
}

// clearRun empties the slot if it still holds sup. Called unconditionally
// from the supervisor's cleanup on every exit path.
func (t *Thread) clearRun(sup *run.Supervisor) {
	t.mu.Lock()
	if t.current == sup {
		t.current = nil
	}
	t.mu.Unlock()
}
