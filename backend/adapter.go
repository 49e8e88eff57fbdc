package backend

import (
	"context"
	"encoding/json"

	"github.com/omnirun/omnirun/stream"
)

// Adapter is the public surface of one backend: thread lifecycle plus the
// two run operations.
type Adapter interface {
	// Provider returns the backend name (e.g. "claude", "codex", "cursor").
	Provider() string

	// StartThread creates a fresh thread from adapter defaults plus
	// call-time overrides.
	StartThread(opts ...ThreadOption) *Thread

	// ResumeThread creates a thread addressing a prior backend session.
	ResumeThread(id string, opts ...ThreadOption) *Thread

	// Run executes one prompt to completion and returns the accumulated
	// result. Cancellation flows through ctx or Thread.Interrupt.
	Run(ctx context.Context, th *Thread, req Request) (*Result, error)

	// RunStream executes one prompt and yields unified events as they
	// arrive. The channel closes after the terminal event.
	RunStream(ctx context.Context, th *Thread, req Request) (<-chan stream.Event, error)
}

// Normalizer maps one backend's native vocabulary into unified events. One
// instance serves one run and carries the per-run mapping state (identity
// seen, terminal reached).
type Normalizer interface {
	// Map translates one native payload into zero or more unified events.
	// Malformed payloads are dropped, not fatal; unrecognized shapes map
	// to progress events.
	Map(line []byte) []stream.Event

	// Finish synthesizes the terminal event when the source closed cleanly
	// without an explicit one. Returns nil if a terminal was already
	// emitted.
	Finish() []stream.Event
}

// StructuredProvider is implemented by normalizers for backends with a
// native schema-constrained output mode; Structured returns the payload
// read directly from the backend's result envelope.
type StructuredProvider interface {
	Structured() json.RawMessage
}
