package run

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a scriptable in-process event source.
type fakeSource struct {
	events      chan []byte
	err         error
	interrupted bool
	closed      bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan []byte, 8)}
}

func (s *fakeSource) Events() <-chan []byte { return s.events }
func (s *fakeSource) Err() error            { return s.err }
func (s *fakeSource) Interrupt() error      { s.interrupted = true; return nil }
func (s *fakeSource) Close() error          { s.closed = true; return nil }

func TestInlineUnitStreamsPayloads(t *testing.T) {
	src := newFakeSource()
	unit := NewInline(src, func() {})

	src.events <- []byte(`{"n":1}`)
	payload, err := unit.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, string(payload))

	close(src.events)
	_, err = unit.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestInlineUnitTerminalError(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("sdk blew up")
	unit := NewInline(src, func() {})

	close(src.events)
	_, err := unit.Next(context.Background())

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestInlineUnitContextErrorPassesThrough(t *testing.T) {
	src := newFakeSource()
	src.err = context.Canceled
	unit := NewInline(src, func() {})

	close(src.events)
	_, err := unit.Next(context.Background())

	// Abort exceptions are not execution failures; the supervisor remaps
	// them to the cancellation outcome.
	assert.ErrorIs(t, err, context.Canceled)
	var execErr *ExecutionError
	assert.False(t, errors.As(err, &execErr))
}

func TestInlineUnitCancelNotice(t *testing.T) {
	src := newFakeSource()
	cancelled := false
	unit := NewInline(src, func() { cancelled = true })

	require.NoError(t, unit.CancelNotice())
	assert.True(t, src.interrupted, "source's own interrupt is called when present")
	assert.True(t, cancelled, "linked context is cancelled")
}

func TestInlineUnitReleaseClosesSource(t *testing.T) {
	src := newFakeSource()
	unit := NewInline(src, func() {})

	require.NoError(t, unit.Release())
	assert.True(t, src.closed)

	// Idempotent.
	require.NoError(t, unit.Release())
}
