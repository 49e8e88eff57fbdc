package run

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Source is the in-process backend shape: an SDK object that streams native
// payloads on a channel and reports its terminal error after close.
type Source interface {
	// Events streams native payloads. Closed when the operation ends.
	Events() <-chan []byte

	// Err returns the terminal error after Events closes, nil for a clean
	// finish.
	Err() error
}

// Interrupter is implemented by sources with their own interrupt call; the
// unit invokes it as the cooperative abort step.
type Interrupter interface {
	Interrupt() error
}

// InlineUnit adapts an in-process Source to the Unit interface. There is no
// OS process to signal, so every escalation step resolves to cancelling the
// linked context; the abort exception that produces is remapped by the
// supervisor to the unified cancellation outcome rather than surfacing as a
// low-level error.
type InlineUnit struct {
	src         Source
	cancel      context.CancelFunc
	releaseOnce sync.Once
}

// NewInline wraps src. cancel is the controller linked to the operation's
// context; it must be non-nil.
func NewInline(src Source, cancel context.CancelFunc) *InlineUnit {
	return &InlineUnit{src: src, cancel: cancel}
}

// Next returns the next payload from the source.
func (u *InlineUnit) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload, ok := <-u.src.Events():
		if ok {
			return payload, nil
		}
	}

	err := u.src.Err()
	if err == nil {
		return nil, io.EOF
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return nil, err
	}
	return nil, &ExecutionError{Message: "in-process backend failed", Cause: err}
}

// CancelNotice calls the source's own interrupt if it has one, then cancels
// the linked context.
func (u *InlineUnit) CancelNotice() error {
	var err error
	if ir, ok := u.src.(Interrupter); ok {
		err = ir.Interrupt()
	}
	u.cancel()
	return err
}

// Terminate cancels the linked context; in-process operations have no
// stronger lever.
func (u *InlineUnit) Terminate() error {
	u.cancel()
	return nil
}

// Kill cancels the linked context.
func (u *InlineUnit) Kill() error {
	u.cancel()
	return nil
}

// Release cancels the context and closes the source if it is closeable.
func (u *InlineUnit) Release() error {
	var err error
	u.releaseOnce.Do(func() {
		u.cancel()
		if c, ok := u.src.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
