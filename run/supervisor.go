package run

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Default escalation windows. The grace window bounds how long a backend
// gets to honor the cooperative abort notice; the kill window bounds
// worst-case cancellation latency against an unresponsive backend.
const (
	DefaultGraceWindow = 250 * time.Millisecond
	DefaultKillWindow  = 1500 * time.Millisecond
)

// Unit is one isolated backend invocation: a subprocess or an in-process
// cancellable operation. The supervisor drives it through this interface
// and never inspects which shape it is.
type Unit interface {
	// Next returns the next native event payload. io.EOF signals clean
	// close; any other error is terminal.
	Next(ctx context.Context) ([]byte, error)

	// CancelNotice delivers the cooperative abort request.
	CancelNotice() error

	// Terminate asks the unit to stop (SIGTERM for processes).
	Terminate() error

	// Kill forces the unit down.
	Kill() error

	// Release reaps resources. Must be idempotent.
	Release() error
}

// Config configures a Supervisor.
type Config struct {
	Clock       Clock
	Logger      *slog.Logger
	OnCleanup   func()
	Provider    string
	GraceWindow time.Duration
	KillWindow  time.Duration
}

// Supervisor owns exactly one Unit and its cancellation lifecycle. All exit
// paths converge on an idempotent cleanup that stops both escalation
// timers, releases the unit, and runs the OnCleanup hook exactly once.
type Supervisor struct {
	unit   Unit
	cfg    Config
	state  *stateMachine
	done   chan struct{}
	logger *slog.Logger

	mu         sync.Mutex
	aborted    bool
	reason     string
	graceTimer Timer
	killTimer  Timer

	cleanupOnce sync.Once
}

// New creates an idle supervisor.
func New(cfg Config) *Supervisor {
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = DefaultGraceWindow
	}
	if cfg.KillWindow <= 0 {
		cfg.KillWindow = DefaultKillWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		cfg:    cfg,
		state:  newStateMachine(),
		done:   make(chan struct{}),
		logger: logger.With("provider", cfg.Provider),
	}
}

// State returns the current run state.
func (s *Supervisor) State() State {
	return s.state.Current()
}

// Aborted reports whether cancellation was requested, and the reason.
func (s *Supervisor) Aborted() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted, s.reason
}

// Done closes when the supervisor has been cleaned up.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Launch transitions to Launching and invokes start to create the unit.
// A start failure lands the run in Failed with cleanup already done, so a
// spawn error never leaks a timer or a slot.
func (s *Supervisor) Launch(start func() (Unit, error)) error {
	if err := s.state.to(StateLaunching); err != nil {
		return ErrAlreadyLaunched
	}

	unit, err := start()
	if err != nil {
		if e := s.state.to(StateFailed); e != nil {
			// A cancel landed mid-spawn; resolve Cancelling.
			_ = s.state.to(StateCancelled)
		}
		s.cleanup()
		return err
	}

	s.mu.Lock()
	s.unit = unit
	pending := s.aborted
	if pending {
		s.arm(unit)
	}
	s.mu.Unlock()

	if pending {
		// Cancelled while start was spawning; the unit missed the notice,
		// so deliver it now that there is something to escalate against.
		s.notify(unit)
		return nil
	}

	_ = s.state.to(StateStreaming)
	return nil
}

// Bind propagates external cancellation: when ctx is cancelled before the
// run finishes, the supervisor's own cancellation protocol starts. The
// watcher exits when the run is cleaned up.
func (s *Supervisor) Bind(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.Cancel(ctx.Err().Error())
		case <-s.done:
		}
	}()
}

// Cancel starts the cancellation protocol: cooperative notice now,
// terminate after the grace window, kill after the kill window. Idempotent;
// repeated calls and calls after completion are no-ops. The timers are
// armed exactly once per run.
func (s *Supervisor) Cancel(reason string) {
	s.mu.Lock()
	if s.aborted || s.state.Current().Terminal() {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	s.reason = reason
	unit := s.unit

	_ = s.state.to(StateCancelling)

	if unit != nil {
		s.arm(unit)
	}
	s.mu.Unlock()

	if unit != nil {
		s.notify(unit)
	}
	// No unit yet: Launch arms the escalation once the unit lands.
}

// arm starts both escalation timers against unit. Caller holds mu.
func (s *Supervisor) arm(unit Unit) {
	s.graceTimer = s.cfg.Clock.AfterFunc(s.cfg.GraceWindow, func() {
		s.logger.Debug("grace window elapsed, terminating run")
		_ = unit.Terminate()
	})
	s.killTimer = s.cfg.Clock.AfterFunc(s.cfg.KillWindow, func() {
		s.logger.Debug("kill window elapsed, killing run")
		_ = unit.Kill()
	})
}

func (s *Supervisor) notify(unit Unit) {
	if err := unit.CancelNotice(); err != nil {
		s.logger.Debug("abort notice failed", "error", err)
	}
}

// Next yields the next native payload from the unit. Once cancellation has
// been requested, every unit error (including clean close) is remapped to
// the cancellation outcome so a killed process never surfaces as a generic
// failure.
func (s *Supervisor) Next(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	unit := s.unit
	s.mu.Unlock()
	if unit == nil {
		return nil, ErrNotLaunched
	}

	payload, err := unit.Next(ctx)
	if err == nil {
		return payload, nil
	}

	if aborted, reason := s.Aborted(); aborted {
		return nil, &AbortError{Reason: reason}
	}
	if err == io.EOF {
		return nil, io.EOF
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Raced with an external cancel that did not go through Cancel.
		return nil, &AbortError{Reason: err.Error()}
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return nil, err
	}
	return nil, &ExecutionError{Message: "backend event source failed", Cause: err}
}

// Finish records the terminal outcome and runs cleanup. err nil means
// Completed; an AbortError means Cancelled; anything else means Failed.
// Safe to call on every exit path; only the first terminal transition
// takes effect.
func (s *Supervisor) Finish(err error) {
	switch {
	case err == nil:
		if e := s.state.to(StateCompleted); e != nil {
			// A cancel won the race; resolve Cancelling.
			_ = s.state.to(StateCancelled)
		}
	case IsInterrupted(err):
		_ = s.state.to(StateCancelling)
		_ = s.state.to(StateCancelled)
	default:
		if e := s.state.to(StateFailed); e != nil {
			_ = s.state.to(StateCancelled)
		}
	}
	s.cleanup()
}

// cleanup stops both escalation timers, releases the unit, and runs the
// OnCleanup hook. Runs at most once; later invocations are no-ops, so
// double cleanup from racing exit paths is harmless.
func (s *Supervisor) cleanup() {
	s.cleanupOnce.Do(func() {
		s.mu.Lock()
		if s.graceTimer != nil {
			s.graceTimer.Stop()
			s.graceTimer = nil
		}
		if s.killTimer != nil {
			s.killTimer.Stop()
			s.killTimer = nil
		}
		unit := s.unit
		s.mu.Unlock()

		if unit != nil {
			if err := unit.Release(); err != nil {
				s.logger.Debug("unit release failed", "error", err)
			}
		}
		if s.cfg.OnCleanup != nil {
			s.cfg.OnCleanup()
		}
		close(s.done)
	})
}
