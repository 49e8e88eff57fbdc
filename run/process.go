package run

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/omnirun/omnirun/internal/ndjson"
	"github.com/omnirun/omnirun/internal/procattr"
)

// stderrTailSize bounds the diagnostic output kept for ExecutionError.
const stderrTailSize = 4096

// ProcessConfig describes how to spawn an out-of-process backend.
type ProcessConfig struct {
	// AbortNotice builds the cooperative abort control message written to
	// the backend's stdin on cancellation. Nil means the backend has no
	// control channel: stdin is closed and the process group receives
	// SIGINT instead.
	AbortNotice func() interface{}

	Env  map[string]string
	Path string
	Dir  string
	Args []string
}

// ProcessUnit runs a backend CLI as a subprocess in its own process group.
// Native events are the JSON lines it writes to stdout; the control channel
// is its stdin.
type ProcessUnit struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *ndjson.Reader
	notice func() interface{}

	stderrMu   sync.Mutex
	stderrTail []byte

	exited      chan struct{}
	waitOnce    sync.Once
	waitErr     error
	releaseOnce sync.Once

	writeMu sync.Mutex
}

// StartProcess spawns the backend CLI described by cfg.
func StartProcess(ctx context.Context, cfg ProcessConfig) (*ProcessUnit, error) {
	// Plain Command, not CommandContext: context cancellation must flow
	// through the supervisor's escalation protocol, not an immediate kill.
	cmd := exec.Command(cfg.Path, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if cfg.Dir != "" {
		cmd.Dir = cfg.Dir
	}
	procattr.Set(cmd)

	u := &ProcessUnit{
		cmd:    cmd,
		notice: cfg.AbortNotice,
		exited: make(chan struct{}),
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &ExecutionError{Message: "failed to create stdin pipe", Cause: err}
	}
	u.stdin = stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ExecutionError{Message: "failed to create stdout pipe", Cause: err}
	}
	u.reader = ndjson.NewReader(stdout)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &ExecutionError{Message: "failed to create stderr pipe", Cause: err}
	}
	go u.drainStderr(stderr)

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, &ExecutionError{Message: "CLI binary not found: " + cfg.Path, Cause: err}
		}
		return nil, &ExecutionError{Message: "failed to start backend process", Cause: err}
	}
	_ = ctx // spawn is synchronous; lifecycle control is the supervisor's

	return u, nil
}

// WriteMessage sends one JSON line over the backend's stdin.
func (u *ProcessUnit) WriteMessage(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	u.writeMu.Lock()
	defer u.writeMu.Unlock()
	if _, err := u.stdin.Write(append(data, '\n')); err != nil {
		return &ExecutionError{Message: "control channel write failed", Cause: err}
	}
	return nil
}

// Next returns the next stdout line. On stream close it reaps the process
// and classifies the exit: zero status is io.EOF, nonzero becomes an
// ExecutionError carrying the exit code and captured stderr.
func (u *ProcessUnit) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	line, err := u.reader.ReadLine()
	if err == nil {
		return line, nil
	}
	if err != io.EOF {
		return nil, &ExecutionError{Message: "backend stdout read failed", Cause: err}
	}

	waitErr := u.wait()
	if waitErr == nil {
		return nil, io.EOF
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return nil, &ExecutionError{
			Message:  "backend process exited",
			ExitCode: exitErr.ExitCode(),
			Stderr:   u.StderrTail(),
			Cause:    waitErr,
		}
	}
	return nil, &ExecutionError{Message: "backend process wait failed", Cause: waitErr}
}

// CancelNotice delivers the cooperative abort request: the backend's
// control message when it has a control channel, otherwise stdin close
// plus SIGINT to the group.
func (u *ProcessUnit) CancelNotice() error {
	if u.notice != nil {
		return u.WriteMessage(u.notice())
	}
	_ = u.stdin.Close()
	return procattr.InterruptGroup(u.cmd.Process)
}

// Terminate sends SIGTERM to the process group.
func (u *ProcessUnit) Terminate() error {
	return procattr.TerminateGroup(u.cmd.Process)
}

// Kill sends SIGKILL to the process group.
func (u *ProcessUnit) Kill() error {
	return procattr.KillGroup(u.cmd.Process)
}

// Release closes the control channel and guarantees the process is reaped,
// escalating if it is still alive. Idempotent.
func (u *ProcessUnit) Release() error {
	u.releaseOnce.Do(func() {
		_ = u.stdin.Close()

		go func() { _ = u.wait() }()
		select {
		case <-u.exited:
			return
		case <-time.After(500 * time.Millisecond):
		}

		_ = procattr.TerminateGroup(u.cmd.Process)
		select {
		case <-u.exited:
			return
		case <-time.After(500 * time.Millisecond):
		}

		_ = procattr.KillGroup(u.cmd.Process)
		select {
		case <-u.exited:
		case <-time.After(time.Second):
		}
	})
	return nil
}

// StderrTail returns the most recent captured stderr output.
func (u *ProcessUnit) StderrTail() string {
	u.stderrMu.Lock()
	defer u.stderrMu.Unlock()
	return string(u.stderrTail)
}

func (u *ProcessUnit) wait() error {
	u.waitOnce.Do(func() {
		u.waitErr = u.cmd.Wait()
		close(u.exited)
	})
	return u.waitErr
}

func (u *ProcessUnit) drainStderr(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			u.stderrMu.Lock()
			u.stderrTail = append(u.stderrTail, buf[:n]...)
			if len(u.stderrTail) > stderrTailSize {
				u.stderrTail = u.stderrTail[len(u.stderrTail)-stderrTailSize:]
			}
			u.stderrMu.Unlock()
		}
		if err != nil {
			return
		}
	}
}
