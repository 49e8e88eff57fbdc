package codex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/google/uuid"

	"github.com/omnirun/omnirun/internal/ndjson"
	"github.com/omnirun/omnirun/internal/procattr"
	"github.com/omnirun/omnirun/run"
)

// RunRequest describes one proto turn.
type RunRequest struct {
	Env        map[string]string
	Prompt     string
	Model      string
	WorkDir    string
	CLIPath    string
	ThreadID   string
	Sandbox    string
	SchemaJSON json.RawMessage
}

// Client starts proto turns. The default implementation spawns the codex
// CLI; tests substitute a scripted one.
type Client interface {
	Run(ctx context.Context, req RunRequest) (run.Source, error)
}

// protoClient spawns `codex proto` per turn.
type protoClient struct{}

// NewClient returns the subprocess-backed client.
func NewClient() Client {
	return protoClient{}
}

func (protoClient) Run(ctx context.Context, req RunRequest) (run.Source, error) {
	path := req.CLIPath
	if path == "" {
		path = "codex"
	}

	args := []string{"proto"}
	if req.Model != "" {
		args = append(args, "-c", "model="+req.Model)
	}
	if req.Sandbox != "" {
		args = append(args, "-c", "sandbox_mode="+req.Sandbox)
	}
	if req.ThreadID != "" {
		args = append(args, "-c", "experimental_resume="+req.ThreadID)
	}

	var schemaFile string
	if len(req.SchemaJSON) > 0 {
		f, err := os.CreateTemp("", "output-schema-*.json")
		if err != nil {
			return nil, fmt.Errorf("write output schema: %w", err)
		}
		if _, err := f.Write(req.SchemaJSON); err != nil {
			f.Close()
			os.Remove(f.Name())
			return nil, fmt.Errorf("write output schema: %w", err)
		}
		f.Close()
		schemaFile = f.Name()
		args = append(args, "--output-schema", schemaFile)
	}

	cmd := exec.Command(path, args...)
	cmd.Env = os.Environ()
	for k, v := range req.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if req.WorkDir != "" {
		cmd.Dir = req.WorkDir
	}
	procattr.Set(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &run.ExecutionError{Message: "failed to create stdin pipe", Cause: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &run.ExecutionError{Message: "failed to create stdout pipe", Cause: err}
	}

	if err := cmd.Start(); err != nil {
		if schemaFile != "" {
			os.Remove(schemaFile)
		}
		return nil, &run.ExecutionError{Message: "failed to start codex proto", Cause: err}
	}

	s := &protoSource{
		ctx:        ctx,
		cmd:        cmd,
		stdin:      stdin,
		events:     make(chan []byte, 64),
		schemaFile: schemaFile,
	}
	go s.readLoop(ndjson.NewReader(stdout))

	if err := s.writeOp(newUserInput(uuid.NewString(), req.Prompt)); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// protoSource adapts the proto subprocess to the in-process source shape:
// inner notification payloads on a channel, interrupt as a submission op.
type protoSource struct {
	ctx        context.Context
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	events     chan []byte
	schemaFile string

	errMu sync.Mutex
	err   error

	writeMu   sync.Mutex
	closeOnce sync.Once

	waitOnce sync.Once
	waitErr  error
}

// wait reaps the subprocess exactly once; every exit path funnels through
// it so a killed process never lingers as a zombie.
func (s *protoSource) wait() error {
	s.waitOnce.Do(func() { s.waitErr = s.cmd.Wait() })
	return s.waitErr
}

func (s *protoSource) Events() <-chan []byte { return s.events }

func (s *protoSource) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Interrupt asks the backend to stop the current turn.
func (s *protoSource) Interrupt() error {
	return s.writeOp(newInterrupt(uuid.NewString()))
}

// Close tears down the subprocess and removes the schema temp file.
func (s *protoSource) Close() error {
	s.closeOnce.Do(func() {
		s.stdin.Close()
		if s.cmd.Process != nil {
			_ = procattr.KillGroup(s.cmd.Process)
		}
		_ = s.wait()
		if s.schemaFile != "" {
			os.Remove(s.schemaFile)
		}
	})
	return nil
}

func (s *protoSource) writeOp(op submission) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.stdin.Write(append(payload, '\n')); err != nil {
		return &run.ExecutionError{Message: "failed to write submission", Cause: err}
	}
	return nil
}

// readLoop forwards inner notification payloads until stdout closes, then
// classifies the exit.
func (s *protoSource) readLoop(reader *ndjson.Reader) {
	defer close(s.events)

	for {
		line, err := reader.ReadLine()
		if err != nil {
			break
		}
		// Notifications arrive as {"id":...,"msg":{...}}; the inner msg
		// is the native payload. Bare payloads pass through as-is.
		payload := line
		if inner, _, _, err := jsonparser.Get(line, "msg"); err == nil {
			payload = inner
		}
		select {
		case s.events <- payload:
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			_ = s.wait()
			return
		}
	}

	waitErr := s.wait()
	switch {
	case s.ctx.Err() != nil:
		s.setErr(s.ctx.Err())
	case waitErr != nil:
		exitCode := -1
		if ee, ok := waitErr.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		s.setErr(&run.ExecutionError{
			Message:  "codex proto exited",
			ExitCode: exitCode,
			Cause:    waitErr,
		})
	}
}

func (s *protoSource) setErr(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}
