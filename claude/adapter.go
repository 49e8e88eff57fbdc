// Package claude wraps the Claude Code CLI in stream-json mode. The CLI is
// spawned per run; prompts go in over stdin, NDJSON events come back on
// stdout, and interrupts travel as control requests on the same stdin.
package claude

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/omnirun/omnirun/backend"
	"github.com/omnirun/omnirun/run"
)

const providerName = "claude"

const defaultCLIPath = "claude"

// NewAdapter builds the claude backend adapter.
func NewAdapter(opts ...backend.ThreadOption) backend.Adapter {
	a := &adapter{units: map[*backend.Thread]*run.ProcessUnit{}}

	defaults := backend.Options{PermissionMode: backend.PermissionModeDefault}
	for _, opt := range opts {
		opt(&defaults)
	}
	core := &backend.Core{
		Name:     providerName,
		Defaults: defaults,
		Launch:   a.launch,
		NewNormalizer: func(th *backend.Thread) backend.Normalizer {
			return newNormalizer(th, func() responder { return a.unit(th) }, slog.Default())
		},
	}
	a.Core = core
	return a
}

// adapter pairs the shared run engine with the per-thread process handle so
// the normalizer can write control responses back to the CLI that produced
// the request.
type adapter struct {
	*backend.Core

	mu    sync.Mutex
	units map[*backend.Thread]*run.ProcessUnit
}

func (a *adapter) unit(th *backend.Thread) responder {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.units[th]
	if !ok {
		return nil
	}
	return u
}

func (a *adapter) launch(ctx context.Context, th *backend.Thread, req backend.Request, prompt string) (run.Unit, error) {
	opts := th.Options()

	path := opts.CLIPath
	if path == "" {
		path = defaultCLIPath
	}

	env := map[string]string{}
	for k, v := range opts.ExtraEnv {
		env[k] = v
	}
	for k, v := range req.ExtraEnv {
		env[k] = v
	}

	unit, err := run.StartProcess(ctx, run.ProcessConfig{
		Path: path,
		Args: buildArgs(th, opts),
		Dir:  opts.WorkDir,
		Env:  env,
		AbortNotice: func() interface{} {
			return newInterruptRequest(uuid.NewString())
		},
	})
	if err != nil {
		return nil, err
	}

	if err := unit.WriteMessage(newUserTextMessage(prompt)); err != nil {
		_ = unit.Release()
		return nil, err
	}

	a.mu.Lock()
	a.units[th] = unit
	a.mu.Unlock()

	return &trackedUnit{ProcessUnit: unit, done: func() {
		a.mu.Lock()
		if a.units[th] == unit {
			delete(a.units, th)
		}
		a.mu.Unlock()
	}}, nil
}

// buildArgs assembles the CLI invocation for one run.
func buildArgs(th *backend.Thread, opts backend.Options) []string {
	args := []string{
		"--print",
		"--input-format", "stream-json",
		"--output-format", "stream-json",
		"--verbose",
	}

	if th.Resuming() && th.ID() != "" {
		args = append(args, "--resume", th.ID())
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", opts.SystemPrompt)
	}
	for _, tool := range opts.AllowedTools {
		args = append(args, "--allowed-tools", tool)
	}

	switch opts.PermissionMode {
	case backend.PermissionModeBypass:
		args = append(args, "--permission-mode", "bypassPermissions")
	case backend.PermissionModePlan:
		args = append(args, "--permission-mode", "plan")
	}

	return args
}

// trackedUnit unregisters the process handle when the run releases it.
type trackedUnit struct {
	*run.ProcessUnit
	done     func()
	doneOnce sync.Once
}

func (u *trackedUnit) Release() error {
	err := u.ProcessUnit.Release()
	u.doneOnce.Do(u.done)
	return err
}
