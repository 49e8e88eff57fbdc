// Package cursor wraps the Cursor Agent CLI. The CLI is one-shot: the
// prompt goes on the command line, NDJSON events come back on stdout, and
// there is no control channel, so cancellation starts at stdin close plus
// SIGINT and escalates from there.
package cursor

import (
	"context"
	"log/slog"

	"github.com/omnirun/omnirun/backend"
	"github.com/omnirun/omnirun/run"
)

const providerName = "cursor"

const defaultCLIPath = "cursor-agent"

// NewAdapter builds the cursor backend adapter.
func NewAdapter(opts ...backend.ThreadOption) backend.Adapter {
	defaults := backend.Options{PermissionMode: backend.PermissionModeDefault}
	for _, opt := range opts {
		opt(&defaults)
	}
	return &backend.Core{
		Name:     providerName,
		Defaults: defaults,
		Launch:   launch,
		NewNormalizer: func(th *backend.Thread) backend.Normalizer {
			return newNormalizer(th, slog.Default())
		},
	}
}

func launch(ctx context.Context, th *backend.Thread, req backend.Request, prompt string) (run.Unit, error) {
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

	return run.StartProcess(ctx, run.ProcessConfig{
		Path: path,
		Args: buildArgs(th, opts, prompt),
		Dir:  opts.WorkDir,
		Env:  env,
	})
}

// buildArgs assembles the one-shot invocation:
// cursor-agent chat -p <prompt> --output-format stream-json [options]
func buildArgs(th *backend.Thread, opts backend.Options, prompt string) []string {
	args := []string{
		"chat",
		"-p", prompt,
		"--output-format", "stream-json",
	}

	if th.Resuming() && th.ID() != "" {
		args = append(args, "--resume", th.ID())
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.PermissionMode == backend.PermissionModeBypass {
		args = append(args, "--force")
	}

	return args
}
