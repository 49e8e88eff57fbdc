// Package codex wraps the codex CLI through its proto interface: a
// long-lived subprocess exchanging JSONL submissions and notifications
// over stdio. Unlike the out-of-process backends, the subprocess is owned
// by the client, so the run engine sees it as an in-process source.
package codex

import (
	"context"
	"log/slog"

	"github.com/omnirun/omnirun/backend"
	"github.com/omnirun/omnirun/run"
	"github.com/omnirun/omnirun/stream"
)

const providerName = "codex"

// NewAdapter builds the codex backend adapter.
func NewAdapter(opts ...backend.ThreadOption) backend.Adapter {
	return newAdapter(NewClient(), opts...)
}

func newAdapter(client Client, opts ...backend.ThreadOption) backend.Adapter {
	defaults := backend.Options{PermissionMode: backend.PermissionModeDefault}
	for _, opt := range opts {
		opt(&defaults)
	}
	a := &adapter{client: client}
	a.Core = &backend.Core{
		Name:         providerName,
		Defaults:     defaults,
		NativeSchema: true,
		Launch:       a.launch,
		NewNormalizer: func(th *backend.Thread) backend.Normalizer {
			return newNormalizer(th, slog.Default())
		},
	}
	return a
}

type adapter struct {
	*backend.Core
	client Client
}

func (a *adapter) launch(ctx context.Context, th *backend.Thread, req backend.Request, prompt string) (run.Unit, error) {
	opts := th.Options()

	schemaJSON, err := stream.SchemaJSON(req.OutputSchema)
	if err != nil {
		return nil, err
	}

	env := map[string]string{}
	for k, v := range opts.ExtraEnv {
		env[k] = v
	}
	for k, v := range req.ExtraEnv {
		env[k] = v
	}

	threadID := ""
	if th.Resuming() {
		threadID = th.ID()
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	src, err := a.client.Run(runCtx, RunRequest{
		Prompt:     prompt,
		Model:      opts.Model,
		WorkDir:    opts.WorkDir,
		CLIPath:    opts.CLIPath,
		ThreadID:   threadID,
		Sandbox:    sandboxMode(opts.PermissionMode),
		SchemaJSON: schemaJSON,
		Env:        env,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	return run.NewInline(src, cancel), nil
}

// sandboxMode translates the unified permission mode into the backend's
// sandbox vocabulary.
func sandboxMode(mode backend.PermissionMode) string {
	switch mode {
	case backend.PermissionModeBypass:
		return "danger-full-access"
	case backend.PermissionModePlan:
		return "read-only"
	}
	return ""
}
