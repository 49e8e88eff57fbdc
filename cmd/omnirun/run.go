package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/omnirun/omnirun/backend"
	"github.com/omnirun/omnirun/stream"
)

var (
	backendName string
	model       string
	workDir     string
	resumeID    string
	schemaPath  string
	permission  string
	streamOut   bool
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run one prompt against a backend",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPrompt,
}

func init() {
	runCmd.Flags().StringVarP(&backendName, "backend", "b", "", "Backend to run against (claude, codex, cursor)")
	runCmd.Flags().StringVarP(&model, "model", "m", "", "Model override")
	runCmd.Flags().StringVarP(&workDir, "dir", "d", "", "Working directory for the agent")
	runCmd.Flags().StringVar(&resumeID, "resume", "", "Resume a prior thread by id")
	runCmd.Flags().StringVar(&schemaPath, "schema", "", "JSON Schema file constraining the output")
	runCmd.Flags().StringVar(&permission, "permission", "", "Permission mode (default, plan, bypass)")
	runCmd.Flags().BoolVar(&streamOut, "stream", false, "Print the unified event stream as NDJSON")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	slogger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	name := backendName
	if name == "" {
		name = cfg.Backend
	}
	if name == "" {
		return fmt.Errorf("no backend selected; pass --backend or set one in ~/.omnirun.yaml")
	}

	adapter, err := backend.New(name)
	if err != nil {
		return err
	}

	th := newThread(adapter, cfg)
	req := backend.Request{Prompt: strings.Join(args, " ")}

	if schemaPath != "" {
		schema, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("read schema: %w", err)
		}
		req.OutputSchema = json.RawMessage(schema)
	}

	// Ctrl-C cancels the run through the engine's escalation protocol; a
	// second one kills the CLI itself the usual way.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if streamOut {
		return streamRun(ctx, adapter, th, req, slogger)
	}
	return printRun(ctx, adapter, th, req)
}

func newThread(adapter backend.Adapter, cfg fileConfig) *backend.Thread {
	var opts []backend.ThreadOption
	if m := firstOf(model, cfg.Model); m != "" {
		opts = append(opts, backend.WithModel(m))
	}
	if d := firstOf(workDir, cfg.WorkDir); d != "" {
		opts = append(opts, backend.WithWorkDir(d))
	}
	if p := firstOf(permission, cfg.Permission); p != "" {
		opts = append(opts, backend.WithPermissionMode(backend.PermissionMode(p)))
	}
	if path := cfg.CLIPaths[adapter.Provider()]; path != "" {
		opts = append(opts, backend.WithCLIPath(path))
	}
	if len(cfg.Env) > 0 {
		opts = append(opts, backend.WithExtraEnv(cfg.Env))
	}

	if resumeID != "" {
		return adapter.ResumeThread(resumeID, opts...)
	}
	return adapter.StartThread(opts...)
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func printRun(ctx context.Context, adapter backend.Adapter, th *backend.Thread, req backend.Request) error {
	res, err := adapter.Run(ctx, th, req)
	if err != nil {
		return err
	}

	if res.Structured != nil {
		fmt.Println(string(res.Structured))
	} else {
		fmt.Println(res.Text)
	}
	if res.ThreadID != "" {
		fmt.Fprintf(os.Stderr, "thread: %s\n", res.ThreadID)
	}
	return nil
}

func streamRun(ctx context.Context, adapter backend.Adapter, th *backend.Thread, req backend.Request, logger *slog.Logger) error {
	events, err := adapter.RunStream(ctx, th, req)
	if err != nil {
		return err
	}

	w := stream.NewWriter(os.Stdout)
	var failed error
	for ev := range events {
		if err := w.Write(ev); err != nil {
			logger.Warn("dropped event", "error", err)
		}
		if ev.Type == stream.KindError {
			failed = fmt.Errorf("%s", ev.Message)
		}
	}
	return failed
}
