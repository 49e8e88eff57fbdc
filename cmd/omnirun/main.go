// Command omnirun runs a prompt against any of the wrapped coding-agent
// backends and prints the result, either as final text or as the unified
// event stream.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/omnirun/omnirun/backend"
	"github.com/omnirun/omnirun/claude"
	"github.com/omnirun/omnirun/codex"
	"github.com/omnirun/omnirun/cursor"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "omnirun",
	Short: "One interface over claude, codex, and cursor CLI agents",
	Long: `Omnirun normalizes multiple coding-agent CLIs behind one run
interface: start or resume a thread, send a prompt, and consume either the
final result or a unified event stream, with deterministic cancellation.`,
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List registered backends",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range backend.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(backendsCmd)

	backend.Register("claude", func() backend.Adapter { return claude.NewAdapter() })
	backend.Register("codex", func() backend.Adapter { return codex.NewAdapter() })
	backend.Register("cursor", func() backend.Adapter { return cursor.NewAdapter() })
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger creates a structured logger with the configured verbosity.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
