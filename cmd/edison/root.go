package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edison-dev/edison/internal/registry"
)

var (
	jsonOutput bool
	repoRoot   string

	reg = registry.New()
)

var rootCmd = &cobra.Command{
	Use:   "edison",
	Short: "Edison multi-agent workflow engine",
	Long: `edison drives a task/QA workflow across sessions and worktrees:
claiming and completing work, capturing command evidence, composing
agent-facing artifacts, and mounting vendored third-party trees.

Core Commands:
  init      Scaffold the management directory
  session   Session lifecycle (new, start, status, complete, context, next)
  task      Task workflow (claim, status, list, new, link, similar)
  qa        QA workflow (new, promote)
  evidence  Command-evidence capture and status
  git       Meta-worktree lifecycle
  rules     Inject applicable rules for the current context
  compose   Regenerate composed agent artifacts
  vendor    Vendor cache and mount management
  migrate   One-shot format migrations`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON instead of text")
	rootCmd.PersistentFlags().StringVar(&repoRoot, "repo-root", "", "override project root discovery (also AGENTS_PROJECT_ROOT)")
}

// Execute runs the root command, translating returned errors into the exit
// codes spec §6 names: 0 success, 1 handled error, 130 user cancellation.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		emitError(err, "CANCELLED")
		os.Exit(130)
	}

	emitError(err, classify(err))
	os.Exit(1)
}

func emitError(err error, code string) {
	if jsonOutput {
		writeJSON(os.Stdout, envelope{Success: false, Error: &errorPayload{Code: code, Message: err.Error()}})
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
}

func projectRoot() (string, error) {
	start, err := os.Getwd()
	if err != nil {
		return "", err
	}
	override := repoRoot
	if override == "" {
		override = os.Getenv("AGENTS_PROJECT_ROOT")
	}
	return reg.ProjectRoot(override, start)
}
