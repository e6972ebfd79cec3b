package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	initNonInteractive  bool
	initForce           bool
	initMerge           bool
	initReconfigure     bool
	initSkipMCP         bool
	initMCPScript       string
	initSkipCompose     bool
	initEnableWorktrees bool
	initDisableWorktree bool
)

// managementDirs are every <repo>/.project subdirectory init scaffolds,
// mirroring spec §6's on-disk layout.
var managementDirs = []string{
	".project/tasks/todo",
	".project/tasks/wip",
	".project/tasks/done",
	".project/tasks/validated",
	".project/qa/waiting",
	".project/qa/todo",
	".project/qa/wip",
	".project/qa/done",
	".project/qa/approved",
	".project/qa/rejected",
	".project/qa/validation-evidence",
	".project/sessions/draft",
	".project/sessions/wip",
	".project/sessions/done",
	".project/archive/sessions",
}

var edisonDirs = []string{
	".edison/agents",
	".edison/validators",
	".edison/guidelines",
	".edison/constitutions",
	".edison/_generated",
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Scaffold the management directory",
	Long: `init creates .project/ (tasks, QA, sessions, archive) and .edison/
(project overlays, composed outputs) under the target path, defaulting to
the current directory.

Safe to run more than once: a second run without flags reports that the
directory is already initialized and changes nothing. With --force, --merge
or --reconfigure, missing directories are created and existing ones are left
alone; only --reconfigure rewrites .edison/config.yaml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initNonInteractive, "non-interactive", false, "never prompt; fail instead of asking")
	initCmd.Flags().BoolVar(&initForce, "force", false, "proceed on an existing management directory, creating any missing directories")
	initCmd.Flags().BoolVar(&initMerge, "merge", false, "merge into an existing management directory, creating any missing directories")
	initCmd.Flags().BoolVar(&initReconfigure, "reconfigure", false, "rewrite .edison/config.yaml from defaults")
	initCmd.Flags().BoolVar(&initSkipMCP, "skip-mcp", false, "skip MCP registration")
	initCmd.Flags().StringVar(&initMCPScript, "mcp-script", "", "path to a custom MCP registration script")
	initCmd.Flags().BoolVar(&initSkipCompose, "skip-compose", false, "skip the initial compose pass")
	initCmd.Flags().BoolVar(&initEnableWorktrees, "enable-worktrees", false, "force session.worktree.mode=always in the generated config")
	initCmd.Flags().BoolVar(&initDisableWorktree, "disable-worktrees", false, "force session.worktree.mode=never in the generated config")
	rootCmd.AddCommand(initCmd)
}

type initOutput struct {
	Path            string   `json:"path"`
	Created         []string `json:"created"`
	AlreadyPresent  bool     `json:"alreadyPresent"`
	WorktreesForced string   `json:"worktreesForced,omitempty"`
}

func runInit(cmd *cobra.Command, args []string) error {
	if initEnableWorktrees && initDisableWorktree {
		return fmt.Errorf("--enable-worktrees and --disable-worktrees are mutually exclusive")
	}

	target := "."
	if len(args) == 1 {
		target = args[0]
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", target, err)
	}

	mgmtDir := filepath.Join(abs, ".project")
	alreadyPresent := dirExists(mgmtDir)
	if alreadyPresent && !initForce && !initMerge && !initReconfigure {
		emitResult(initOutput{Path: abs, AlreadyPresent: true}, func() {
			fmt.Printf("Edison already initialized in %s (pass --merge, --force, or --reconfigure to change it)\n", abs)
		})
		return nil
	}

	var created []string
	for _, dir := range append(append([]string{}, managementDirs...), edisonDirs...) {
		full := filepath.Join(abs, dir)
		if dirExists(full) {
			continue
		}
		if err := os.MkdirAll(full, 0o700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		created = append(created, dir)
	}

	if err := writeProjectConfig(abs, initReconfigure); err != nil {
		return err
	}

	worktreesForced := ""
	if initEnableWorktrees {
		worktreesForced = "always"
	} else if initDisableWorktree {
		worktreesForced = "never"
	}
	if worktreesForced != "" {
		if err := overlayWorktreeMode(abs, worktreesForced); err != nil {
			return err
		}
	}

	out := initOutput{Path: abs, Created: created, AlreadyPresent: alreadyPresent, WorktreesForced: worktreesForced}
	emitResult(out, func() {
		fmt.Printf("Initialized Edison management dir in %s\n", abs)
		for _, dir := range created {
			fmt.Printf("  %s/\n", dir)
		}
		if worktreesForced != "" {
			fmt.Printf("  session.worktree.mode = %s\n", worktreesForced)
		}
	})
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// writeProjectConfig ensures .edison/config.yaml exists, writing an empty
// overlay (core.yaml's defaults apply unless reconfigure asks for a reset).
func writeProjectConfig(repoRoot string, reconfigure bool) error {
	path := filepath.Join(repoRoot, ".edison", "config.yaml")
	if !reconfigure {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}
	const stub = "# Project-level overlay. Every core.yaml section may be overridden here.\n"
	return os.WriteFile(path, []byte(stub), 0o600)
}

// overlayWorktreeMode appends a session.worktree.mode override, since
// --enable-worktrees/--disable-worktrees are a convenience over hand-editing
// config.yaml.
func overlayWorktreeMode(repoRoot, mode string) error {
	path := filepath.Join(repoRoot, ".edison", "config.yaml")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("overlay worktree mode: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "session:\n  worktree:\n    mode: %s\n", mode)
	return err
}
