package main

import (
	"fmt"

	"github.com/edison-dev/edison/internal/config"
	"github.com/edison-dev/edison/internal/configschema"
	"github.com/edison-dev/edison/internal/session"
	"github.com/spf13/cobra"
)

var (
	gitCommitMessage string
	gitCommitPaths   []string
	gitGCDryRun      bool
)

var gitCmd = &cobra.Command{
	Use:   "git",
	Short: "Meta-worktree lifecycle and worktree maintenance",
}

var gitWorktreeMetaInitCmd = &cobra.Command{
	Use:   "worktree-meta-init",
	Short: "Create the shared-state meta worktree",
	RunE:  runGitWorktreeMetaInit,
}

var gitMetaStatusCmd = &cobra.Command{
	Use:   "meta-status",
	Short: "Report whether the meta worktree exists and is healthy",
	RunE:  runGitMetaStatus,
}

var gitMetaCommitCmd = &cobra.Command{
	Use:   "meta-commit",
	Short: "Commit shared-state paths inside the meta worktree",
	RunE:  runGitMetaCommit,
}

var gitWorktreeCmd = &cobra.Command{
	Use:   "worktree",
	Short: "Session worktree maintenance",
}

var gitWorktreeGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Prune orphaned session worktree references",
	RunE:  runGitWorktreeGC,
}

func init() {
	gitMetaCommitCmd.Flags().StringVarP(&gitCommitMessage, "message", "m", "", "commit message (required)")
	gitMetaCommitCmd.Flags().StringSliceVar(&gitCommitPaths, "path", nil, "shared-state paths to stage before committing")

	gitWorktreeGCCmd.Flags().BoolVar(&gitGCDryRun, "dry-run", false, "report what would be pruned without pruning")

	gitWorktreeCmd.AddCommand(gitWorktreeGCCmd)
	gitCmd.AddCommand(gitWorktreeMetaInitCmd, gitMetaStatusCmd, gitMetaCommitCmd, gitWorktreeCmd)
	rootCmd.AddCommand(gitCmd)
}

func metaWorktree(root string, sessCfg config.SessionConfig) (*session.MetaWorktree, error) {
	if sessCfg.Worktree.SharedState.Mode != "meta" {
		return nil, session.ErrSharedStateDisabled
	}
	return session.NewMetaWorktree(root, sessCfg.Worktree.SharedState, sessCfg.Worktree.Timeouts), nil
}

func runGitWorktreeMetaInit(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := reg.Config(root, true)
	if err != nil {
		return err
	}
	sessCfg, err := config.Session(cfg)
	if err != nil {
		return err
	}
	mw, err := metaWorktree(root, sessCfg)
	if err != nil {
		return err
	}
	if err := mw.Init(); err != nil {
		return err
	}

	emitResult(struct {
		Path   string `json:"path"`
		Branch string `json:"branch"`
	}{Path: mw.Path, Branch: mw.Branch}, func() {
		fmt.Printf("Meta worktree ready at %s (branch %s)\n", mw.Path, mw.Branch)
	})
	return nil
}

func runGitMetaStatus(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := reg.Config(root, true)
	if err != nil {
		return err
	}
	sessCfg, err := config.Session(cfg)
	if err != nil {
		return err
	}
	mw, err := metaWorktree(root, sessCfg)
	if err != nil {
		return err
	}
	exists, healthy := mw.Status()

	emitResult(struct {
		Exists  bool `json:"exists"`
		Healthy bool `json:"healthy"`
	}{Exists: exists, Healthy: healthy}, func() {
		fmt.Printf("exists: %v  healthy: %v\n", exists, healthy)
	})
	return nil
}

func runGitMetaCommit(cmd *cobra.Command, args []string) error {
	if gitCommitMessage == "" {
		return session.ErrEmptyCommitMessage
	}
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := reg.Config(root, true)
	if err != nil {
		return err
	}
	sessCfg, err := config.Session(cfg)
	if err != nil {
		return err
	}
	mw, err := metaWorktree(root, sessCfg)
	if err != nil {
		return err
	}
	if err := mw.Commit(gitCommitMessage, gitCommitPaths); err != nil {
		return err
	}

	emitResult(struct {
		Message string `json:"message"`
	}{Message: gitCommitMessage}, func() {
		fmt.Printf("Committed to meta worktree: %s\n", gitCommitMessage)
	})
	return nil
}

func runGitWorktreeGC(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := reg.Config(root, true)
	if err != nil {
		return err
	}
	sessCfg, err := config.Session(cfg)
	if err != nil {
		return err
	}
	wtCfg, err := config.Worktree(cfg)
	if err != nil {
		return err
	}
	if err := configschema.ValidateWorktree(wtCfg); err != nil {
		return err
	}

	mgr := session.NewWorktreeManager(root, sessCfg.Worktree, wtCfg.RetryAttempts)
	pruned, err := mgr.Prune(gitGCDryRun)
	if err != nil {
		return err
	}

	emitResult(struct {
		Pruned []string `json:"pruned"`
	}{Pruned: pruned}, func() {
		if len(pruned) == 0 {
			fmt.Println("nothing to prune")
			return
		}
		for _, p := range pruned {
			fmt.Println(p)
		}
	})
	return nil
}
