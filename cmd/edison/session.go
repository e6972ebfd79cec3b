package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/edison-dev/edison/internal/config"
	"github.com/edison-dev/edison/internal/contextpayload"
	"github.com/edison-dev/edison/internal/entity"
	"github.com/edison-dev/edison/internal/session"
	"github.com/edison-dev/edison/internal/workflow"
	"github.com/spf13/cobra"
)

var (
	sessionOwner      string
	sessionBaseBranch string
	sessionNoWorktree bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions and their git worktrees",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a session record without a worktree",
	RunE:  runSessionNew,
}

var sessionStartCmd = &cobra.Command{
	Use:   "start [id]",
	Short: "Create (or resume) a session and its worktree",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionStart,
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show a session's state and worktree health",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionStatus,
}

var sessionCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Fold a session's Tasks/QA back into the global tree and close it",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionComplete,
}

var sessionContextCmd = &cobra.Command{
	Use:   "context <id>",
	Short: "Render the session's Markdown context payload",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionContext,
}

var sessionNextCmd = &cobra.Command{
	Use:   "next <id>",
	Short: "Render the session's bullet-list loop-driver payload",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionNext,
}

func init() {
	sessionStartCmd.Flags().StringVar(&sessionOwner, "owner", "", "session owner identity")
	sessionStartCmd.Flags().StringVar(&sessionBaseBranch, "base-branch", "", "branch to fork the worktree from (defaults to current branch)")
	sessionStartCmd.Flags().BoolVar(&sessionNoWorktree, "no-worktree", false, "create the session record without a worktree")
	sessionNewCmd.Flags().StringVar(&sessionOwner, "owner", "", "session owner identity")

	sessionCmd.AddCommand(sessionNewCmd, sessionStartCmd, sessionStatusCmd, sessionCompleteCmd, sessionContextCmd, sessionNextCmd)
	rootCmd.AddCommand(sessionCmd)
}

func sessionID(id string) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("session-%d", time.Now().Unix())
}

func sessionRepository(root string, sessCfg config.SessionConfig) *session.Repository {
	return session.NewRepository(filepath.Join(root, sessCfg.StatesDir), sessCfg.States)
}

func runSessionNew(cmd *cobra.Command, args []string) error {
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

	id := sessionID("")
	now := time.Now()
	sess := &session.Session{
		ID:        id,
		State:     sessCfg.States[0],
		Owner:     sessionOwner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	repo := sessionRepository(root, sessCfg)
	if err := repo.Save(sess); err != nil {
		return err
	}

	emitResult(sess, func() {
		fmt.Printf("Created session %s (%s)\n", sess.ID, sess.State)
	})
	return nil
}

func runSessionStart(cmd *cobra.Command, args []string) error {
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

	id := ""
	if len(args) == 1 {
		id = args[0]
	}

	repo := sessionRepository(root, sessCfg)
	var sess *session.Session
	if id != "" {
		sess, err = repo.Get(id)
	}
	if id == "" || err != nil {
		if id == "" {
			id = sessionID("")
		}
		now := time.Now()
		sess = &session.Session{ID: id, State: sessCfg.States[0], Owner: sessionOwner, CreatedAt: now, UpdatedAt: now}
	}

	if !sessionNoWorktree && sessCfg.Worktree.Mode != "never" {
		mgr := session.NewWorktreeManager(root, sessCfg.Worktree, wtCfg.RetryAttempts)
		base := sessionBaseBranch
		if base == "" {
			base = sessCfg.Worktree.BaseBranch
		}
		gitInfo, err := mgr.CreateOrReuse(sess.ID, base)
		if err != nil {
			return err
		}
		sess.Git = *gitInfo
	}

	if err := repo.Save(sess); err != nil {
		return err
	}

	emitResult(sess, func() {
		fmt.Printf("Session %s ready (%s)\n", sess.ID, sess.State)
		if sess.Git.WorktreePath != "" {
			fmt.Printf("  worktree: %s (branch %s)\n", sess.Git.WorktreePath, sess.Git.Branch)
		}
	})
	return nil
}

type sessionStatusOutput struct {
	*session.Session
	WorktreeHealthy *bool  `json:"worktreeHealthy,omitempty"`
	HealedBranch    string `json:"healedBranch,omitempty"`
}

func runSessionStatus(cmd *cobra.Command, args []string) error {
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

	repo := sessionRepository(root, sessCfg)
	sess, err := repo.Get(args[0])
	if err != nil {
		return err
	}

	out := sessionStatusOutput{Session: sess}
	if sess.Git.WorktreePath != "" {
		timeouts := sessCfg.Worktree.Timeouts
		if branch, healed, healErr := session.EnsureAttachedBranch(sess.Git.WorktreePath, timeouts.HealthCheck(), sessCfg.Worktree.BranchPrefix); healErr == nil {
			healthy := true
			out.WorktreeHealthy = &healthy
			if healed {
				out.HealedBranch = branch
				sess.Git.Branch = branch
				_ = repo.Save(sess)
			}
		} else {
			healthy := false
			out.WorktreeHealthy = &healthy
		}
	}

	emitResult(out, func() {
		fmt.Printf("%s: %s\n", sess.ID, sess.State)
		if sess.Git.WorktreePath != "" {
			fmt.Printf("  worktree: %s (branch %s)\n", sess.Git.WorktreePath, sess.Git.Branch)
			if out.WorktreeHealthy != nil {
				fmt.Printf("  healthy: %v\n", *out.WorktreeHealthy)
			}
			if out.HealedBranch != "" {
				fmt.Printf("  healed detached HEAD onto %s\n", out.HealedBranch)
			}
		}
	})
	return nil
}

func runSessionComplete(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := reg.Config(root, true)
	if err != nil {
		return err
	}

	wf, err := workflow.New(cfg, root)
	if err != nil {
		return err
	}
	if err := wf.CompleteSession(args[0]); err != nil {
		return err
	}

	emitResult(struct {
		ID string `json:"id"`
	}{ID: args[0]}, func() {
		fmt.Printf("Completed session %s\n", args[0])
	})
	return nil
}

// buildContextInput gathers the session, its claimed tasks, and actor
// identity that contextpayload.Build needs — contextpayload itself does no
// I/O, per its own package contract.
func buildContextInput(root, sessionIDArg string) (contextpayload.BuildInput, error) {
	cfg, err := reg.Config(root, true)
	if err != nil {
		return contextpayload.BuildInput{}, err
	}
	sessCfg, err := config.Session(cfg)
	if err != nil {
		return contextpayload.BuildInput{}, err
	}
	taskCfg, err := config.Task(cfg)
	if err != nil {
		return contextpayload.BuildInput{}, err
	}

	repo := sessionRepository(root, sessCfg)
	sess, err := repo.Get(sessionIDArg)
	if err != nil {
		return contextpayload.BuildInput{}, err
	}

	sessionTasksRoot := filepath.Join(root, sessCfg.StatesDir, sess.State, sess.ID, "tasks")
	taskRepo := entity.NewRepository(sessionTasksRoot, taskCfg.States)
	var wip []*entity.Entity
	if list, err := taskRepo.ListByState("wip"); err == nil {
		wip = list
	}

	return contextpayload.BuildInput{
		ProjectRoot:     root,
		SessionID:       sess.ID,
		IsEdisonProject: contextpayload.IsEdisonProject(root),
		Session:         sess,
		WipCandidates:   wip,
		Actor:           contextpayload.ResolveActorIdentity(root),
	}, nil
}

func runSessionContext(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	in, err := buildContextInput(root, args[0])
	if err != nil {
		return err
	}
	cfg, err := reg.Config(root, true)
	if err != nil {
		return err
	}

	payload := contextpayload.Build(in)
	if jsonOutput {
		writeSuccessJSON(contextpayload.Fields(payload, cfg))
		return nil
	}
	fmt.Println(contextpayload.RenderMarkdown(payload, cfg))
	return nil
}

func runSessionNext(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	in, err := buildContextInput(root, args[0])
	if err != nil {
		return err
	}
	cfg, err := reg.Config(root, true)
	if err != nil {
		return err
	}

	payload := contextpayload.Build(in)
	if jsonOutput {
		writeSuccessJSON(contextpayload.Fields(payload, cfg))
		return nil
	}
	for _, line := range contextpayload.RenderBulletList(payload, cfg) {
		fmt.Println(line)
	}
	return nil
}
