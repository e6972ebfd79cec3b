package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edison-dev/edison/internal/config"
)

// MetaWorktree is the one extra worktree Edison maintains on a dedicated
// branch for shared cross-session state, per spec §4.6's
// worktrees.sharedState.mode == "meta" mode.
type MetaWorktree struct {
	RepoRoot    string
	Branch      string
	Path        string
	SharedPaths []string
	Timeouts    config.SessionWorktreeTimeouts
}

// NewMetaWorktree builds a MetaWorktree from the session.worktree.shared_state
// façade.
func NewMetaWorktree(repoRoot string, facet config.SessionSharedStateFacet, timeouts config.SessionWorktreeTimeouts) *MetaWorktree {
	branch := facet.Branch
	if branch == "" {
		branch = "edison-meta"
	}
	path := facet.Path
	if path == "" {
		path = ".worktrees/_meta"
	}
	return &MetaWorktree{
		RepoRoot:    repoRoot,
		Branch:      branch,
		Path:        filepath.Join(repoRoot, path),
		SharedPaths: facet.SharedPaths,
		Timeouts:    timeouts,
	}
}

// Init creates the meta worktree if it doesn't already exist, checking out
// the dedicated branch if it already exists or branching it from the
// current branch otherwise. Idempotent.
func (mw *MetaWorktree) Init() error {
	if isHealthyWorktree(mw.Path, mw.Timeouts.HealthCheck()) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(mw.Path), 0o700); err != nil {
		return err
	}

	if branchExists(mw.RepoRoot, mw.Branch, mw.Timeouts.BranchCheck()) {
		_, err := runGit(mw.RepoRoot, mw.Timeouts.WorktreeAdd(), "worktree", "add", mw.Path, mw.Branch)
		return err
	}

	base, err := currentBranch(mw.RepoRoot, mw.Timeouts.BranchCheck())
	if err != nil {
		return err
	}
	return worktreeAdd(mw.RepoRoot, mw.Path, mw.Branch, base, mw.Timeouts.WorktreeAdd())
}

// Status reports whether the meta worktree directory exists and, if so,
// whether it is a healthy git worktree.
func (mw *MetaWorktree) Status() (exists, healthy bool) {
	if _, err := os.Stat(mw.Path); os.IsNotExist(err) {
		return false, false
	}
	return true, isHealthyWorktree(mw.Path, mw.Timeouts.HealthCheck())
}

func (mw *MetaWorktree) isShared(path string) bool {
	clean := filepath.ToSlash(path)
	for _, prefix := range mw.SharedPaths {
		if strings.HasPrefix(clean, filepath.ToSlash(prefix)) {
			return true
		}
	}
	return false
}

// Commit stages paths and commits them inside the meta worktree. Every git
// invocation here runs with the meta worktree as its working directory, so
// the primary checkout's branch is never touched. Per spec §4.6 this
// refuses: a missing meta worktree, an empty message, and any path outside
// the configured shared-state prefixes.
func (mw *MetaWorktree) Commit(message string, paths []string) error {
	exists, _ := mw.Status()
	if !exists {
		return ErrMetaWorktreeMissing
	}
	if strings.TrimSpace(message) == "" {
		return ErrEmptyCommitMessage
	}
	for _, p := range paths {
		if !mw.isShared(p) {
			return fmt.Errorf("%w: %s", ErrPathNotShared, p)
		}
	}

	if len(paths) > 0 {
		if err := gitAdd(mw.Path, paths, mw.Timeouts.Checkout()); err != nil {
			return err
		}
	}
	return gitCommit(mw.Path, message, mw.Timeouts.Checkout())
}
