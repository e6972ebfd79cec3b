package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edison-dev/edison/internal/config"
)

func worktreeMove(repo, from, to string, timeout config.SessionWorktreeTimeouts) error {
	_, err := runGit(repo, timeout.WorktreeAdd(), "worktree", "move", from, to)
	return err
}

// WorktreeManager creates, reuses, archives, restores, and prunes the
// per-session git worktrees described in spec §4.6, generalizing the
// teacher's one-shot RPI worktree helpers (create/merge/remove) into
// reusable, idempotent session operations addressed by session id rather
// than by a freshly generated run id.
type WorktreeManager struct {
	RepoRoot      string
	BaseDirectory string
	BranchPrefix  string
	ArchiveRoot   string
	RetryAttempts int
	Timeouts      config.SessionWorktreeTimeouts
}

// NewWorktreeManager builds a WorktreeManager from the session.worktree
// façade and the top-level worktree façade's retry budget.
func NewWorktreeManager(repoRoot string, facet config.SessionWorktreeFacet, retryAttempts int) *WorktreeManager {
	base := facet.BaseDirectory
	if base == "" {
		base = ".worktrees"
	}
	prefix := strings.TrimSuffix(facet.BranchPrefix, "/")
	if prefix == "" {
		prefix = "edison"
	}
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	return &WorktreeManager{
		RepoRoot:      repoRoot,
		BaseDirectory: base,
		BranchPrefix:  prefix,
		ArchiveRoot:   facet.ArchiveRoot,
		RetryAttempts: retryAttempts,
		Timeouts:      facet.Timeouts,
	}
}

// Branch computes the session's dedicated branch name, "<prefix>/<id>".
func (m *WorktreeManager) Branch(id string) string {
	return m.BranchPrefix + "/" + id
}

// Path computes the session's worktree directory.
func (m *WorktreeManager) Path(id string) string {
	return filepath.Join(m.RepoRoot, m.BaseDirectory, id)
}

// CreateOrReuse implements spec §4.6 steps 1–3: compute worktree_path and
// branch from config, reuse a healthy existing worktree idempotently, or
// otherwise run `git worktree add <path> -b <branch> <base>`. If baseBranch
// is empty, the repo's current branch is used.
func (m *WorktreeManager) CreateOrReuse(id, baseBranch string) (*GitInfo, error) {
	branch := m.Branch(id)
	path := m.Path(id)

	if isHealthyWorktree(path, m.Timeouts.HealthCheck()) {
		return &GitInfo{Branch: branch, BaseBranch: baseBranch, WorktreePath: path}, nil
	}

	if baseBranch == "" {
		b, err := currentBranch(m.RepoRoot, m.Timeouts.BranchCheck())
		if err != nil {
			return nil, err
		}
		baseBranch = b
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	if err := m.tryCreate(path, branch, baseBranch); err != nil {
		return nil, err
	}

	return &GitInfo{Branch: branch, BaseBranch: baseBranch, WorktreePath: path}, nil
}

// tryCreate retries worktree creation up to RetryAttempts times when the
// failure looks like a stale reference left behind by a crashed session
// (git reports the path already exists but isHealthyWorktree said no) —
// generalized from the teacher's tryCreateWorktree collision retry, which
// here prunes the stale reference before each retry instead of generating a
// new path, since a session's path is identity, not disposable.
func (m *WorktreeManager) tryCreate(path, branch, base string) error {
	var lastErr error
	for attempt := 0; attempt < m.RetryAttempts; attempt++ {
		err := worktreeAdd(m.RepoRoot, path, branch, base, m.Timeouts.WorktreeAdd())
		if err == nil {
			return nil
		}
		lastErr = err
		if !strings.Contains(err.Error(), "already exists") {
			return err
		}
		_, _ = worktreePrune(m.RepoRoot, false, m.Timeouts.Prune())
		_ = os.RemoveAll(path)
	}
	return fmt.Errorf("%w: %v", ErrWorktreeCollision, lastErr)
}

// Archive moves a session's worktree directory into <archive-root>/<id>/
// via `git worktree move`, which relocates the checkout and updates git's
// internal worktree administrative files without deleting anything — the
// branch and its history stay intact for a later Restore. Tolerates an
// already-archived or never-created worktree.
func (m *WorktreeManager) Archive(id string) error {
	path := m.Path(id)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	dest := filepath.Join(m.ArchiveRoot, id)
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return err
	}
	return worktreeMove(m.RepoRoot, path, dest, m.Timeouts)
}

// Restore creates a fresh worktree on the session's branch from cache: if
// an archived checkout exists it is moved back in place; otherwise a new
// worktree is checked out from the branch tip (the branch, not the working
// copy, is the durable record).
func (m *WorktreeManager) Restore(id string) (*GitInfo, error) {
	branch := m.Branch(id)
	path := m.Path(id)
	archived := filepath.Join(m.ArchiveRoot, id)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	if _, err := os.Stat(archived); err == nil {
		if err := worktreeMove(m.RepoRoot, archived, path, m.Timeouts); err == nil {
			return &GitInfo{Branch: branch, WorktreePath: path}, nil
		}
	}

	if _, err := runGit(m.RepoRoot, m.Timeouts.WorktreeAdd(), "worktree", "add", path, branch); err != nil {
		return nil, err
	}
	return &GitInfo{Branch: branch, WorktreePath: path}, nil
}

// Cleanup removes the worktree and, if deleteBranch is set, the branch
// backing it. Both operations are idempotent and tolerate a missing target,
// per spec §4.6's cleanup_worktree contract. Empty path/branch are computed
// from id.
func (m *WorktreeManager) Cleanup(id, path, branch string, deleteBranch bool) error {
	if path == "" {
		path = m.Path(id)
	}
	if branch == "" {
		branch = m.Branch(id)
	}

	if _, err := os.Stat(path); err == nil {
		if err := worktreeRemove(m.RepoRoot, path, m.Timeouts.WorktreeAdd()); err != nil {
			_ = os.RemoveAll(path)
		}
	}

	if deleteBranch && branchExists(m.RepoRoot, branch, m.Timeouts.BranchCheck()) {
		_ = branchDelete(m.RepoRoot, branch, m.Timeouts.BranchCheck())
	}

	return nil
}

// Prune removes orphaned worktree administrative references (e.g. left
// behind by a manually deleted directory) and returns the lines git
// reported as pruned or would-prune (when dryRun is set).
func (m *WorktreeManager) Prune(dryRun bool) ([]string, error) {
	out, err := worktreePrune(m.RepoRoot, dryRun, m.Timeouts.Prune())
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			removed = append(removed, line)
		}
	}
	return removed, nil
}
