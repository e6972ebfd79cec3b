package session

import "errors"

// Sentinel errors for the session package.
var (
	// ErrNotFound is returned when no valid state directory contains the
	// requested session id.
	ErrNotFound = errors.New("session: not found")

	// ErrInvalidState is returned when Save is called with a session whose
	// State is not one of the repository's ValidStates.
	ErrInvalidState = errors.New("session: invalid state")

	// ErrNotGitRepo is returned when a worktree operation is attempted
	// outside a git repository.
	ErrNotGitRepo = errors.New("session: not a git repository")

	// ErrDetachedHEAD is returned when a base branch is required but the
	// repository's HEAD is detached.
	ErrDetachedHEAD = errors.New("session: detached HEAD, cannot infer base branch")

	// ErrWorktreeCollision is returned after exhausting retry attempts to
	// find a free worktree path.
	ErrWorktreeCollision = errors.New("session: failed to create unique worktree path after retrying")

	// ErrRepoUnclean is returned when a worktree still has uncommitted
	// changes after the configured archive/restore retry budget.
	ErrRepoUnclean = errors.New("session: worktree has uncommitted changes")

	// ErrMetaWorktreeMissing is returned by meta-commit when the meta
	// worktree has not been initialized via worktree-meta-init.
	ErrMetaWorktreeMissing = errors.New("session: meta worktree not initialized (run worktree-meta-init first)")

	// ErrEmptyCommitMessage is returned by meta-commit when called without
	// a commit message.
	ErrEmptyCommitMessage = errors.New("session: commit message must not be empty")

	// ErrPathNotShared is returned by meta-commit when a path falls outside
	// every configured shared-state prefix.
	ErrPathNotShared = errors.New("session: path is not under a configured shared-state prefix")

	// ErrSharedStateDisabled is returned by meta worktree operations when
	// worktrees.sharedState.mode is not "meta".
	ErrSharedStateDisabled = errors.New("session: shared-state meta worktree mode is disabled")

	// ErrDetachedSelfHealFailed is returned when EnsureAttachedBranch cannot
	// create or switch to a recovery branch for a reason other than the
	// branch being busy in another worktree.
	ErrDetachedSelfHealFailed = errors.New("session: failed to self-heal detached HEAD")
)
