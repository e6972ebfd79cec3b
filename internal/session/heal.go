package session

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const detachedRecoverySuffix = "-recovery"

// EnsureAttachedBranch repairs a detached-HEAD worktree by switching onto a
// stable "<branchPrefix>-recovery" branch, per spec §5's supplemented
// detached-HEAD self-heal: a worktree can end up detached after an
// interrupted Restore, and `session status` should recover rather than fail.
// If the branch is already checked out in another worktree, recovery is
// unsafe; EnsureAttachedBranch returns healed=false and no error so the
// caller can continue operating in detached mode.
//
// Generalizes the teacher's internal/rpi/worktree.go
// EnsureAttachedBranch/attemptBranchHeal, written for one-shot RPI run
// worktrees, into a session-addressed operation keyed by branchPrefix
// instead of a generated run id.
func EnsureAttachedBranch(repoRoot string, timeout time.Duration, branchPrefix string) (branch string, healed bool, err error) {
	branch, err = currentBranch(repoRoot, timeout)
	if err == nil {
		return branch, false, nil
	}
	if !errors.Is(err, ErrDetachedHEAD) {
		return "", false, err
	}

	recovery := recoveryBranchName(branchPrefix)
	return attemptBranchHeal(repoRoot, timeout, recovery)
}

func recoveryBranchName(branchPrefix string) string {
	prefix := strings.TrimSpace(branchPrefix)
	if prefix == "" {
		prefix = "edison"
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return prefix + detachedRecoverySuffix
}

func attemptBranchHeal(repoRoot string, timeout time.Duration, recovery string) (string, bool, error) {
	if _, err := runGit(repoRoot, timeout, "branch", "-f", recovery, "HEAD"); err != nil {
		if isBranchBusyInWorktree(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrDetachedSelfHealFailed, err)
	}

	if _, err := runGit(repoRoot, timeout, "switch", recovery); err != nil {
		if isBranchBusyInWorktree(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrDetachedSelfHealFailed, err)
	}

	return recovery, true, nil
}

func isBranchBusyInWorktree(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "used by worktree")
}
