// Package session manages session lifecycle and the per-session git
// worktrees that back it: creation (with idempotent reuse), archive,
// restore, cleanup, pruning, and an optional shared-state meta worktree.
package session

import "time"

// GitInfo records the git identity of a session's worktree.
type GitInfo struct {
	Branch       string `json:"branch"`
	BaseBranch   string `json:"base_branch"`
	WorktreePath string `json:"worktree_path"`
}

// Session is the persisted record at sessions/<state>/<id>/session.json.
type Session struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	Owner     string    `json:"owner,omitempty"`
	Git       GitInfo   `json:"git"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
