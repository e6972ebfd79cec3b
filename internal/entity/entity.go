// Package entity implements the generic repository over frontmatter-bearing
// Markdown entities (Task and QA records share an identical shape per spec
// §3, so both are represented by the same Entity struct and Repository
// type, distinguished only by which root directory and valid-state list a
// Repository is constructed with).
package entity

import (
	"strings"
	"time"
)

// StateTransition is one append-only entry in an entity's state_history.
type StateTransition struct {
	From   string    `yaml:"from" json:"from"`
	To     string    `yaml:"to" json:"to"`
	At     time.Time `yaml:"at" json:"at"`
	Reason string    `yaml:"reason,omitempty" json:"reason,omitempty"`
	Actor  string    `yaml:"actor,omitempty" json:"actor,omitempty"`
}

// Entity is a Task or QA record: a Markdown file with YAML frontmatter plus
// a free-text Markdown body.
type Entity struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title,omitempty" json:"title,omitempty"`
	State       string `yaml:"state" json:"state"`
	SessionID   string `yaml:"session_id,omitempty" json:"session_id,omitempty"`
	ParentID    string `yaml:"parent_id,omitempty" json:"parent_id,omitempty"`
	ChildIDs    []string `yaml:"child_ids,omitempty" json:"child_ids,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	BlocksTasks []string `yaml:"blocks_tasks,omitempty" json:"blocks_tasks,omitempty"`
	Owner       string   `yaml:"owner,omitempty" json:"owner,omitempty"`

	CreatedAt  time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt  time.Time `yaml:"updated_at" json:"updated_at"`
	LastActive time.Time `yaml:"last_active,omitempty" json:"last_active,omitempty"`

	StateHistory []StateTransition `yaml:"state_history,omitempty" json:"state_history,omitempty"`

	// Body is the Markdown content following the frontmatter block. It is
	// never touched by the repository beyond round-tripping it verbatim.
	Body string `yaml:"-" json:"-"`
}

// IsQA reports whether id carries a reserved QA suffix ("-qa" or ".qa").
// Exposed here (in addition to pathid.IsQAID) because repositories often
// need to branch on entity kind without importing pathid directly.
func IsQA(id string) bool {
	return strings.HasSuffix(id, "-qa") || strings.HasSuffix(id, ".qa")
}

// Touch stamps UpdatedAt (and, if zero, CreatedAt) to now.
func (e *Entity) Touch(now time.Time) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	e.LastActive = now
}

// AppendHistory records a transition. Callers are expected to have already
// mutated e.State to the new value before calling Save; Repository.Save
// derives From from the on-disk location it finds, not from this call.
func (e *Entity) AppendHistory(from, to, reason, actor string, at time.Time) {
	e.StateHistory = append(e.StateHistory, StateTransition{
		From: from, To: to, At: at, Reason: reason, Actor: actor,
	})
}
