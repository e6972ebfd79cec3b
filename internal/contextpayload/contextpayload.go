// Package contextpayload builds the deterministic session context snapshot
// spec §4.13 describes: a small, stable "context refresher" consumed by
// Claude Code-style hooks, `edison session context`, and `edison session
// next`. It is grounded directly on
// original_source/src/edison/core/session/context_payload.py
// (build_session_context_payload / format_session_context_markdown /
// format_session_context_for_next), adapted into Go's explicit-struct,
// explicit-error idiom in place of Python's fail-open try/except-everywhere
// style, and rendered the way internal/formatter/markdown.go composes a
// template-data struct ahead of producing output text.
package contextpayload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edison-dev/edison/internal/config"
	"github.com/edison-dev/edison/internal/entity"
	"github.com/edison-dev/edison/internal/pathid"
	"github.com/edison-dev/edison/internal/session"
)

// ActorIdentity is the {actorKind, actorId, actorConstitution, actorReadCmd,
// actorResolution} stanza spec §4.13 names.
type ActorIdentity struct {
	Kind         string
	ID           string
	Constitution string
	ReadCmd      string
	Resolution   string
}

// Payload is the deterministic context snapshot.
type Payload struct {
	IsEdisonProject   bool
	ProjectRoot       string
	SessionID         string
	SessionState      string
	WorktreePath      string
	CurrentTaskID     string
	CurrentTaskState  string
	ActivePacks       []string
	Constitutions     map[string]string
	Actor             ActorIdentity
}

// BuildInput carries every piece of already-resolved state Build needs.
// Build itself performs no I/O: callers (typically cmd/edison) gather
// Session/WipCandidates/ActivePacks/Actor via the session, entity, config,
// and actor-resolution helpers in this package or elsewhere, so the
// composition itself stays a pure function of its input, per spec §4.13.
type BuildInput struct {
	ProjectRoot     string
	SessionID       string
	IsEdisonProject bool

	// Session is the owning session, or nil if SessionID is empty or
	// unresolvable.
	Session *session.Session

	// WipCandidates lists every task currently in the wip state, globally
	// (across the whole project, not scoped to a session) — Build narrows
	// this to the one, if any, owned by SessionID.
	WipCandidates []*entity.Entity

	ActivePacks []string
	Actor       ActorIdentity
}

// Build composes the deterministic payload from already-gathered inputs.
func Build(in BuildInput) Payload {
	if !in.IsEdisonProject {
		return Payload{IsEdisonProject: false, ProjectRoot: in.ProjectRoot}
	}

	p := Payload{
		IsEdisonProject: true,
		ProjectRoot:     in.ProjectRoot,
		SessionID:       in.SessionID,
		ActivePacks:     in.ActivePacks,
		Constitutions:   constitutionPaths(in.ProjectRoot),
		Actor:           in.Actor,
	}

	if in.Session != nil {
		p.SessionState = in.Session.State
		p.WorktreePath = in.Session.Git.WorktreePath
	}

	if in.SessionID != "" {
		var owned []*entity.Entity
		for _, t := range in.WipCandidates {
			if t.SessionID == in.SessionID {
				owned = append(owned, t)
			}
		}
		// Matching original_source: only a SINGLE unambiguous owned task
		// populates currentTaskId; zero or multiple leaves it unset, since
		// "current" implies exactly one.
		if len(owned) == 1 {
			p.CurrentTaskID = owned[0].ID
			p.CurrentTaskState = owned[0].State
		}
	}

	return p
}

// constitutionPaths returns the generated per-role constitution file paths
// under <project-config-dir>/_generated/constitutions/, matching
// original_source's get_project_config_dir()/_generated/constitutions
// convention. The files are not required to exist; these are stable
// pointers for agents to read, not a promise the content is present.
func constitutionPaths(projectRoot string) map[string]string {
	dir := filepath.Join(pathid.ProjectConfigDir(projectRoot), "_generated", "constitutions")
	return map[string]string{
		"agents":       filepath.Join(dir, "AGENTS.md"),
		"orchestrator": filepath.Join(dir, "ORCHESTRATOR.md"),
		"validators":   filepath.Join(dir, "VALIDATORS.md"),
	}
}

// IsEdisonProject does the best-effort detection build_session_context_payload
// performs before anything else: a project-config directory, or failing
// that, the bare management-dir marker, marks projectRoot as a project.
func IsEdisonProject(projectRoot string) bool {
	if info, err := os.Stat(pathid.ProjectConfigDir(projectRoot)); err == nil && info.IsDir() {
		return true
	}
	if info, err := os.Stat(pathid.ManagementRoot(projectRoot)); err == nil && info.IsDir() {
		return true
	}
	return false
}

const (
	// ActorKindEnvVar and ActorIDEnvVar let an operator or CI wrapper pin
	// actor identity explicitly; otherwise identity falls back to a
	// generic "agent" default rather than failing.
	ActorKindEnvVar = "EDISON_ACTOR_KIND"
	ActorIDEnvVar   = "EDISON_ACTOR_ID"

	defaultActorKind = "agent"
)

// ResolveActorIdentity determines the {kind, id, constitution, readCmd,
// resolution} stanza: explicit env vars win ("env"); otherwise a default
// "agent" kind with a generic read command ("fallback"), never an error —
// actor identity resolution must never block context building, matching
// original_source's fail-open try/except around resolve_actor_identity.
func ResolveActorIdentity(projectRoot string) ActorIdentity {
	paths := constitutionPaths(projectRoot)

	kind := strings.TrimSpace(os.Getenv(ActorKindEnvVar))
	id := strings.TrimSpace(os.Getenv(ActorIDEnvVar))
	resolution := "fallback"
	if kind != "" || id != "" {
		resolution = "env"
	}
	if kind == "" {
		kind = defaultActorKind
	}

	constitution := paths[kind]
	if constitution == "" {
		// Singular kinds ("agent") map to the plural role key ("agents").
		constitution = paths[kind+"s"]
	}
	readCmd := ""
	if constitution != "" {
		readCmd = fmt.Sprintf("cat %s", constitution)
	}

	return ActorIdentity{
		Kind:         kind,
		ID:           id,
		Constitution: constitution,
		ReadCmd:      readCmd,
		Resolution:   resolution,
	}
}

// RenderConfig is the resolved (enabled, heading, fields) triple for one
// render target, read from session.context.render.<target>.
type RenderConfig struct {
	Enabled bool
	Heading string
	Fields  []string
}

func renderConfig(cfg config.Value, target, defaultHeading string) RenderConfig {
	spec := cfg.Get("session", "context", "render", target)
	return RenderConfig{
		Enabled: spec.Get("enabled").Bool(true),
		Heading: spec.Get("heading").String(defaultHeading),
		Fields:  spec.Get("fields").StringSlice(),
	}
}

func relPath(root, p string) string {
	if p == "" {
		return ""
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return rel
}

// RenderMarkdown produces the "## Edison Context" Markdown block for
// injection into an agent prompt, gated by session.context.render.markdown.
func RenderMarkdown(p Payload, cfg config.Value) string {
	if !p.IsEdisonProject {
		return ""
	}
	rc := renderConfig(cfg, "markdown", "## Edison Context")
	if !rc.Enabled || len(rc.Fields) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(rc.Heading)
	b.WriteString("\n\n")

	for _, field := range rc.Fields {
		switch field {
		case "projectRoot":
			fmt.Fprintf(&b, "- Project: `%s`\n", p.ProjectRoot)
		case "constitutions":
			for _, role := range []string{"agents", "orchestrator", "validators"} {
				fmt.Fprintf(&b, "- Constitution (%s): `%s`\n", capitalize(role), relPath(p.ProjectRoot, p.Constitutions[role]))
			}
		case "session":
			if p.SessionID != "" {
				if p.SessionState != "" {
					fmt.Fprintf(&b, "- Session: `%s` (state: `%s`)\n", p.SessionID, p.SessionState)
				} else {
					fmt.Fprintf(&b, "- Session: `%s`\n", p.SessionID)
				}
			}
		case "loopDriver":
			if p.SessionID != "" {
				fmt.Fprintf(&b, "- Loop driver: `edison session next %s`\n", p.SessionID)
			}
		case "worktreePath":
			if p.WorktreePath != "" {
				fmt.Fprintf(&b, "- Worktree: `%s`\n", p.WorktreePath)
			}
		case "currentTask":
			if p.CurrentTaskID != "" {
				if p.CurrentTaskState != "" {
					fmt.Fprintf(&b, "- Current Task: `%s` (state: `%s`)\n", p.CurrentTaskID, p.CurrentTaskState)
				} else {
					fmt.Fprintf(&b, "- Current Task: `%s`\n", p.CurrentTaskID)
				}
			}
		case "activePacks":
			if len(p.ActivePacks) > 0 {
				quoted := make([]string, len(p.ActivePacks))
				for i, pack := range p.ActivePacks {
					quoted[i] = "`" + pack + "`"
				}
				fmt.Fprintf(&b, "- Active Packs: %s\n", strings.Join(quoted, ", "))
			}
		case "actor":
			if p.Actor.Kind != "" {
				if p.Actor.ID != "" {
					fmt.Fprintf(&b, "- Actor: `%s` (`%s`)\n", p.Actor.Kind, p.Actor.ID)
				} else {
					fmt.Fprintf(&b, "- Actor: `%s`\n", p.Actor.Kind)
				}
				if p.Actor.ReadCmd != "" {
					fmt.Fprintf(&b, "- Re-read constitution: `%s`\n", p.Actor.ReadCmd)
				}
			}
		}
	}

	return b.String()
}

// RenderBulletList produces the plain bullet-list rendering `session next`
// uses, gated by session.context.render.next.
func RenderBulletList(p Payload, cfg config.Value) []string {
	if !p.IsEdisonProject {
		return nil
	}
	rc := renderConfig(cfg, "next", "Edison Context:")
	if !rc.Enabled || len(rc.Fields) == 0 {
		return nil
	}

	lines := []string{rc.Heading}
	for _, field := range rc.Fields {
		switch field {
		case "projectRoot":
			lines = append(lines, "  - Project: "+p.ProjectRoot)
		case "constitutions":
			for _, role := range []string{"agents", "orchestrator", "validators"} {
				lines = append(lines, fmt.Sprintf("  - Constitution (%s): %s", capitalize(role), relPath(p.ProjectRoot, p.Constitutions[role])))
			}
		case "session":
			if p.SessionID != "" {
				if p.SessionState != "" {
					lines = append(lines, fmt.Sprintf("  - Session: %s (state: %s)", p.SessionID, p.SessionState))
				} else {
					lines = append(lines, "  - Session: "+p.SessionID)
				}
			}
		case "loopDriver":
			if p.SessionID != "" {
				lines = append(lines, "  - Loop driver: edison session next "+p.SessionID)
			}
		case "worktreePath":
			if p.WorktreePath != "" {
				lines = append(lines, "  - Worktree: "+p.WorktreePath)
			}
		case "currentTask":
			if p.CurrentTaskID != "" {
				if p.CurrentTaskState != "" {
					lines = append(lines, fmt.Sprintf("  - Current Task: %s (state: %s)", p.CurrentTaskID, p.CurrentTaskState))
				} else {
					lines = append(lines, "  - Current Task: "+p.CurrentTaskID)
				}
			}
		case "activePacks":
			if len(p.ActivePacks) > 0 {
				lines = append(lines, "  - Active Packs: "+strings.Join(p.ActivePacks, ", "))
			}
		case "actor":
			if p.Actor.Kind != "" {
				if p.Actor.ID != "" {
					lines = append(lines, fmt.Sprintf("  - Actor: %s (%s)", p.Actor.Kind, p.Actor.ID))
				} else {
					lines = append(lines, "  - Actor: "+p.Actor.Kind)
				}
				if p.Actor.ReadCmd != "" {
					lines = append(lines, "  - Re-read constitution: "+p.Actor.ReadCmd)
				}
			}
		}
	}
	lines = append(lines, "")
	return lines
}

// Fields returns the JSON-serializable dict to_dict() produces: core
// identity fields are always present; the rest are gated by
// session.context.payload.fields (empty list means "include everything").
func Fields(p Payload, cfg config.Value) map[string]any {
	out := map[string]any{
		"isEdisonProject": p.IsEdisonProject,
		"projectRoot":     p.ProjectRoot,
		"sessionId":       p.SessionID,
	}
	if !p.IsEdisonProject {
		return out
	}

	allowed := cfg.Get("session", "context", "payload", "fields").StringSlice()
	includeAll := len(allowed) == 0
	include := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		include[f] = true
	}
	put := func(key string, value any) {
		if includeAll || include[key] {
			out[key] = value
		}
	}

	put("sessionState", p.SessionState)
	put("worktreePath", p.WorktreePath)
	put("currentTaskId", p.CurrentTaskID)
	put("currentTaskState", p.CurrentTaskState)
	put("activePacks", p.ActivePacks)
	if includeAll || include["constitutions"] {
		out["constitutions"] = p.Constitutions
	}

	put("actorKind", firstNonEmpty(p.Actor.Kind, "unknown"))
	if p.Actor.ID != "" {
		put("actorId", p.Actor.ID)
	}
	if p.Actor.Constitution != "" {
		put("actorConstitution", p.Actor.Constitution)
	}
	if p.Actor.ReadCmd != "" {
		put("actorReadCmd", p.Actor.ReadCmd)
	}
	put("actorResolution", firstNonEmpty(p.Actor.Resolution, "fallback"))

	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// capitalize upper-cases only the first rune, used for the short role
// labels ("agents" -> "Agents") in the constitution-pointer lines.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
