// Package rules implements the rule registry merge and context-based
// selection spec §4.12 describes: a flat table of orchestration guidance
// ({id, title, category, blocking, applies_to[], guidance}) merged across
// core, active-pack, and project layers, filtered by transition/state/
// context and applicable role, and rendered to a Markdown block suitable
// for injection into an agent prompt.
//
// The merge itself is grounded on internal/config's layered core → packs →
// project resolution order (same precedence, simpler shape: a rule record
// is atomic and the later layer replaces the earlier one wholesale on id
// collision, rather than config's recursive deep-merge). Selection is
// grounded on internal/ratchet/gate.go's per-step dispatch
// (switch step {...}), generalized here to filtering by category/role
// instead of branching to a distinct function per case.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/edison-dev/edison/embedded"
	"github.com/edison-dev/edison/internal/config"
)

// Rule is one entry in a rule registry.
type Rule struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	Category  string   `yaml:"category"`
	Blocking  bool     `yaml:"blocking"`
	AppliesTo []string `yaml:"applies_to"`
	Guidance  string   `yaml:"guidance"`

	// Source names the layer this rule's current definition came from
	// ("core", "pack:<name>", or "project"), for diagnostics only.
	Source string `yaml:"-"`
}

// appliesToRole reports whether role may see this rule. An empty
// AppliesTo applies to every role, matching the "unscoped rule" case a
// registry author uses for guidance that isn't role-specific.
func (r Rule) appliesToRole(role string) bool {
	if role == "" || len(r.AppliesTo) == 0 {
		return true
	}
	for _, a := range r.AppliesTo {
		if a == role {
			return true
		}
	}
	return false
}

type registryFile struct {
	Rules []Rule `yaml:"rules"`
}

// Registry is a merged, id-keyed set of rules, in canonical (sorted-by-id)
// order for deterministic rendering.
type Registry struct {
	rules map[string]Rule
}

// LoadRegistry merges core/rules/registry.yml, every active pack's
// rules/registry.yml (bundled, then project-local pack override), and the
// project's own rules/registry.yml override, in that precedence order —
// mirroring internal/config.Load's core → packs → project layering.
func LoadRegistry(cfg config.Value, projectRoot string) (*Registry, error) {
	reg := &Registry{rules: make(map[string]Rule)}

	core, err := parseRegistry(embedded.CoreRulesYAML)
	if err != nil {
		return nil, fmt.Errorf("rules: parse core registry: %w", err)
	}
	reg.apply(core, "core")

	for _, pack := range cfg.Get("packs", "active").StringSlice() {
		bundled, err := loadBundledPackRules(pack)
		if err != nil {
			return nil, fmt.Errorf("rules: load pack %q rules: %w", pack, err)
		}
		reg.apply(bundled, "pack:"+pack)

		projectPackOverride, err := loadFileRegistry(filepath.Join(projectRoot, config.ProjectPacksDirRelPath, pack, "rules", "registry.yml"))
		if err != nil {
			return nil, fmt.Errorf("rules: load project override for pack %q: %w", pack, err)
		}
		reg.apply(projectPackOverride, "pack:"+pack)
	}

	project, err := loadFileRegistry(filepath.Join(projectRoot, ".edison", "rules", "registry.yml"))
	if err != nil {
		return nil, fmt.Errorf("rules: load project registry: %w", err)
	}
	reg.apply(project, "project")

	return reg, nil
}

func (reg *Registry) apply(rules []Rule, source string) {
	for _, r := range rules {
		r.Source = source
		reg.rules[r.ID] = r
	}
}

func parseRegistry(data []byte) ([]Rule, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Rules, nil
}

func loadBundledPackRules(name string) ([]Rule, error) {
	data, err := embedded.PacksFS.ReadFile(filepath.Join("packs", name, "rules", "registry.yml"))
	if err != nil {
		// A pack without its own rules is legal; it simply contributes none.
		return nil, nil
	}
	return parseRegistry(data)
}

func loadFileRegistry(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return parseRegistry(data)
}

// All returns every merged rule, sorted by id.
func (reg *Registry) All() []Rule {
	out := make([]Rule, 0, len(reg.rules))
	for _, r := range reg.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a single rule by id.
func (reg *Registry) Get(id string) (Rule, bool) {
	r, ok := reg.rules[id]
	return r, ok
}

// SelectOptions narrows Select's result.
type SelectOptions struct {
	// Category matches Rule.Category exactly (e.g. a transition like
	// "wip->done", or a free-form context tag like "delegation"). Empty
	// matches every category.
	Category string

	// Role matches Rule.AppliesTo (empty AppliesTo always matches). Empty
	// Role matches every rule regardless of its AppliesTo.
	Role string
}

// Select returns the rules applicable under opts, sorted by id.
func (reg *Registry) Select(opts SelectOptions) []Rule {
	var out []Rule
	for _, r := range reg.All() {
		if opts.Category != "" && r.Category != opts.Category {
			continue
		}
		if !r.appliesToRole(opts.Role) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// canonicalTransitions maps a task/QA state to the transition category its
// rules are filed under, per spec §4.12 ("state is mapped to a canonical
// transition using a small table").
var canonicalTransitions = map[string]string{
	"todo":      "todo->wip",
	"wip":       "wip->done",
	"done":      "done->validated",
	"validated": "",
}

// TransitionForState maps a bare state to its canonical transition
// category, or "" if the state is terminal or unrecognized.
func TransitionForState(state string) string {
	return canonicalTransitions[state]
}

// Render produces a Markdown block from rules, grouped in list order, for
// injection into an agent prompt.
func Render(rules []Rule) string {
	if len(rules) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Rules\n\n")
	for _, r := range rules {
		marker := ""
		if r.Blocking {
			marker = " (blocking)"
		}
		fmt.Fprintf(&b, "### %s%s\n\n%s\n\n", r.Title, marker, strings.TrimSpace(r.Guidance))
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
