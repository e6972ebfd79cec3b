// Package composition implements the layered Markdown composition engine:
// discovery of agents/validators/guidelines/constitutions (and any other
// "*.md"-backed content type) across core, pack, and project layers, and
// their composition via EXTEND/NEW_SECTION/APPEND markers substituted into
// the core template's {{SECTION:X}}/{{EXTENSIBLE_SECTIONS}}/
// {{APPEND_SECTIONS}} placeholders, optional shingle-based deduplication,
// and {{config.a.b.c}} template substitution.
package composition

import (
	"path"

	"github.com/edison-dev/edison/internal/config"
)

// LayerContent is one layer's raw Markdown body, tagged with the layer it
// came from ("core", "pack:<name>", or "project") for priority and error
// reporting.
type LayerContent struct {
	Content string
	Source  string
	Path    string
}

// CompositionContext carries the information a compose pass needs beyond
// the layer bodies themselves: the active packs (for informational/ordering
// purposes) and the resolved config tree (for {{config.a.b.c}} template
// substitution).
type CompositionContext struct {
	ActivePacks []string
	Config      config.Value
	ProjectRoot string
}

// DiscoveredEntity is one file found during discovery: its entity name (the
// file's base name without the ".md" extension), the layer it belongs to,
// and enough to read its content back.
type DiscoveredEntity struct {
	Name string
	Path string
}

// ActivePacks reads "packs.active" from a resolved config tree, the list of
// pack names a project has opted into, in config order.
func ActivePacks(cfg config.Value) []string {
	return cfg.Get("packs", "active").StringSlice()
}

// entityName strips a glob-matched path down to its base name, e.g.
// "agents/builder.md" -> "builder".
func entityName(p string) string {
	base := path.Base(p)
	return stripMarkdownExt(base)
}

func stripMarkdownExt(name string) string {
	const ext = ".md"
	if len(name) > len(ext) && name[len(name)-len(ext):] == ext {
		return name[:len(name)-len(ext)]
	}
	return name
}
