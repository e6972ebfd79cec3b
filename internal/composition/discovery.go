package composition

import (
	"io/fs"
	"path"
	"sort"
)

// LayerDiscovery lists entities of one content type across the core, pack,
// and project layers. Two instances typically exist per ComposableRegistry:
// one whose Packs points at bundled packs, one whose Packs points at
// project-local packs — both sharing the same Core and Project roots, per
// original_source/src/edison/core/entity/composable_registry.py's
// bundled_discovery / project_packs_discovery split.
type LayerDiscovery struct {
	// ContentType names the subdirectory under Core/Project holding this
	// content's files, e.g. "agents".
	ContentType string
	// Glob is the file pattern within a content-type directory, e.g. "*.md".
	Glob string

	// Core is the filesystem rooted above ContentType for bundled core
	// data, e.g. embedded content with a top-level "agents/" directory.
	Core fs.FS
	// Packs is the filesystem rooted above "<pack>/<ContentType>/", e.g.
	// embedded packs or a project's packs/ override directory.
	Packs fs.FS
	// Project is the filesystem rooted above ContentType for project-local
	// overrides, e.g. "<project-config-dir>/".
	Project fs.FS
}

func subFS(fsys fs.FS, dir string) (fs.FS, bool) {
	if fsys == nil {
		return nil, false
	}
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, false
	}
	return sub, true
}

// globNames lists the base names (without extension) matching d.Glob
// directly under dir in fsys. A missing directory yields an empty result,
// not an error — an absent layer is normal, not exceptional.
func globNames(fsys fs.FS, dir, glob string) map[string]string {
	out := make(map[string]string)
	sub, ok := subFS(fsys, dir)
	if !ok {
		return out
	}
	matches, err := fs.Glob(sub, glob)
	if err != nil {
		return out
	}
	for _, m := range matches {
		out[entityName(m)] = path.Join(dir, m)
	}
	return out
}

func toEntities(names map[string]string) map[string]DiscoveredEntity {
	out := make(map[string]DiscoveredEntity, len(names))
	for name, p := range names {
		out[name] = DiscoveredEntity{Name: name, Path: p}
	}
	return out
}

// DiscoverCore lists entities defined in the core layer.
func (d *LayerDiscovery) DiscoverCore() map[string]DiscoveredEntity {
	return toEntities(globNames(d.Core, d.ContentType, d.Glob))
}

// DiscoverPackNew lists entities newly introduced by pack, excluding any
// name already present in existing.
func (d *LayerDiscovery) DiscoverPackNew(pack string, existing map[string]bool) map[string]DiscoveredEntity {
	dir := path.Join(pack, d.ContentType)
	names := globNames(d.Packs, dir, d.Glob)
	for name := range names {
		if existing[name] {
			delete(names, name)
		}
	}
	return toEntities(names)
}

// DiscoverPackOverlays lists overlay files under pack's overlays/
// subdirectory, restricted to names already present in existing (an overlay
// without a target entity is invalid — see Validate).
func (d *LayerDiscovery) DiscoverPackOverlays(pack string, existing map[string]bool) map[string]DiscoveredEntity {
	dir := path.Join(pack, d.ContentType, "overlays")
	names := globNames(d.Packs, dir, d.Glob)
	for name := range names {
		if !existing[name] {
			delete(names, name)
		}
	}
	return toEntities(names)
}

// DiscoverProjectNew lists entities newly introduced by the project layer,
// excluding any name already present in existing.
func (d *LayerDiscovery) DiscoverProjectNew(existing map[string]bool) map[string]DiscoveredEntity {
	names := globNames(d.Project, d.ContentType, d.Glob)
	for name := range names {
		if existing[name] {
			delete(names, name)
		}
	}
	return toEntities(names)
}

// DiscoverProjectOverlays lists overlay files under the project layer's
// overlays/ subdirectory, restricted to names already present in existing.
func (d *LayerDiscovery) DiscoverProjectOverlays(existing map[string]bool) map[string]DiscoveredEntity {
	dir := path.Join(d.ContentType, "overlays")
	names := globNames(d.Project, dir, d.Glob)
	for name := range names {
		if !existing[name] {
			delete(names, name)
		}
	}
	return toEntities(names)
}

// rawPackNew lists every "new" entity pack defines, WITHOUT filtering
// against an existing set — used by Validate to detect shadowing that the
// discovery-for-composition methods above silently (and deliberately)
// paper over.
func (d *LayerDiscovery) rawPackNew(pack string) map[string]DiscoveredEntity {
	dir := path.Join(pack, d.ContentType)
	return toEntities(globNames(d.Packs, dir, d.Glob))
}

func (d *LayerDiscovery) rawPackOverlays(pack string) map[string]DiscoveredEntity {
	dir := path.Join(pack, d.ContentType, "overlays")
	return toEntities(globNames(d.Packs, dir, d.Glob))
}

func (d *LayerDiscovery) rawProjectNew() map[string]DiscoveredEntity {
	return toEntities(globNames(d.Project, d.ContentType, d.Glob))
}

func (d *LayerDiscovery) rawProjectOverlays() map[string]DiscoveredEntity {
	dir := path.Join(d.ContentType, "overlays")
	return toEntities(globNames(d.Project, dir, d.Glob))
}

func sortedKeys(m map[string]DiscoveredEntity) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
