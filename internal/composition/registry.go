package composition

import (
	"io/fs"
	"sort"

	"github.com/edison-dev/edison/internal/config"
)

// ComposableRegistry is the generic base for every layered content
// registry (agents, validators, guidelines, constitutions, document
// templates, …), parameterized over the post-composition entity type T.
// It pairs a pair of LayerDiscovery instances (bundled packs, project
// packs — both sharing the same core/project roots) with a
// MarkdownCompositionStrategy, mirroring
// original_source/src/edison/core/entity/composable_registry.py.
type ComposableRegistry[T any] struct {
	ContentType string
	Glob        string

	// MergeSameName, when true, concatenates every same-name layer instead
	// of treating a pack/project "new" file with a core-colliding name as
	// shadowing (spec §4.8; default false).
	MergeSameName bool

	Strategy *MarkdownCompositionStrategy

	// Core and Project back both discovery instances. BundledPacks and
	// ProjectPacks are the two distinct pack roots.
	Core          fs.FS
	BundledPacks  fs.FS
	ProjectPacks  fs.FS
	Project       fs.FS
	ActivePacks   func() []string
	Config        config.Value
	ProjectRoot   string

	// PostCompose converts composed Markdown into T. A nil PostCompose
	// requires T to be string.
	PostCompose func(name, content string) (T, error)
}

func (r *ComposableRegistry[T]) bundledDiscovery() *LayerDiscovery {
	return &LayerDiscovery{ContentType: r.ContentType, Glob: r.glob(), Core: r.Core, Packs: r.BundledPacks, Project: r.Project}
}

func (r *ComposableRegistry[T]) projectPacksDiscovery() *LayerDiscovery {
	return &LayerDiscovery{ContentType: r.ContentType, Glob: r.glob(), Core: r.Core, Packs: r.ProjectPacks, Project: r.Project}
}

func (r *ComposableRegistry[T]) glob() string {
	if r.Glob == "" {
		return "*.md"
	}
	return r.Glob
}

func (r *ComposableRegistry[T]) activePacks() []string {
	if r.ActivePacks != nil {
		return r.ActivePacks()
	}
	return nil
}

// DiscoverAll lists every entity name visible across all layers for the
// given (or configured) active packs, mapping name to its winning layer's
// path.
func (r *ComposableRegistry[T]) DiscoverAll(packs []string) map[string]string {
	if packs == nil {
		packs = r.activePacks()
	}
	bd, pd := r.bundledDiscovery(), r.projectPacksDiscovery()

	result := map[string]string{}
	existing := map[string]bool{}

	for name, e := range bd.DiscoverCore() {
		result[name] = e.Path
		existing[name] = true
	}

	for _, pack := range packs {
		for name, e := range bd.DiscoverPackNew(pack, existing) {
			result[name] = e.Path
			existing[name] = true
		}
		for name, e := range bd.DiscoverPackOverlays(pack, existing) {
			result[name] = e.Path
		}
		for name, e := range pd.DiscoverPackNew(pack, existing) {
			result[name] = e.Path
			existing[name] = true
		}
		for name, e := range pd.DiscoverPackOverlays(pack, existing) {
			result[name] = e.Path
		}
	}

	for name, e := range bd.DiscoverProjectNew(existing) {
		result[name] = e.Path
		existing[name] = true
	}
	for name, e := range bd.DiscoverProjectOverlays(existing) {
		result[name] = e.Path
	}

	return result
}

// ListNames returns every discoverable entity name, sorted.
func (r *ComposableRegistry[T]) ListNames(packs []string) []string {
	all := r.DiscoverAll(packs)
	out := make([]string, 0, len(all))
	for name := range all {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Exists reports whether name is discoverable in any layer.
func (r *ComposableRegistry[T]) Exists(name string) bool {
	_, ok := r.DiscoverAll(nil)[name]
	return ok
}

// gatherLayers collects a name's LayerContent in core → packs → project
// order, honoring MergeSameName the same way the discovery-for-listing
// methods do: a pack/project "new" file with a core-colliding name is
// skipped unless MergeSameName is set.
func (r *ComposableRegistry[T]) gatherLayers(name string, packs []string) ([]LayerContent, error) {
	bd, pd := r.bundledDiscovery(), r.projectPacksDiscovery()

	var layers []LayerContent
	coreEntities := bd.DiscoverCore()
	existing := map[string]bool{}
	for n := range coreEntities {
		existing[n] = true
	}

	if e, ok := coreEntities[name]; ok {
		content, err := fs.ReadFile(r.Core, e.Path)
		if err != nil {
			return nil, err
		}
		layers = append(layers, LayerContent{Content: string(content), Source: "core", Path: e.Path})
	}
	_, inCore := coreEntities[name]

	appendIfPresent := func(fsys fs.FS, entities map[string]DiscoveredEntity, label string) error {
		e, ok := entities[name]
		if !ok {
			return nil
		}
		content, err := fs.ReadFile(fsys, e.Path)
		if err != nil {
			return err
		}
		layers = append(layers, LayerContent{Content: string(content), Source: label, Path: e.Path})
		return nil
	}

	for _, pack := range packs {
		label := "pack:" + pack

		bdNew := bd.DiscoverPackNew(pack, existing)
		if _, ok := bdNew[name]; ok && (r.MergeSameName || !inCore) {
			if err := appendIfPresent(r.BundledPacks, bdNew, label); err != nil {
				return nil, err
			}
		}
		for n := range bdNew {
			existing[n] = true
		}

		bdOver := bd.DiscoverPackOverlays(pack, existing)
		if err := appendIfPresent(r.BundledPacks, bdOver, label); err != nil {
			return nil, err
		}

		pdNew := pd.DiscoverPackNew(pack, existing)
		if _, ok := pdNew[name]; ok && (r.MergeSameName || !inCore) {
			if err := appendIfPresent(r.ProjectPacks, pdNew, label); err != nil {
				return nil, err
			}
		}
		for n := range pdNew {
			existing[n] = true
		}

		pdOver := pd.DiscoverPackOverlays(pack, existing)
		if err := appendIfPresent(r.ProjectPacks, pdOver, label); err != nil {
			return nil, err
		}
	}

	projNew := bd.DiscoverProjectNew(existing)
	if _, ok := projNew[name]; ok && (r.MergeSameName || !inCore) {
		if err := appendIfPresent(r.Project, projNew, "project"); err != nil {
			return nil, err
		}
	}
	for n := range projNew {
		existing[n] = true
	}

	projOver := bd.DiscoverProjectOverlays(existing)
	if err := appendIfPresent(r.Project, projOver, "project"); err != nil {
		return nil, err
	}

	return layers, nil
}

// Compose composes a single entity from every layer. A name with no layers
// anywhere yields the zero value of T and ok=false.
func (r *ComposableRegistry[T]) Compose(name string, packs []string) (T, bool, error) {
	var zero T
	if packs == nil {
		packs = r.activePacks()
	}

	layers, err := r.gatherLayers(name, packs)
	if err != nil {
		return zero, false, err
	}
	if len(layers) == 0 {
		return zero, false, nil
	}

	ctx := CompositionContext{ActivePacks: packs, Config: r.Config, ProjectRoot: r.ProjectRoot}
	content, err := r.Strategy.Compose(name, layers, ctx)
	if err != nil {
		return zero, false, err
	}

	if r.PostCompose != nil {
		out, err := r.PostCompose(name, content)
		return out, true, err
	}

	out, ok := any(content).(T)
	if !ok {
		return zero, false, nil
	}
	return out, true, nil
}

// ComposeAll composes every discoverable entity.
func (r *ComposableRegistry[T]) ComposeAll(packs []string) (map[string]T, error) {
	if packs == nil {
		packs = r.activePacks()
	}
	names := r.ListNames(packs)

	out := make(map[string]T, len(names))
	for _, name := range names {
		v, ok, err := r.Compose(name, packs)
		if err != nil {
			return nil, err
		}
		if ok {
			out[name] = v
		}
	}
	return out, nil
}

// Get is an alias for Compose using the registry's configured active packs.
func (r *ComposableRegistry[T]) Get(name string) (T, bool, error) {
	return r.Compose(name, nil)
}
