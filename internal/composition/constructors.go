package composition

import (
	"io/fs"
	"os"

	"github.com/edison-dev/edison/embedded"
	"github.com/edison-dev/edison/internal/config"
	"github.com/edison-dev/edison/internal/pathid"
)

// NewRegistry builds a string-valued ComposableRegistry for contentType
// (e.g. "agents", "validators", "guidelines", "constitutions"), wiring the
// core bundled content, the bundled "standard"-style packs, a project's
// packs override directory, and the project's own override directory, per
// spec §4.8's four-layer discovery order.
func NewRegistry(contentType, projectRoot string, cfg config.Value) *ComposableRegistry[string] {
	projectConfigDir := pathid.ProjectConfigDir(projectRoot)

	return &ComposableRegistry[string]{
		ContentType:  contentType,
		Glob:         "*.md",
		Strategy:     NewMarkdownCompositionStrategy(),
		Core:         subOrEmpty(embedded.ContentFS, "content"),
		BundledPacks: subOrEmpty(embedded.PacksFS, "packs"),
		ProjectPacks: projectOverrideFS(projectConfigDir + "/packs"),
		Project:      projectOverrideFS(projectConfigDir),
		ActivePacks:  func() []string { return ActivePacks(cfg) },
		Config:       cfg,
		ProjectRoot:  projectRoot,
	}
}

// subOrEmpty returns the sub-filesystem rooted at dir within fsys, or an
// empty fs.FS if dir does not exist in fsys.
func subOrEmpty(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return emptyFS{}
	}
	return sub
}

// projectOverrideFS returns os.DirFS(dir) when dir exists, or an always-
// empty fs.FS otherwise, so missing project-local override directories are
// a normal, silent case rather than an error every discovery call must
// guard against.
func projectOverrideFS(dir string) fs.FS {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return emptyFS{}
	}
	return os.DirFS(dir)
}

// emptyFS is an fs.FS with no entries, used when a project override
// directory does not exist on disk.
type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
