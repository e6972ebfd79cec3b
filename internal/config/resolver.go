// Package config implements the layered configuration resolver: core
// defaults → active packs (bundled path, then project path, in packs.active
// order) → project config → environment overlay. Maps deep-merge
// recursively; lists and scalars replace outright. Missing sections yield
// empty maps rather than errors.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/edison-dev/edison/embedded"
)

const (
	// ProjectConfigRelPath is the project config file, relative to the
	// project root.
	ProjectConfigRelPath = ".edison/config.yaml"

	// ProjectPacksDirRelPath holds project-supplied pack overlays, one file
	// per pack: .edison/packs/<name>.yaml
	ProjectPacksDirRelPath = ".edison/packs"

	// EnvPrefix is the prefix recognized for the deep-config environment
	// overlay: EDISON_<a>_<b>... maps to cfg[a][b]...
	EnvPrefix = "EDISON_"
)

// cacheKey identifies one resolved merge result. Two different
// includePacks settings for the same repo are both valid and cached
// independently, per spec §4.3.
type cacheKey struct {
	repoRoot    string
	includePack bool
}

var (
	cacheMu sync.Mutex
	cache   = make(map[cacheKey]Value)
)

// ClearCache drops all cached resolutions. Intended for tests.
func ClearCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = make(map[cacheKey]Value)
}

// Load resolves the full layered config for repoRoot. When includePacks is
// false, active packs are skipped entirely (core → project → env), which is
// used by callers that must avoid pack side effects (e.g. while resolving
// which packs are active in the first place).
func Load(repoRoot string, includePacks bool) (Value, error) {
	key := cacheKey{repoRoot: repoRoot, includePack: includePacks}

	cacheMu.Lock()
	if v, ok := cache[key]; ok {
		cacheMu.Unlock()
		return v, nil
	}
	cacheMu.Unlock()

	v, err := load(repoRoot, includePacks)
	if err != nil {
		return Value{}, err
	}

	cacheMu.Lock()
	cache[key] = v
	cacheMu.Unlock()
	return v, nil
}

func load(repoRoot string, includePacks bool) (Value, error) {
	core, err := loadCore()
	if err != nil {
		return Value{}, fmt.Errorf("config: load core defaults: %w", err)
	}

	project, err := loadYAMLFile(filepath.Join(repoRoot, ProjectConfigRelPath))
	if err != nil {
		return Value{}, fmt.Errorf("config: load project config: %w", err)
	}

	merged := core
	if includePacks {
		// Phase 1: merge core with project alone, just to discover
		// packs.active (a pack file cannot itself add more active packs).
		discovery := DeepMerge(core, project)
		for _, name := range discovery.Get("packs", "active").StringSlice() {
			packValue, err := loadPack(repoRoot, name)
			if err != nil {
				return Value{}, fmt.Errorf("config: load pack %q: %w", name, err)
			}
			merged = DeepMerge(merged, packValue)
		}
	}

	merged = DeepMerge(merged, project)
	merged = applyEnvOverlay(merged, os.Environ())

	return merged, nil
}

func loadCore() (Value, error) {
	var raw any
	if err := yaml.Unmarshal(embedded.CoreConfigYAML, &raw); err != nil {
		return Value{}, err
	}
	return NewValue(raw), nil
}

// loadPack merges a pack's bundled file (if any) and then its project
// override (if any), bundled first so project-level pack overlays win.
func loadPack(repoRoot, name string) (Value, error) {
	bundled, err := loadBundledPack(name)
	if err != nil {
		return Value{}, err
	}
	projectOverlay, err := loadYAMLFile(filepath.Join(repoRoot, ProjectPacksDirRelPath, name+".yaml"))
	if err != nil {
		return Value{}, err
	}
	return DeepMerge(bundled, projectOverlay), nil
}

func loadBundledPack(name string) (Value, error) {
	data, err := embedded.PacksFS.ReadFile(filepath.Join("packs", name, "pack.yaml"))
	if err != nil {
		// Not every active pack needs a bundled file; project-only packs
		// are legal.
		return Value{}, nil
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Value{}, err
	}
	return NewValue(raw), nil
}

func loadYAMLFile(path string) (Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Value{}, nil
		}
		return Value{}, err
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Value{}, err
	}
	return NewValue(raw), nil
}

// applyEnvOverlay scans environ for EDISON_<a>_<b>... variables and deep-
// merges them as string-leaf overrides, lowercase-folding each path
// segment. A key itself containing an underscore cannot be targeted
// unambiguously through this scheme and is not supported, matching the
// inherent limitation of the flat naming convention (see DESIGN.md).
func applyEnvOverlay(base Value, environ []string) Value {
	overlay := map[string]any{}
	for _, kv := range environ {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		name, val := kv[:eq], kv[eq+1:]
		if !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		rest := strings.TrimPrefix(name, EnvPrefix)
		if rest == "" {
			continue
		}
		segments := strings.Split(strings.ToLower(rest), "_")
		setPath(overlay, segments, val)
	}
	return DeepMerge(base, Value{raw: overlay})
}

func setPath(m map[string]any, path []string, val string) {
	if len(path) == 0 {
		return
	}
	if len(path) == 1 {
		m[path[0]] = val
		return
	}
	next, ok := m[path[0]].(map[string]any)
	if !ok {
		next = map[string]any{}
		m[path[0]] = next
	}
	setPath(next, path[1:], val)
}
