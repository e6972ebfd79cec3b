// Package registry holds the process-wide caches spec §9's "Global state"
// design note calls for: the resolved project root, the loaded layered
// config, and a map of named mutexes guarding command-group locks. A single
// Registry is constructed once in cmd/edison/root.go and threaded through
// every command's RunE.
package registry

import (
	"sync"

	"github.com/edison-dev/edison/internal/config"
	"github.com/edison-dev/edison/internal/pathid"
)

// Registry caches the project-root and config resolutions a CLI invocation
// would otherwise repeat across subcommands, and hands out a stable mutex
// per lock key so concurrent goroutines within one process serialize on the
// same name internal/runner's file lock serializes across processes.
type Registry struct {
	paths *pathid.Resolver

	mu      sync.Mutex
	configs map[string]config.Value
	locks   map[string]*sync.Mutex
}

// New constructs a Registry with empty caches.
func New() *Registry {
	return &Registry{
		paths:   pathid.NewResolver(),
		configs: make(map[string]config.Value),
		locks:   make(map[string]*sync.Mutex),
	}
}

// ProjectRoot resolves and caches the project root for (override, startDir).
func (r *Registry) ProjectRoot(override, startDir string) (string, error) {
	return r.paths.ProjectRoot(override, startDir)
}

// Config resolves and caches the layered config Value for repoRoot.
func (r *Registry) Config(repoRoot string, includePacks bool) (config.Value, error) {
	key := repoRoot
	if includePacks {
		key += "\x00packs"
	}

	r.mu.Lock()
	if cached, ok := r.configs[key]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	cfg, err := config.Load(repoRoot, includePacks)
	if err != nil {
		return config.Value{}, err
	}

	r.mu.Lock()
	r.configs[key] = cfg
	r.mu.Unlock()
	return cfg, nil
}

// Lock returns the named mutex for key, creating it on first use.
func (r *Registry) Lock(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.locks[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	r.locks[key] = m
	return m
}

// ClearAllCaches drops every cached resolution. Exposed for tests that
// construct several projects in one process.
func (r *Registry) ClearAllCaches() {
	r.paths.ClearCache()
	config.ClearCache()
	r.mu.Lock()
	r.configs = make(map[string]config.Value)
	r.locks = make(map[string]*sync.Mutex)
	r.mu.Unlock()
}
