// Package taskindex scans every Task/QA file (the global tree and every
// session's scoped tasks subtree) and builds in-memory lookup tables:
// task-by-state, task-by-session, children-by-parent, and dependencies.
// Per spec §4.14 no index is ever persisted — every call rescans, trading
// scan cost for the guarantee that a query never observes stale state.
//
// The scan-and-build shape generalizes internal/search/index.go's
// filesystem walk (there: tokenize files into an inverted index; here:
// parse entity.Entity frontmatter into lookup maps). Parallelism is
// layered on top per spec §3/§4.14: per-state fan-out across the global
// tree uses sourcegraph/conc's panic-propagating WaitGroup, and the
// potentially-large fan-out across session-scoped task roots reuses
// internal/worker.Pool[T]'s bounded-concurrency fan-out rather than
// spawning one goroutine per session unconditionally.
package taskindex

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/edison-dev/edison/internal/entity"
	"github.com/edison-dev/edison/internal/worker"
)

// Scanner configures one scan pass.
type Scanner struct {
	// GlobalRoot is the project-wide task (or QA) tree root, e.g.
	// ".project/tasks".
	GlobalRoot string

	// SessionsRoot is the session tree root, e.g. ".project/sessions",
	// under which each session directory may carry its own scoped
	// "tasks/<task-state>/*.md" subtree.
	SessionsRoot string

	// SessionStates lists the session-state directories to scan under
	// SessionsRoot (e.g. draft, wip, done).
	SessionStates []string

	// TaskStates lists the valid task/QA state directories to scan, both
	// in GlobalRoot and in each session's scoped tasks subtree.
	TaskStates []string

	// Concurrency bounds the worker pool used for the session-scoped fan
	// out. Zero defaults to runtime.NumCPU() via internal/worker.NewPool.
	Concurrency int
}

// NewScanner builds a Scanner with the given roots and state lists.
func NewScanner(globalRoot, sessionsRoot string, sessionStates, taskStates []string) *Scanner {
	return &Scanner{
		GlobalRoot:    globalRoot,
		SessionsRoot:  sessionsRoot,
		SessionStates: sessionStates,
		TaskStates:    taskStates,
	}
}

// Scan rescans the filesystem and returns a fresh Index. Callers wanting to
// cache across multiple queries within one command invocation should hold
// onto the returned Index rather than calling Scan per query.
func (s *Scanner) Scan() (*Index, error) {
	idx := newIndex()

	global, err := s.scanGlobal()
	if err != nil {
		return nil, fmt.Errorf("taskindex: scan global tree: %w", err)
	}
	idx.add(global...)

	sessionRoots, err := s.discoverSessionTaskRoots()
	if err != nil {
		return nil, fmt.Errorf("taskindex: discover session task roots: %w", err)
	}

	pool := worker.NewPool[[]*entity.Entity](s.Concurrency)
	results := pool.Process(sessionRoots, func(root string) ([]*entity.Entity, error) {
		return scanRoot(root, s.TaskStates)
	})
	for _, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("taskindex: scan session task root: %w", r.Err)
		}
		idx.add(r.Value...)
	}

	return idx, nil
}

// scanGlobal fans out one goroutine per task state across the global tree,
// using conc.WaitGroup so a panic inside any one state's scan surfaces
// immediately at Wait() rather than silently losing that state's results.
func (s *Scanner) scanGlobal() ([]*entity.Entity, error) {
	repo := entity.NewRepository(s.GlobalRoot, s.TaskStates)

	var (
		mu       sync.Mutex
		all      []*entity.Entity
		firstErr error
	)

	var wg conc.WaitGroup
	for _, state := range s.TaskStates {
		state := state
		wg.Go(func() {
			ents, err := repo.ListByState(state)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			all = append(all, ents...)
		})
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return all, nil
}

// scanRoot scans every valid state directory under one session's scoped
// tasks root.
func scanRoot(root string, states []string) ([]*entity.Entity, error) {
	repo := entity.NewRepository(root, states)
	var out []*entity.Entity
	for _, state := range states {
		ents, err := repo.ListByState(state)
		if err != nil {
			return nil, err
		}
		out = append(out, ents...)
	}
	return out, nil
}

// discoverSessionTaskRoots lists "<SessionsRoot>/<sessionState>/<id>/tasks"
// for every session directory across every configured session state. A
// missing session-state directory is a normal, empty case, not an error.
func (s *Scanner) discoverSessionTaskRoots() ([]string, error) {
	var roots []string
	for _, sessionState := range s.SessionStates {
		dir := filepath.Join(s.SessionsRoot, sessionState)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				roots = append(roots, filepath.Join(dir, e.Name(), "tasks"))
			}
		}
	}
	sort.Strings(roots)
	return roots, nil
}

// Index is the set of lookup tables one Scan produces.
type Index struct {
	byID             map[string]*entity.Entity
	byState          map[string][]*entity.Entity
	bySession        map[string][]*entity.Entity
	childrenByParent map[string][]*entity.Entity
	dependents       map[string][]string
}

func newIndex() *Index {
	return &Index{
		byID:             make(map[string]*entity.Entity),
		byState:          make(map[string][]*entity.Entity),
		bySession:        make(map[string][]*entity.Entity),
		childrenByParent: make(map[string][]*entity.Entity),
		dependents:       make(map[string][]string),
	}
}

func (idx *Index) add(entities ...*entity.Entity) {
	for _, e := range entities {
		if e == nil {
			continue
		}
		idx.byID[e.ID] = e
		idx.byState[e.State] = append(idx.byState[e.State], e)
		if e.SessionID != "" {
			idx.bySession[e.SessionID] = append(idx.bySession[e.SessionID], e)
		}
		if e.ParentID != "" {
			idx.childrenByParent[e.ParentID] = append(idx.childrenByParent[e.ParentID], e)
		}
		for _, dep := range e.DependsOn {
			idx.dependents[dep] = append(idx.dependents[dep], e.ID)
		}
	}
}

// Get returns the entity with the given id, if any.
func (idx *Index) Get(id string) (*entity.Entity, bool) {
	e, ok := idx.byID[id]
	return e, ok
}

// ByState returns every entity currently in state, sorted by id.
func (idx *Index) ByState(state string) []*entity.Entity {
	return sortedByID(idx.byState[state])
}

// BySession returns every entity owned by sessionID, sorted by id.
func (idx *Index) BySession(sessionID string) []*entity.Entity {
	return sortedByID(idx.bySession[sessionID])
}

// ChildrenOf returns every entity whose ParentID is parentID, sorted by id.
func (idx *Index) ChildrenOf(parentID string) []*entity.Entity {
	return sortedByID(idx.childrenByParent[parentID])
}

// DependsOn returns the dependency ids declared by id's own frontmatter, or
// nil if id is unknown.
func (idx *Index) DependsOn(id string) []string {
	e, ok := idx.byID[id]
	if !ok {
		return nil
	}
	return append([]string(nil), e.DependsOn...)
}

// Dependents returns every entity id that declares id as a dependency
// (the inverse of DependsOn), sorted.
func (idx *Index) Dependents(id string) []string {
	out := append([]string(nil), idx.dependents[id]...)
	sort.Strings(out)
	return out
}

// Len returns the total number of distinct entities indexed.
func (idx *Index) Len() int {
	return len(idx.byID)
}

func sortedByID(ents []*entity.Entity) []*entity.Entity {
	out := append([]*entity.Entity(nil), ents...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
