package entity

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/edison-dev/edison/internal/atomicio"
	"github.com/edison-dev/edison/internal/filelock"
)

// Repository is a generic store of Entity files under Root, one
// subdirectory per valid state: Root/<state>/<id>.md.
type Repository struct {
	// Root is the entity tree root (e.g. ".project/tasks", or a
	// session-scoped "sessions/wip/<id>/tasks").
	Root string

	// ValidStates lists every state directory this repository will scan.
	// An entity whose directory is not in this list is invisible to
	// Get/ListByState/locate.
	ValidStates []string

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewRepository constructs a Repository rooted at root, scanning the given
// valid states.
func NewRepository(root string, validStates []string) *Repository {
	return &Repository{Root: root, ValidStates: validStates, Now: time.Now}
}

func (r *Repository) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Repository) statePath(state, id string) string {
	return filepath.Join(r.Root, state, id+".md")
}

func (r *Repository) lockPath(id string) string {
	return filepath.Join(r.Root, ".locks", id)
}

// locate scans every valid state directory for "<id>.md", returning the
// path and state of the first match. found is false if no match exists in
// any valid state.
func (r *Repository) locate(id string) (path, state string, found bool, err error) {
	for _, s := range r.ValidStates {
		p := r.statePath(s, id)
		if _, statErr := os.Stat(p); statErr == nil {
			return p, s, true, nil
		} else if !os.IsNotExist(statErr) {
			return "", "", false, statErr
		}
	}
	return "", "", false, nil
}

// Get loads the entity with the given id, or ErrNotFound if no valid state
// directory contains it. The entity's State is set from the directory it
// was found in (the directory is the authoritative source of truth, per
// spec §3's invariant), overriding whatever the frontmatter itself says.
func (r *Repository) Get(id string) (*Entity, error) {
	path, state, found, err := r.locate(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.readFile(path, state)
}

// ListByState returns every entity whose directory is state, in filename
// order. An unknown or empty directory yields an empty slice, not an error.
func (r *Repository) ListByState(state string) ([]*Entity, error) {
	dir := filepath.Join(r.Root, state)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]*Entity, 0, len(names))
	for _, name := range names {
		ent, err := r.readFile(filepath.Join(dir, name), state)
		if err != nil {
			return nil, err
		}
		out = append(out, ent)
	}
	return out, nil
}

// Save persists e. If no file for e.ID currently exists, it is written
// fresh at Root/<e.State>/<e.ID>.md. If a file already exists in a
// different state directory than e.State, this is a "state transition
// save": the new file is written first, a StateTransition entry recording
// {from: old state, to: e.State, reason, actor} is appended to
// e.StateHistory before serialization, and only after the new file is
// durably written is the old file removed.
func (r *Repository) Save(e *Entity, reason, actor string) error {
	unlock, err := filelock.Acquire(r.lockPath(e.ID), filelock.Options{})
	if err != nil {
		return fmt.Errorf("entity: acquire lock for %s: %w", e.ID, err)
	}
	defer unlock()

	if !containsState(r.ValidStates, e.State) {
		return fmt.Errorf("%w: %s", ErrInvalidState, e.State)
	}

	oldPath, oldState, found, err := r.locate(e.ID)
	if err != nil {
		return err
	}

	e.Touch(r.now())

	if found && oldState != e.State {
		e.AppendHistory(oldState, e.State, reason, actor, r.now())
	}

	newPath := r.statePath(e.State, e.ID)
	if err := r.writeFile(newPath, e); err != nil {
		return fmt.Errorf("entity: write %s: %w", newPath, err)
	}

	if found && oldPath != newPath {
		if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("entity: remove stale %s: %w", oldPath, err)
		}
	}

	return nil
}

// Remove deletes the entity with the given id, tolerating a missing file so
// cross-repository relocation (claim/abort/complete-session moving a file
// between the global tree and a session-scoped tree) can call it after the
// destination write has already succeeded.
func (r *Repository) Remove(id string) error {
	unlock, err := filelock.Acquire(r.lockPath(id), filelock.Options{})
	if err != nil {
		return fmt.Errorf("entity: acquire lock for %s: %w", id, err)
	}
	defer unlock()

	path, _, found, err := r.locate(id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func containsState(states []string, state string) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

func (r *Repository) readFile(path, state string) (*Entity, error) {
	data, err := atomicio.ReadBytes(path)
	if err != nil {
		return nil, err
	}
	e, err := parseFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("entity: parse %s: %w", path, err)
	}
	e.State = state
	return e, nil
}

func (r *Repository) writeFile(path string, e *Entity) error {
	data, err := serializeFrontmatter(e)
	if err != nil {
		return err
	}
	return atomicio.WriteBytes(path, data)
}
