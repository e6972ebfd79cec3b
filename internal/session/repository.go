package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/edison-dev/edison/internal/atomicio"
	"github.com/edison-dev/edison/internal/filelock"
)

// Repository persists Session records as sessions/<state>/<id>/session.json,
// mirroring internal/entity's directory-is-state convention but for JSON
// session metadata rather than Markdown frontmatter (per spec §3, the
// session directory, not its own State field, is authoritative on read).
type Repository struct {
	// Root is the session tree root, typically "sessions".
	Root string

	// ValidStates lists every state directory this repository will scan.
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

func (r *Repository) dirPath(state, id string) string {
	return filepath.Join(r.Root, state, id)
}

func (r *Repository) filePath(state, id string) string {
	return filepath.Join(r.dirPath(state, id), "session.json")
}

func (r *Repository) lockPath(id string) string {
	return filepath.Join(r.Root, ".locks", id)
}

func (r *Repository) locate(id string) (path, state string, found bool, err error) {
	for _, s := range r.ValidStates {
		p := r.filePath(s, id)
		if _, statErr := os.Stat(p); statErr == nil {
			return p, s, true, nil
		} else if !os.IsNotExist(statErr) {
			return "", "", false, statErr
		}
	}
	return "", "", false, nil
}

// Get loads the session with the given id, or ErrNotFound. Its State is set
// from the directory it was found in, overriding whatever session.json
// itself says.
func (r *Repository) Get(id string) (*Session, error) {
	path, state, found, err := r.locate(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var s Session
	if err := atomicio.ReadJSON(path, &s); err != nil {
		return nil, err
	}
	s.State = state
	return &s, nil
}

// ListByState returns every session whose directory is state, in id order.
// An unknown or empty directory yields an empty slice, not an error.
func (r *Repository) ListByState(state string) ([]*Session, error) {
	dir := filepath.Join(r.Root, state)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)

	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		var s Session
		if err := atomicio.ReadJSON(r.filePath(state, id), &s); err != nil {
			return nil, err
		}
		s.State = state
		out = append(out, &s)
	}
	return out, nil
}

// Save persists s. If s.State differs from the session's current on-disk
// directory, the new session.json is written first and the old directory
// removed only after that succeeds, so a crash mid-relocation leaves the
// session duplicated (recoverable) rather than lost — the same discipline
// internal/entity.Repository.Save uses for Task/QA relocation.
func (r *Repository) Save(s *Session) error {
	unlock, err := filelock.Acquire(r.lockPath(s.ID), filelock.Options{})
	if err != nil {
		return fmt.Errorf("session: acquire lock for %s: %w", s.ID, err)
	}
	defer unlock()

	if !containsState(r.ValidStates, s.State) {
		return fmt.Errorf("%w: %s", ErrInvalidState, s.State)
	}

	_, oldState, found, err := r.locate(s.ID)
	if err != nil {
		return err
	}

	now := r.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	newPath := r.filePath(s.State, s.ID)
	if err := atomicio.WriteJSON(newPath, s); err != nil {
		return fmt.Errorf("session: write %s: %w", newPath, err)
	}

	if found && oldState != s.State {
		oldDir := r.dirPath(oldState, s.ID)
		if err := os.RemoveAll(oldDir); err != nil {
			return fmt.Errorf("session: remove stale %s: %w", oldDir, err)
		}
	}

	return nil
}

func containsState(states []string, state string) bool {
	for _, st := range states {
		if st == state {
			return true
		}
	}
	return false
}
