package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testRepoNow() time.Time {
	return time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	r := NewRepository(t.TempDir(), []string{"draft", "wip", "done"})
	r.Now = testRepoNow
	return r
}

func TestSaveNewSessionThenGet(t *testing.T) {
	r := newTestRepository(t)

	s := &Session{ID: "demo-1", State: "draft", Owner: "alice"}
	if err := r.Save(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := r.Get("demo-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != "draft" || got.Owner != "alice" {
		t.Fatalf("got %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
}

func TestSaveRelocatesSessionOnStateChange(t *testing.T) {
	r := newTestRepository(t)

	s := &Session{ID: "demo-2", State: "draft"}
	if err := r.Save(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.State = "wip"
	if err := r.Save(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(r.dirPath("draft", "demo-2")); !os.IsNotExist(err) {
		t.Fatalf("expected old dir removed, stat err = %v", err)
	}
	if _, err := os.Stat(r.filePath("wip", "demo-2")); err != nil {
		t.Fatalf("expected new file present: %v", err)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	r := newTestRepository(t)
	if _, err := r.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestSaveSessionInvalidState(t *testing.T) {
	r := newTestRepository(t)
	s := &Session{ID: "demo-3", State: "not-a-state"}
	if err := r.Save(s); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("got %v", err)
	}
}

func TestListSessionsByState(t *testing.T) {
	r := newTestRepository(t)
	for _, id := range []string{"b-session", "a-session"} {
		if err := r.Save(&Session{ID: id, State: "draft"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	list, err := r.ListByState("draft")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	if list[0].ID != "a-session" || list[1].ID != "b-session" {
		t.Fatalf("expected sorted order, got %s, %s", list[0].ID, list[1].ID)
	}
}

func TestListSessionsByStateEmptyDirNoError(t *testing.T) {
	r := newTestRepository(t)
	list, err := r.ListByState("done")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty, got %v", list)
	}
}

func TestSessionGitInfoRoundTrip(t *testing.T) {
	r := newTestRepository(t)
	s := &Session{
		ID:    "demo-4",
		State: "wip",
		Git: GitInfo{
			Branch:       "edison/demo-4",
			BaseBranch:   "main",
			WorktreePath: filepath.Join(r.Root, "..", ".worktrees", "demo-4"),
		},
	}
	if err := r.Save(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := r.Get("demo-4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Git.Branch != "edison/demo-4" || got.Git.BaseBranch != "main" {
		t.Fatalf("got %+v", got.Git)
	}
}
