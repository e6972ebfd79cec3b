package entity

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testNow() time.Time {
	return time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	r := NewRepository(t.TempDir(), []string{"todo", "wip", "done"})
	r.Now = testNow
	return r
}

func TestSaveNewEntityThenGet(t *testing.T) {
	r := newTestRepo(t)

	e := &Entity{ID: "150-wave1-demo", State: "todo", Title: "Demo", Body: "## Notes\n"}
	if err := r.Save(e, "created", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := r.Get("150-wave1-demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != "todo" {
		t.Fatalf("state = %q, want todo", got.State)
	}
	if got.Title != "Demo" {
		t.Fatalf("title = %q, want Demo", got.Title)
	}
	if got.Body != "## Notes\n" {
		t.Fatalf("body = %q", got.Body)
	}
	if len(got.StateHistory) != 0 {
		t.Fatalf("expected no history on create, got %v", got.StateHistory)
	}
}

func TestSaveRelocatesOnStateChange(t *testing.T) {
	r := newTestRepo(t)

	e := &Entity{ID: "150-wave1-demo", State: "todo"}
	if err := r.Save(e, "created", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.State = "wip"
	if err := r.Save(e, "claimed", "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(r.statePath("todo", "150-wave1-demo")); !os.IsNotExist(err) {
		t.Fatalf("expected old file removed, stat err = %v", err)
	}
	if _, err := os.Stat(r.statePath("wip", "150-wave1-demo")); err != nil {
		t.Fatalf("expected new file present: %v", err)
	}

	got, err := r.Get("150-wave1-demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.StateHistory) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(got.StateHistory))
	}
	h := got.StateHistory[0]
	if h.From != "todo" || h.To != "wip" || h.Reason != "claimed" || h.Actor != "bob" {
		t.Fatalf("got history entry %+v", h)
	}
}

func TestSaveSameStateDoesNotAppendHistory(t *testing.T) {
	r := newTestRepo(t)

	e := &Entity{ID: "150-wave1-demo", State: "todo"}
	if err := r.Save(e, "created", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.Title = "Updated title"
	if err := r.Save(e, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := r.Get("150-wave1-demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.StateHistory) != 0 {
		t.Fatalf("expected no history on non-transition save, got %v", got.StateHistory)
	}
	if got.Title != "Updated title" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestGetNotFound(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestSaveInvalidState(t *testing.T) {
	r := newTestRepo(t)
	e := &Entity{ID: "x", State: "not-a-state"}
	if err := r.Save(e, "", ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("got %v", err)
	}
}

func TestListByState(t *testing.T) {
	r := newTestRepo(t)
	for _, id := range []string{"b-task", "a-task"} {
		if err := r.Save(&Entity{ID: id, State: "todo"}, "created", "alice"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	list, err := r.ListByState("todo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(list))
	}
	if list[0].ID != "a-task" || list[1].ID != "b-task" {
		t.Fatalf("expected sorted order, got %s, %s", list[0].ID, list[1].ID)
	}
}

func TestListByStateEmptyDirNoError(t *testing.T) {
	r := newTestRepo(t)
	list, err := r.ListByState("done")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty, got %v", list)
	}
}

func TestFrontmatterRoundTripQA(t *testing.T) {
	r := newTestRepo(t)
	e := &Entity{
		ID:          "150-wave1-demo-qa",
		State:       "todo",
		ParentID:    "150-wave1-demo",
		DependsOn:   []string{"a", "b"},
		ChildIDs:    nil,
		StateHistory: nil,
		Body:        "body text\n",
	}
	if err := r.Save(e, "created", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(r.Root, "todo", "150-wave1-demo-qa.md"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsQA("150-wave1-demo-qa") {
		t.Fatal("expected IsQA true")
	}
	got, err := parseFrontmatter(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ParentID != "150-wave1-demo" || len(got.DependsOn) != 2 {
		t.Fatalf("got %+v", got)
	}
}
