package taskindex

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edison-dev/edison/internal/entity"
)

var taskStates = []string{"todo", "wip", "done", "validated"}
var sessionStates = []string{"draft", "wip", "done"}

func writeTask(t *testing.T, root *entity.Repository, id, state, sessionID, parentID string, dependsOn []string) {
	t.Helper()
	e := &entity.Entity{
		ID: id, State: state, SessionID: sessionID, ParentID: parentID,
		DependsOn: dependsOn, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := root.Save(e, "", "test"); err != nil {
		t.Fatalf("save %s: %v", id, err)
	}
}

func TestScanGlobalTree(t *testing.T) {
	globalRoot := t.TempDir()
	repo := entity.NewRepository(globalRoot, taskStates)
	writeTask(t, repo, "task-a", "todo", "", "", nil)
	writeTask(t, repo, "task-b", "wip", "", "", nil)

	scanner := NewScanner(globalRoot, t.TempDir(), sessionStates, taskStates)
	idx, err := scanner.Scan()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("len = %d, want 2", idx.Len())
	}
	if got := idx.ByState("wip"); len(got) != 1 || got[0].ID != "task-b" {
		t.Fatalf("ByState(wip) = %+v", got)
	}
}

func TestScanIncludesSessionScopedTasks(t *testing.T) {
	sessionsRoot := t.TempDir()
	taskRoot := filepath.Join(sessionsRoot, "wip", "sess-1", "tasks")
	if err := os.MkdirAll(taskRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	repo := entity.NewRepository(taskRoot, taskStates)
	writeTask(t, repo, "scoped-task", "wip", "sess-1", "", nil)

	scanner := NewScanner(t.TempDir(), sessionsRoot, sessionStates, taskStates)
	idx, err := scanner.Scan()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := idx.BySession("sess-1")
	if len(got) != 1 || got[0].ID != "scoped-task" {
		t.Fatalf("BySession(sess-1) = %+v", got)
	}
}

func TestChildrenOfAndDependents(t *testing.T) {
	globalRoot := t.TempDir()
	repo := entity.NewRepository(globalRoot, taskStates)
	writeTask(t, repo, "parent", "todo", "", "", nil)
	writeTask(t, repo, "child-a", "todo", "", "parent", []string{"dep-1"})
	writeTask(t, repo, "child-b", "todo", "", "parent", []string{"dep-1"})

	scanner := NewScanner(globalRoot, t.TempDir(), sessionStates, taskStates)
	idx, err := scanner.Scan()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	children := idx.ChildrenOf("parent")
	if len(children) != 2 || children[0].ID != "child-a" || children[1].ID != "child-b" {
		t.Fatalf("ChildrenOf(parent) = %+v", children)
	}

	dependents := idx.Dependents("dep-1")
	if len(dependents) != 2 || dependents[0] != "child-a" || dependents[1] != "child-b" {
		t.Fatalf("Dependents(dep-1) = %v", dependents)
	}

	if got := idx.DependsOn("child-a"); len(got) != 1 || got[0] != "dep-1" {
		t.Fatalf("DependsOn(child-a) = %v", got)
	}
}

func TestScanMissingRootsYieldEmptyIndex(t *testing.T) {
	scanner := NewScanner(
		filepath.Join(t.TempDir(), "does-not-exist"),
		filepath.Join(t.TempDir(), "also-missing"),
		sessionStates, taskStates,
	)
	idx, err := scanner.Scan()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("len = %d, want 0", idx.Len())
	}
}

func TestGetUnknownIDReturnsFalse(t *testing.T) {
	scanner := NewScanner(t.TempDir(), t.TempDir(), sessionStates, taskStates)
	idx, err := scanner.Scan()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := idx.Get("nope"); ok {
		t.Fatal("expected ok=false for unknown id")
	}
}
