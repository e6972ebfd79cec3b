package workflow

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/edison-dev/edison/internal/entity"
	"github.com/edison-dev/edison/internal/session"
	"github.com/edison-dev/edison/internal/statemachine"
)

func fixedNow() time.Time { return time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC) }

func newTestWorkflow(t *testing.T) *Workflow {
	t.Helper()
	root := t.TempDir()

	globalTasks := entity.NewRepository(filepath.Join(root, "tasks"), []string{"todo", "wip", "done", "validated"})
	globalTasks.Now = fixedNow
	globalQA := entity.NewRepository(filepath.Join(root, "qa"), []string{"waiting", "todo", "wip", "done", "approved", "rejected"})
	globalQA.Now = fixedNow
	sessions := session.NewRepository(filepath.Join(root, "sessions"), []string{"draft", "wip", "done"})
	sessions.Now = fixedNow

	return &Workflow{
		GlobalTasks:          globalTasks,
		GlobalQA:             globalQA,
		Sessions:             sessions,
		TaskStates:           []string{"todo", "wip", "done", "validated"},
		QATaskStates:         []string{"waiting", "todo", "wip", "done", "approved", "rejected"},
		TaskTerminalStates:   []string{"done", "validated"},
		SessionTerminalState: "done",
		Now:                  fixedNow,
	}
}

func seedSession(t *testing.T, w *Workflow, id string) {
	t.Helper()
	if err := w.Sessions.Save(&session.Session{ID: id, State: "wip"}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func seedTask(t *testing.T, w *Workflow, id, state string, childIDs []string) {
	t.Helper()
	if err := w.GlobalTasks.Save(&entity.Entity{ID: id, State: state, ChildIDs: childIDs}, "created", "seed"); err != nil {
		t.Fatalf("seed task: %v", err)
	}
}

func TestClaimTaskMovesIntoSessionTree(t *testing.T) {
	w := newTestWorkflow(t)
	seedSession(t, w, "sess-1")
	seedTask(t, w, "150-demo", "todo", nil)

	task, err := w.ClaimTask("150-demo", "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.State != "wip" || task.SessionID != "sess-1" {
		t.Fatalf("got %+v", task)
	}

	if _, err := w.GlobalTasks.Get("150-demo"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected task gone from global tree, got %v", err)
	}

	got, err := w.sessionTasks(&session.Session{ID: "sess-1", State: "wip"}).Get("150-demo")
	if err != nil {
		t.Fatalf("expected task in session tree: %v", err)
	}
	if len(got.StateHistory) != 1 || got.StateHistory[0].Reason != "claimed" {
		t.Fatalf("got history %+v", got.StateHistory)
	}
}

func TestClaimTaskRejectsDone(t *testing.T) {
	w := newTestWorkflow(t)
	seedSession(t, w, "sess-1")
	seedTask(t, w, "150-demo", "done", nil)

	if _, err := w.ClaimTask("150-demo", "sess-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("got %v", err)
	}
}

func TestCompleteTaskRequiresOwnership(t *testing.T) {
	w := newTestWorkflow(t)
	seedSession(t, w, "sess-1")
	seedTask(t, w, "150-demo", "todo", nil)

	if _, err := w.ClaimTask("150-demo", "sess-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if _, err := w.CompleteTask("150-demo", "other-session"); err == nil {
		t.Fatal("expected error completing task claimed by a different session")
	}
}

func TestCompleteTaskBlocksOnUnfinishedChildren(t *testing.T) {
	w := newTestWorkflow(t)
	seedSession(t, w, "sess-1")
	seedTask(t, w, "201-parent", "todo", []string{"201.1-child"})
	seedTask(t, w, "201.1-child", "wip", nil)

	if _, err := w.ClaimTask("201-parent", "sess-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	_, err := w.CompleteTask("201-parent", "sess-1")
	var cf *statemachine.ConditionFailedError
	if !errors.As(err, &cf) {
		t.Fatalf("expected ConditionFailedError, got %v", err)
	}
	if cf.Name != "children-not-done" {
		t.Fatalf("got condition name %q", cf.Name)
	}
}

func TestCompleteTaskSucceedsWhenChildrenDone(t *testing.T) {
	w := newTestWorkflow(t)
	seedSession(t, w, "sess-1")
	seedTask(t, w, "201-parent", "todo", []string{"201.1-child"})
	seedTask(t, w, "201.1-child", "done", nil)

	if _, err := w.ClaimTask("201-parent", "sess-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	task, err := w.CompleteTask("201-parent", "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.State != "done" {
		t.Fatalf("state = %q", task.State)
	}
}

func TestCompleteTaskAdvancesWaitingQA(t *testing.T) {
	w := newTestWorkflow(t)
	seedSession(t, w, "sess-1")
	seedTask(t, w, "150-demo", "todo", nil)
	if err := w.GlobalQA.Save(&entity.Entity{ID: "150-demo-qa", State: "waiting", ParentID: "150-demo"}, "created", "seed"); err != nil {
		t.Fatalf("seed qa: %v", err)
	}

	if _, err := w.ClaimTask("150-demo", "sess-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := w.CompleteTask("150-demo", "sess-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	qa, err := w.sessionQA(&session.Session{ID: "sess-1", State: "wip"}).Get("150-demo-qa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qa.State != "todo" {
		t.Fatalf("qa state = %q, want todo", qa.State)
	}
}

func TestAbortTaskReturnsToGlobalTree(t *testing.T) {
	w := newTestWorkflow(t)
	seedSession(t, w, "sess-1")
	seedTask(t, w, "150-demo", "todo", nil)

	if _, err := w.ClaimTask("150-demo", "sess-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	task, err := w.AbortTask("150-demo", "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.State != "todo" || task.SessionID != "" {
		t.Fatalf("got %+v", task)
	}

	got, err := w.GlobalTasks.Get("150-demo")
	if err != nil {
		t.Fatalf("expected task back in global tree: %v", err)
	}
	if got.State != "todo" {
		t.Fatalf("global state = %q", got.State)
	}
}

func TestValidateTaskRequiresDone(t *testing.T) {
	w := newTestWorkflow(t)
	seedSession(t, w, "sess-1")
	seedTask(t, w, "150-demo", "todo", nil)

	if _, err := w.ClaimTask("150-demo", "sess-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := w.ValidateTask("150-demo", "sess-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("got %v", err)
	}

	if _, err := w.CompleteTask("150-demo", "sess-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	task, err := w.ValidateTask("150-demo", "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.State != "validated" {
		t.Fatalf("state = %q", task.State)
	}
}

func TestCompleteSessionMovesEverythingBack(t *testing.T) {
	w := newTestWorkflow(t)
	seedSession(t, w, "sess-1")
	seedTask(t, w, "150-demo", "todo", nil)

	if _, err := w.ClaimTask("150-demo", "sess-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := w.CompleteTask("150-demo", "sess-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := w.ValidateTask("150-demo", "sess-1"); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if err := w.CompleteSession("sess-1"); err != nil {
		t.Fatalf("complete session: %v", err)
	}

	task, err := w.GlobalTasks.Get("150-demo")
	if err != nil {
		t.Fatalf("expected task in global tree: %v", err)
	}
	if task.State != "validated" {
		t.Fatalf("state = %q", task.State)
	}

	sess, err := w.Sessions.Get("sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.State != "done" {
		t.Fatalf("session state = %q", sess.State)
	}
}
