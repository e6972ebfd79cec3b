package statemachine

import (
	"errors"
	"testing"
)

func taskSpec() Spec {
	return Spec{
		"todo": {
			Initial: true,
			AllowedTransitions: []Transition{
				{To: "wip"},
			},
		},
		"wip": {
			AllowedTransitions: []Transition{
				{
					To:         "done",
					Guard:      "owns-session",
					Conditions: []ConditionRef{{Name: "children-done"}},
					Actions: []ActionRef{
						{Name: "advance-qa", When: Before},
						{Name: "notify", When: After},
					},
				},
			},
		},
		"done": {Final: true},
	}
}

func TestTransitionHappyPath(t *testing.T) {
	e := NewEngine()
	e.RegisterGuard("owns-session", func(ctx any) bool { return true })
	e.RegisterCondition("children-done", func(ctx any) (bool, string) { return true, "" })

	var order []string
	e.RegisterAction("advance-qa", func(ctx any) error {
		order = append(order, "advance-qa")
		return nil
	})
	e.RegisterAction("notify", func(ctx any) error {
		order = append(order, "notify")
		return nil
	})

	committed := false
	err := e.Transition(taskSpec(), "wip", "done", nil, func() error {
		order = append(order, "commit")
		committed = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !committed {
		t.Fatal("expected commit to run")
	}
	want := []string{"advance-qa", "commit", "notify"}
	if len(order) != len(want) {
		t.Fatalf("got order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got order %v, want %v", order, want)
		}
	}
}

func TestInvalidTransition(t *testing.T) {
	e := NewEngine()
	err := e.Transition(taskSpec(), "todo", "done", nil, func() error { return nil })
	var invalidErr *InvalidTransitionError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestGuardDenied(t *testing.T) {
	e := NewEngine()
	e.RegisterGuard("owns-session", func(ctx any) bool { return false })
	e.RegisterCondition("children-done", func(ctx any) (bool, string) { return true, "" })

	err := e.Transition(taskSpec(), "wip", "done", nil, func() error {
		t.Fatal("commit must not run when guard denies")
		return nil
	})
	var guardErr *GuardDeniedError
	if !errors.As(err, &guardErr) {
		t.Fatalf("expected GuardDeniedError, got %v", err)
	}
}

func TestConditionFailed(t *testing.T) {
	e := NewEngine()
	e.RegisterGuard("owns-session", func(ctx any) bool { return true })
	e.RegisterCondition("children-done", func(ctx any) (bool, string) { return false, "children-not-done" })

	err := e.Transition(taskSpec(), "wip", "done", nil, func() error {
		t.Fatal("commit must not run when a condition fails")
		return nil
	})
	var condErr *ConditionFailedError
	if !errors.As(err, &condErr) {
		t.Fatalf("expected ConditionFailedError, got %v", err)
	}
	if condErr.Message != "children-not-done" {
		t.Fatalf("got message %q", condErr.Message)
	}
}

func TestBeforeActionFailureAbortsCommit(t *testing.T) {
	e := NewEngine()
	e.RegisterGuard("owns-session", func(ctx any) bool { return true })
	e.RegisterCondition("children-done", func(ctx any) (bool, string) { return true, "" })
	e.RegisterAction("advance-qa", func(ctx any) error { return errors.New("boom") })
	e.RegisterAction("notify", func(ctx any) error { return nil })

	err := e.Transition(taskSpec(), "wip", "done", nil, func() error {
		t.Fatal("commit must not run when a before-action fails")
		return nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestAfterActionFailureKeepsCommit(t *testing.T) {
	e := NewEngine()
	e.RegisterGuard("owns-session", func(ctx any) bool { return true })
	e.RegisterCondition("children-done", func(ctx any) (bool, string) { return true, "" })
	e.RegisterAction("advance-qa", func(ctx any) error { return nil })
	e.RegisterAction("notify", func(ctx any) error { return errors.New("notify failed") })

	committed := false
	err := e.Transition(taskSpec(), "wip", "done", nil, func() error {
		committed = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error from failing after-action")
	}
	if !committed {
		t.Fatal("expected commit to have run despite after-action failure")
	}
}

func TestValidateTransitionDoesNotExecuteActions(t *testing.T) {
	e := NewEngine()
	e.RegisterGuard("owns-session", func(ctx any) bool { return true })
	e.RegisterCondition("children-done", func(ctx any) (bool, string) { return true, "" })
	e.RegisterAction("advance-qa", func(ctx any) error {
		t.Fatal("ValidateTransition must not execute actions")
		return nil
	})
	e.RegisterAction("notify", func(ctx any) error { return nil })

	if _, err := e.ValidateTransition(taskSpec(), "wip", "done", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsFinal(t *testing.T) {
	spec := taskSpec()
	if spec.IsFinal("wip") {
		t.Fatal("wip should not be final")
	}
	if !spec.IsFinal("done") {
		t.Fatal("done should be final")
	}
}
