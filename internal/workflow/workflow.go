// Package workflow implements the cross-entity Task–QA operations of spec
// §4.7: claim, complete, abort, and validate a task, plus session
// completion, all expressed atop internal/entity's repositories and
// internal/session's session store.
package workflow

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/edison-dev/edison/internal/config"
	"github.com/edison-dev/edison/internal/entity"
	"github.com/edison-dev/edison/internal/pathid"
	"github.com/edison-dev/edison/internal/session"
	"github.com/edison-dev/edison/internal/statemachine"
)

// Workflow wires the global Task/QA repositories and the session store
// together. Session-scoped Task/QA repositories are built on demand from a
// session's current state, since — like a Task or QA file itself — a
// session's directory moves as its state changes.
type Workflow struct {
	GlobalTasks *entity.Repository
	GlobalQA    *entity.Repository
	Sessions    *session.Repository

	TaskStates           []string
	QATaskStates         []string
	TaskTerminalStates   []string
	SessionTerminalState string

	// Engine drives every Task/QA transition below (spec §4.4); TaskSpec and
	// QASpec are the per-entity-type state machine specs it validates
	// against. Both are populated from config (task.state_machine,
	// qa.state_machine) by New, falling back to defaultTaskSpec/
	// defaultQASpec — which mirror the embedded core config — for Workflow
	// values built directly as a struct literal, e.g. in tests.
	Engine   *statemachine.Engine
	TaskSpec statemachine.Spec
	QASpec   statemachine.Spec

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// New builds a Workflow from resolved layered config (see internal/config),
// rooting every repository under projectRoot.
func New(cfg config.Value, projectRoot string) (*Workflow, error) {
	taskCfg, err := config.Task(cfg)
	if err != nil {
		return nil, err
	}
	qaCfg, err := config.QA(cfg)
	if err != nil {
		return nil, err
	}
	sessCfg, err := config.Session(cfg)
	if err != nil {
		return nil, err
	}
	if len(sessCfg.States) == 0 {
		return nil, fmt.Errorf("workflow: session.states must not be empty")
	}

	w := &Workflow{
		GlobalTasks:          entity.NewRepository(filepath.Join(projectRoot, taskCfg.StatesDir), taskCfg.States),
		GlobalQA:             entity.NewRepository(filepath.Join(projectRoot, qaCfg.StatesDir), qaCfg.States),
		Sessions:             session.NewRepository(filepath.Join(projectRoot, sessCfg.StatesDir), sessCfg.States),
		TaskStates:           taskCfg.States,
		QATaskStates:         qaCfg.States,
		TaskTerminalStates:   taskCfg.TerminalStates,
		SessionTerminalState: sessCfg.States[len(sessCfg.States)-1],
		TaskSpec:             taskCfg.StateMachine.States,
		QASpec:               qaCfg.StateMachine.States,
	}
	w.ensureEngine()
	return w, nil
}

func (w *Workflow) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Workflow) isTerminalTaskState(state string) bool {
	for _, s := range w.TaskTerminalStates {
		if s == state {
			return true
		}
	}
	return false
}

// ensureEngine lazily fills in the state machine engine and specs, so a
// Workflow assembled directly as a struct literal (as tests do) behaves
// identically to one built by New with an empty config.
func (w *Workflow) ensureEngine() {
	if w.Engine == nil {
		w.Engine = statemachine.NewEngine()
	}
	if w.TaskSpec == nil {
		w.TaskSpec = defaultTaskSpec()
	}
	if w.QASpec == nil {
		w.QASpec = defaultQASpec()
	}
	w.registerTransitions()
}

// transitionContext is the ctx value every Task/QA transition below passes
// to the engine: the entity being transitioned, the bookkeeping the
// "stamp-history" action needs to reproduce the caller's former manual
// AppendHistory call, and — for the wip->done edge only — the already
// resolved child tasks the "children-not-done" condition inspects.
type transitionContext struct {
	entity *entity.Entity
	from   string
	to     string
	reason string
	actor  string
	now    time.Time

	children []*entity.Entity
}

// registerTransitions wires the two callbacks every Task/QA transition in
// this package uses. It is safe to call more than once (each call just
// replaces the named registry entry with an equivalent closure).
func (w *Workflow) registerTransitions() {
	w.Engine.RegisterAction("stamp-history", func(ctx any) error {
		tc := ctx.(*transitionContext)
		tc.entity.AppendHistory(tc.from, tc.to, tc.reason, tc.actor, tc.now)
		tc.entity.State = tc.to
		tc.entity.Touch(tc.now)
		return nil
	})

	w.Engine.RegisterCondition("children-not-done", func(ctx any) (bool, string) {
		tc := ctx.(*transitionContext)
		for _, child := range tc.children {
			if !w.isTerminalTaskState(child.State) {
				return false, fmt.Sprintf("child task %s is %s, not a terminal state", child.ID, child.State)
			}
		}
		return true, ""
	})
}

// defaultTaskSpec mirrors embedded/config/core.yaml's task.state_machine
// section. New decodes that section straight from config; this is only the
// fallback used when a project's config omits it (and by Workflow values
// built directly as a struct literal).
func defaultTaskSpec() statemachine.Spec {
	stampHistory := []statemachine.ActionRef{{Name: "stamp-history", When: statemachine.Before}}
	return statemachine.Spec{
		"todo": {
			Initial: true,
			AllowedTransitions: []statemachine.Transition{
				{To: "wip", Actions: stampHistory},
			},
		},
		"wip": {
			AllowedTransitions: []statemachine.Transition{
				{To: "wip", Actions: stampHistory},
				{To: "done", Conditions: []statemachine.ConditionRef{{Name: "children-not-done"}}, Actions: stampHistory},
				{To: "todo", Actions: stampHistory},
			},
		},
		"done": {
			AllowedTransitions: []statemachine.Transition{
				{To: "validated", Actions: stampHistory},
			},
		},
		"validated": {Final: true},
	}
}

// defaultQASpec mirrors embedded/config/core.yaml's qa.state_machine
// section. Only the waiting->todo edge CompleteTask drives is populated;
// the remaining states are declared so IsFinal/inspection still see the
// full qa.states roster.
func defaultQASpec() statemachine.Spec {
	stampHistory := []statemachine.ActionRef{{Name: "stamp-history", When: statemachine.Before}}
	return statemachine.Spec{
		"waiting": {
			Initial: true,
			AllowedTransitions: []statemachine.Transition{
				{To: "todo", Actions: stampHistory},
			},
		},
		"todo":     {},
		"wip":      {},
		"done":     {},
		"approved": {Final: true},
		"rejected": {Final: true},
	}
}

// sessionTasks builds the Task repository rooted at the given session's
// current tasks directory.
func (w *Workflow) sessionTasks(sess *session.Session) *entity.Repository {
	root := filepath.Join(w.Sessions.Root, sess.State, sess.ID, "tasks")
	r := entity.NewRepository(root, w.TaskStates)
	r.Now = w.Now
	return r
}

// sessionQA builds the QA repository rooted at the given session's current
// qa directory.
func (w *Workflow) sessionQA(sess *session.Session) *entity.Repository {
	root := filepath.Join(w.Sessions.Root, sess.State, sess.ID, "qa")
	r := entity.NewRepository(root, w.QATaskStates)
	r.Now = w.Now
	return r
}

// findTask looks up id first in the session's own tree, then falls back to
// the global tree — used for the children-not-done condition, since a
// child may or may not be claimed into the same session as its parent.
func (w *Workflow) findTask(id string, sess *session.Session) (*entity.Entity, error) {
	if sess != nil {
		t, err := w.sessionTasks(sess).Get(id)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, entity.ErrNotFound) {
			return nil, err
		}
	}
	return w.GlobalTasks.Get(id)
}

// priorClaimState walks a task's state history backwards for the most
// recent "claimed" transition and returns the state it claimed away from,
// falling back to the task's configured initial state if none is found.
func priorClaimState(e *entity.Entity, initial string) string {
	for i := len(e.StateHistory) - 1; i >= 0; i-- {
		if e.StateHistory[i].Reason == "claimed" {
			return e.StateHistory[i].From
		}
	}
	return initial
}

// ClaimTask implements spec §4.7 claim_task: require task state ∈
// {todo, wip}; transition it to wip owned by session_id; relocate the Task
// (and, if present, its QA) from the global tree into the session tree.
func (w *Workflow) ClaimTask(taskID, sessionID string) (*entity.Entity, error) {
	w.ensureEngine()

	sess, err := w.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	task, err := w.GlobalTasks.Get(taskID)
	if err != nil {
		return nil, err
	}
	if task.State != "todo" && task.State != "wip" {
		return nil, fmt.Errorf("%w: task %s is %s, cannot claim", ErrInvalidTransition, taskID, task.State)
	}

	now := w.now()
	task.SessionID = sessionID
	tc := &transitionContext{entity: task, from: task.State, to: "wip", reason: "claimed", actor: sessionID, now: now}

	dstTasks := w.sessionTasks(sess)
	if err := w.Engine.Transition(w.TaskSpec, tc.from, tc.to, tc, func() error {
		return dstTasks.Save(task, "", "")
	}); err != nil {
		return nil, err
	}
	if err := w.GlobalTasks.Remove(taskID); err != nil {
		return nil, err
	}

	qaID := pathid.QAIDFromTaskID(taskID)
	qa, err := w.GlobalQA.Get(qaID)
	switch {
	case err == nil:
		qa.SessionID = sessionID
		if err := w.sessionQA(sess).Save(qa, "", ""); err != nil {
			return nil, err
		}
		if err := w.GlobalQA.Remove(qaID); err != nil {
			return nil, err
		}
	case errors.Is(err, entity.ErrNotFound):
		// Tolerated: a task need not have a QA record yet.
	default:
		return nil, err
	}

	return task, nil
}

// CompleteTask implements spec §4.7 complete_task: require the task be wip
// and owned by session_id; if it has children, every child must be in a
// terminal state; transition Task to done; if its QA is waiting, advance
// the QA to todo.
func (w *Workflow) CompleteTask(taskID, sessionID string) (*entity.Entity, error) {
	w.ensureEngine()

	sess, err := w.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	tasks := w.sessionTasks(sess)
	task, err := tasks.Get(taskID)
	if err != nil {
		return nil, err
	}
	if task.State != "wip" || task.SessionID != sessionID {
		return nil, fmt.Errorf("%w: task %s not claimed wip by session %s", ErrNotOwner, taskID, sessionID)
	}

	children := make([]*entity.Entity, 0, len(task.ChildIDs))
	for _, childID := range task.ChildIDs {
		child, err := w.findTask(childID, sess)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	now := w.now()
	tc := &transitionContext{
		entity: task, from: "wip", to: "done", reason: "completed", actor: sessionID, now: now,
		children: children,
	}
	if err := w.Engine.Transition(w.TaskSpec, tc.from, tc.to, tc, func() error {
		return tasks.Save(task, "", "")
	}); err != nil {
		return nil, err
	}

	qaRepo := w.sessionQA(sess)
	qaID := pathid.QAIDFromTaskID(taskID)
	qa, err := qaRepo.Get(qaID)
	switch {
	case err == nil:
		if qa.State == "waiting" {
			qtc := &transitionContext{entity: qa, from: "waiting", to: "todo", reason: "task-completed", actor: sessionID, now: now}
			if err := w.Engine.Transition(w.QASpec, qtc.from, qtc.to, qtc, func() error {
				return qaRepo.Save(qa, "", "")
			}); err != nil {
				return nil, err
			}
		}
	case errors.Is(err, entity.ErrNotFound):
		// Tolerated: no QA to advance.
	default:
		return nil, err
	}

	return task, nil
}

// AbortTask implements spec §4.7 abort_task: the reverse of claim — move
// the Task (and QA) back into the global tree in the state they were
// claimed from.
func (w *Workflow) AbortTask(taskID, sessionID string) (*entity.Entity, error) {
	w.ensureEngine()

	sess, err := w.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	tasks := w.sessionTasks(sess)
	task, err := tasks.Get(taskID)
	if err != nil {
		return nil, err
	}
	if task.SessionID != sessionID {
		return nil, fmt.Errorf("%w: task %s not owned by session %s", ErrNotOwner, taskID, sessionID)
	}

	initial := "todo"
	if len(w.TaskStates) > 0 {
		initial = w.TaskStates[0]
	}
	prior := priorClaimState(task, initial)

	now := w.now()
	tc := &transitionContext{entity: task, from: task.State, to: prior, reason: "aborted", actor: sessionID, now: now}
	if err := w.Engine.Transition(w.TaskSpec, tc.from, tc.to, tc, func() error {
		task.SessionID = ""
		return w.GlobalTasks.Save(task, "", "")
	}); err != nil {
		return nil, err
	}
	if err := tasks.Remove(taskID); err != nil {
		return nil, err
	}

	qaRepo := w.sessionQA(sess)
	qaID := pathid.QAIDFromTaskID(taskID)
	qa, err := qaRepo.Get(qaID)
	switch {
	case err == nil:
		qa.SessionID = ""
		if err := w.GlobalQA.Save(qa, "", ""); err != nil {
			return nil, err
		}
		if err := qaRepo.Remove(qaID); err != nil {
			return nil, err
		}
	case errors.Is(err, entity.ErrNotFound):
		// Tolerated.
	default:
		return nil, err
	}

	return task, nil
}

// ValidateTask implements spec §4.7 validate_task: after the QA workflow
// approves, Task transitions done→validated.
func (w *Workflow) ValidateTask(taskID, sessionID string) (*entity.Entity, error) {
	w.ensureEngine()

	sess, err := w.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	tasks := w.sessionTasks(sess)
	task, err := tasks.Get(taskID)
	if err != nil {
		return nil, err
	}
	if task.State != "done" {
		return nil, fmt.Errorf("%w: task %s is %s, want done", ErrInvalidTransition, taskID, task.State)
	}

	now := w.now()
	tc := &transitionContext{entity: task, from: "done", to: "validated", reason: "validated", actor: sessionID, now: now}
	if err := w.Engine.Transition(w.TaskSpec, tc.from, tc.to, tc, func() error {
		return tasks.Save(task, "", "")
	}); err != nil {
		return nil, err
	}
	return task, nil
}

// CompleteSession implements spec §4.7 complete_session: move every file
// under the session tree back to the global tree, preserving states, then
// transition the session to its terminal state. This is the point at which
// session-scoped records become globally visible.
func (w *Workflow) CompleteSession(sessionID string) error {
	sess, err := w.Sessions.Get(sessionID)
	if err != nil {
		return err
	}

	tasks := w.sessionTasks(sess)
	for _, state := range w.TaskStates {
		list, err := tasks.ListByState(state)
		if err != nil {
			return err
		}
		for _, t := range list {
			t.SessionID = ""
			if err := w.GlobalTasks.Save(t, "", ""); err != nil {
				return err
			}
			if err := tasks.Remove(t.ID); err != nil {
				return err
			}
		}
	}

	qa := w.sessionQA(sess)
	for _, state := range w.QATaskStates {
		list, err := qa.ListByState(state)
		if err != nil {
			return err
		}
		for _, q := range list {
			q.SessionID = ""
			if err := w.GlobalQA.Save(q, "", ""); err != nil {
				return err
			}
			if err := qa.Remove(q.ID); err != nil {
				return err
			}
		}
	}

	sess.State = w.SessionTerminalState
	return w.Sessions.Save(sess)
}
