// Package statemachine implements the generic transition engine shared by
// every entity type (Task, QA, Session): states, allowed transitions,
// guards (boolean), conditions (preconditions with a message), and actions
// (side effects that run before or after the state change).
//
// The engine holds no entity state itself — callers pass a commit function
// that performs the actual persistence between the "before" and "after"
// action phases, per spec §4.4:
//  1. find the allowed transition for (from, to); none found → InvalidTransition
//  2. if the transition has a guard, invoke it; false → GuardDenied
//  3. run each condition in order; first failure → ConditionFailed
//  4. run every "before" action
//  5. commit the state change
//  6. run every "after" (or unspecified) action
//
// Callers that commit state changes MUST call Transition (which runs
// actions); ValidateTransition is for inspection only and never executes
// actions. Actions are not retried on caller failure after they run — side
// effects are at-most-once per call and must be idempotent.
package statemachine

import "fmt"

// When identifies the action execution phase relative to the commit.
type When string

const (
	// Before actions run prior to the commit.
	Before When = "before"
	// After actions run following a successful commit. This is also the
	// default when a transition's action entry omits When.
	After When = "after"
)

// ConditionRef names a registered condition to evaluate during a transition.
type ConditionRef struct {
	Name string `yaml:"name" json:"name"`
}

// ActionRef names a registered action and the phase it runs in.
type ActionRef struct {
	Name string `yaml:"name" json:"name"`
	When When   `yaml:"when,omitempty" json:"when,omitempty"`
}

func (a ActionRef) phase() When {
	if a.When == "" {
		return After
	}
	return a.When
}

// Transition describes one allowed edge out of a state.
type Transition struct {
	To         string         `yaml:"to" json:"to"`
	Guard      string         `yaml:"guard,omitempty" json:"guard,omitempty"`
	Conditions []ConditionRef `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Actions    []ActionRef    `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// StateSpec describes one state and its outgoing transitions.
type StateSpec struct {
	Initial            bool         `yaml:"initial,omitempty" json:"initial,omitempty"`
	Final              bool         `yaml:"final,omitempty" json:"final,omitempty"`
	AllowedTransitions []Transition `yaml:"allowed_transitions,omitempty" json:"allowed_transitions,omitempty"`
}

// Spec is a full state machine specification for one entity type, keyed by
// state name. It is ordinarily decoded from config (see spec §4.3/§4.4).
type Spec map[string]StateSpec

// IsFinal reports whether state is marked final in spec. Unknown states are
// not final.
func (s Spec) IsFinal(state string) bool {
	return s[state].Final
}

// GuardFunc evaluates a guard against ctx; false denies the transition.
type GuardFunc func(ctx any) bool

// ConditionFunc evaluates a named precondition, returning ok and, when not
// ok, a human-readable message.
type ConditionFunc func(ctx any) (ok bool, message string)

// ActionFunc performs a side effect. An error from an "after" action is
// surfaced to the caller but does not undo the already-committed state
// change; an error from a "before" action aborts the transition before
// commit is called.
type ActionFunc func(ctx any) error

// Engine holds the named guard/condition/action registries shared across
// transitions. It is safe to reuse one Engine across many entity types and
// Spec values; registries are looked up by name at transition time.
type Engine struct {
	guards     map[string]GuardFunc
	conditions map[string]ConditionFunc
	actions    map[string]ActionFunc
}

// NewEngine returns an Engine with empty registries.
func NewEngine() *Engine {
	return &Engine{
		guards:     make(map[string]GuardFunc),
		conditions: make(map[string]ConditionFunc),
		actions:    make(map[string]ActionFunc),
	}
}

// RegisterGuard adds or replaces a named guard.
func (e *Engine) RegisterGuard(name string, fn GuardFunc) {
	e.guards[name] = fn
}

// RegisterCondition adds or replaces a named condition.
func (e *Engine) RegisterCondition(name string, fn ConditionFunc) {
	e.conditions[name] = fn
}

// RegisterAction adds or replaces a named action.
func (e *Engine) RegisterAction(name string, fn ActionFunc) {
	e.actions[name] = fn
}

// findTransition locates the allowed transition from "from" to "to" in spec.
func findTransition(spec Spec, from, to string) (*Transition, error) {
	state, ok := spec[from]
	if !ok {
		return nil, &InvalidTransitionError{From: from, To: to, Reason: "unknown source state"}
	}
	for i := range state.AllowedTransitions {
		if state.AllowedTransitions[i].To == to {
			return &state.AllowedTransitions[i], nil
		}
	}
	return nil, &InvalidTransitionError{From: from, To: to, Reason: "no allowed edge"}
}

// ValidateTransition runs steps 1–3 (find transition, guard, conditions)
// without executing any actions or committing anything. It is for
// inspection: "can this transition happen right now".
func (e *Engine) ValidateTransition(spec Spec, from, to string, ctx any) (*Transition, error) {
	t, err := findTransition(spec, from, to)
	if err != nil {
		return nil, err
	}

	if t.Guard != "" {
		guard, ok := e.guards[t.Guard]
		if !ok {
			return nil, fmt.Errorf("statemachine: unregistered guard %q", t.Guard)
		}
		if !guard(ctx) {
			return nil, &GuardDeniedError{Guard: t.Guard}
		}
	}

	for _, cref := range t.Conditions {
		cond, ok := e.conditions[cref.Name]
		if !ok {
			return nil, fmt.Errorf("statemachine: unregistered condition %q", cref.Name)
		}
		if ok, msg := cond(ctx); !ok {
			return nil, &ConditionFailedError{Name: cref.Name, Message: msg}
		}
	}

	return t, nil
}

// Transition runs the full validate→before-actions→commit→after-actions
// sequence. commit is invoked exactly once, between the before and after
// action phases, and only if validation and every before action succeeded.
//
// If commit returns an error, after-actions are skipped and the error is
// returned as-is (the caller's commit is responsible for leaving the entity
// unchanged on its own failure). If an after action fails, the error is
// returned but the commit is NOT undone — the state change is kept, per
// spec §7's propagation policy.
func (e *Engine) Transition(spec Spec, from, to string, ctx any, commit func() error) error {
	t, err := e.ValidateTransition(spec, from, to, ctx)
	if err != nil {
		return err
	}

	for _, aref := range t.Actions {
		if aref.phase() != Before {
			continue
		}
		action, ok := e.actions[aref.Name]
		if !ok {
			return fmt.Errorf("statemachine: unregistered action %q", aref.Name)
		}
		if err := action(ctx); err != nil {
			return fmt.Errorf("statemachine: before-action %q: %w", aref.Name, err)
		}
	}

	if err := commit(); err != nil {
		return err
	}

	for _, aref := range t.Actions {
		if aref.phase() != After {
			continue
		}
		action, ok := e.actions[aref.Name]
		if !ok {
			return fmt.Errorf("statemachine: unregistered action %q", aref.Name)
		}
		if err := action(ctx); err != nil {
			return fmt.Errorf("statemachine: after-action %q: %w", aref.Name, err)
		}
	}

	return nil
}
