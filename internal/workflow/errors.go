package workflow

import "errors"

// Sentinel errors for the workflow package.
var (
	// ErrInvalidTransition is returned when a requested operation's
	// preconditions on task/session state or ownership are not met.
	ErrInvalidTransition = errors.New("workflow: invalid transition")

	// ErrNotOwner is returned when a task is not currently owned by the
	// session attempting to operate on it.
	ErrNotOwner = errors.New("workflow: task is not owned by this session")
)
