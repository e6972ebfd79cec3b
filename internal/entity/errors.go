package entity

import "errors"

// Sentinel errors for the entity package.
var (
	// ErrNotFound is returned when no valid state directory contains the
	// requested id.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidState is returned when Save is called with an entity whose
	// State is not one of the repository's ValidStates.
	ErrInvalidState = errors.New("entity: invalid state")

	// ErrMalformed is returned when a Markdown file's frontmatter cannot be
	// parsed.
	ErrMalformed = errors.New("entity: malformed frontmatter")
)
