package composition

import "fmt"

// CompositionValidationError is returned whenever a layer violates a
// composition invariant: an overlay with no target entity, a pack or
// project entity shadowing a core one, or an EXTEND into an unknown
// section. It always names the offending entity and layer, per spec §4.8.
type CompositionValidationError struct {
	Entity string
	Layer  string
	Reason string
}

func (e *CompositionValidationError) Error() string {
	return fmt.Sprintf("composition: %s (entity=%q, layer=%q)", e.Reason, e.Entity, e.Layer)
}
