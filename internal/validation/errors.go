package validation

import "fmt"

// InvalidPresetConfigError is returned when a preset's config section has a
// present-but-wrongly-typed field (e.g. "required_evidence" set to a
// string instead of a list). A preset with an absent field falls back to
// its zero value; a present, malformed one fails closed rather than
// silently dropping the constraint it was meant to enforce.
type InvalidPresetConfigError struct {
	Preset string
	Field  string
	Reason string
}

func (e *InvalidPresetConfigError) Error() string {
	return fmt.Sprintf("validation: preset %q field %q: %s", e.Preset, e.Field, e.Reason)
}
