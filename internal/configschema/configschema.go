// Package configschema validates resolved config domain façades (CIConfig,
// WorktreeConfig, and friends) against JSON schemas generated from their Go
// struct tags, catching operator mistakes (wrong type, typo'd field) beyond
// what YAML decoding alone would report.
package configschema

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/edison-dev/edison/internal/config"
)

// Validate checks v (a decoded config façade, e.g. a config.CIConfig) against
// the JSON schema generated from its type.
func Validate[T any](v T) error {
	schema, err := jsonschema.For[T](&jsonschema.ForOptions{})
	if err != nil {
		return fmt.Errorf("configschema: generate schema: %w", err)
	}

	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return fmt.Errorf("configschema: resolve schema: %w", err)
	}

	if err := resolved.Validate(v); err != nil {
		return fmt.Errorf("configschema: validate: %w", err)
	}
	return nil
}

// ValidateCI validates a decoded CIConfig façade.
func ValidateCI(cfg config.CIConfig) error {
	return Validate(cfg)
}

// ValidateWorktree validates a decoded WorktreeConfig façade.
func ValidateWorktree(cfg config.WorktreeConfig) error {
	return Validate(cfg)
}
