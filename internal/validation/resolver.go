package validation

import (
	"fmt"
	"strings"

	"github.com/edison-dev/edison/internal/config"
)

// Resolver is the single source of truth for validation policy decisions:
// an explicit preset request, file-based inference, and escalation
// reasoning all flow through Resolve, per
// original_source/src/edison/core/qa/policy/resolver.py.
type Resolver struct {
	loader     *PresetLoader
	classifier *Classifier
}

// NewResolver builds a Resolver over a resolved config tree.
func NewResolver(cfg config.Value) *Resolver {
	loader := NewPresetLoader(cfg)
	return &Resolver{loader: loader, classifier: NewClassifier(loader)}
}

// Resolve determines the validation policy for a change:
//  1. An explicit, existing presetID always wins, with no escalation.
//  2. Otherwise, files are classified and a preset inferred; if the
//     inferred preset differs from the configured default, the policy is
//     marked escalated and carries a human-readable reason naming example
//     files per category.
func (r *Resolver) Resolve(files []string, presetID string) (Policy, error) {
	if presetID != "" {
		if preset, ok, err := r.loader.GetPreset(presetID); err != nil {
			return Policy{}, err
		} else if ok {
			return Policy{Preset: preset}, nil
		}
		// Unknown explicit preset: fall through to inference, matching
		// original_source's resolver (an unrecognized --preset value is not a
		// hard error; it's simply not found and inference takes over).
	}

	defaultID := r.loader.DefaultPresetID()
	defaultPreset, defaultOK, err := r.loader.GetPreset(defaultID)
	if err != nil {
		return Policy{}, err
	}

	inferredID := r.classifier.InferPresetFromFiles(files, defaultID)
	inferredPreset, inferredOK, err := r.loader.GetPreset(inferredID)
	if err != nil {
		return Policy{}, err
	}

	switch {
	case defaultOK && inferredOK:
		if inferredPreset.ID != defaultPreset.ID {
			return Policy{
				Preset:           inferredPreset,
				EscalatedFrom:    defaultPreset.ID,
				EscalationReason: r.buildEscalationReason(files, defaultPreset.ID, inferredPreset.ID),
			}, nil
		}
		return Policy{Preset: defaultPreset}, nil
	case inferredOK:
		return Policy{Preset: inferredPreset}, nil
	case defaultOK:
		return Policy{Preset: defaultPreset}, nil
	default:
		return Policy{Preset: Preset{ID: "standard", Name: "Standard Validation"}}, nil
	}
}

// buildEscalationReason lists up to three example files per escalating
// category, matching original_source's
// ValidationPolicyResolver._build_escalation_reason wording exactly.
func (r *Resolver) buildEscalationReason(files []string, fromPreset, toPreset string) string {
	if len(files) == 0 {
		return fmt.Sprintf("Escalated from %s to %s", fromPreset, toPreset)
	}

	var codeFiles, configFiles []string
	for _, f := range files {
		switch r.classifier.Classify(f) {
		case ClassCode:
			codeFiles = append(codeFiles, f)
		case ClassConfig:
			configFiles = append(configFiles, f)
		}
	}

	var reasons []string
	if len(codeFiles) > 0 {
		reasons = append(reasons, "code changes: "+strings.Join(firstN(codeFiles, 3), ", "))
	}
	if len(configFiles) > 0 {
		reasons = append(reasons, "config changes: "+strings.Join(firstN(configFiles, 3), ", "))
	}

	if len(reasons) == 0 {
		return fmt.Sprintf("Escalated from %s to %s", fromPreset, toPreset)
	}
	return fmt.Sprintf("Escalated from %s to %s due to %s", fromPreset, toPreset, strings.Join(reasons, "; "))
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// ListPresetIDs returns every configured preset id, sorted.
func (r *Resolver) ListPresetIDs() ([]string, error) {
	return r.loader.ListPresetIDs()
}

// GetPreset returns a single preset by id.
func (r *Resolver) GetPreset(id string) (Preset, bool, error) {
	return r.loader.GetPreset(id)
}

// EvidenceFileMap exposes the loader's logical-name → filename table for
// the evidence service.
func (r *Resolver) EvidenceFileMap() map[string]string {
	return r.loader.EvidenceFileMap()
}
