package validation

import (
	"testing"

	"github.com/edison-dev/edison/internal/config"
)

func validationCfg(presets map[string]any) config.Value {
	return config.NewValue(map[string]any{
		"validation": map[string]any{
			"preset": "quick",
			"evidence": map[string]any{
				"files": map[string]any{
					"test": "command-test.txt",
					"lint": "command-lint.txt",
				},
			},
			"presets": presets,
		},
	})
}

func TestLoadPresetsBasic(t *testing.T) {
	cfg := validationCfg(map[string]any{
		"quick": map[string]any{
			"name":                "Quick",
			"validators":          []any{"lint"},
			"required_evidence":   []any{},
			"blocking_validators": []any{"lint"},
			"stale_evidence":      "warn",
			"escalates_to":        "standard",
		},
		"standard": map[string]any{
			"name":              "Standard",
			"validators":        []any{"lint", "test"},
			"required_evidence": []any{"test", "lint"},
		},
	})
	loader := NewPresetLoader(cfg)
	presets, err := loader.LoadPresets()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(presets) != 2 {
		t.Fatalf("got %d presets, want 2", len(presets))
	}
	quick := presets["quick"]
	if quick.Name != "Quick" || quick.EscalatesTo != "standard" {
		t.Fatalf("unexpected quick preset: %+v", quick)
	}
	if len(quick.RequiredEvidence) != 0 {
		t.Fatalf("expected empty required evidence, got %v", quick.RequiredEvidence)
	}
	standard := presets["standard"]
	if len(standard.RequiredEvidence) != 2 {
		t.Fatalf("expected 2 required evidence entries, got %v", standard.RequiredEvidence)
	}
}

func TestLoadPresetsMissingRequiredEvidenceIsEmpty(t *testing.T) {
	cfg := validationCfg(map[string]any{
		"quick": map[string]any{"name": "Quick"},
	})
	loader := NewPresetLoader(cfg)
	presets, err := loader.LoadPresets()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if presets["quick"].RequiredEvidence != nil {
		t.Fatalf("expected nil required evidence, got %v", presets["quick"].RequiredEvidence)
	}
}

func TestLoadPresetsInvalidRequiredEvidenceTypeFails(t *testing.T) {
	cfg := validationCfg(map[string]any{
		"quick": map[string]any{
			"name":              "Quick",
			"required_evidence": "command-test.txt",
		},
	})
	loader := NewPresetLoader(cfg)
	_, err := loader.LoadPresets()
	if err == nil {
		t.Fatal("expected error for non-list required_evidence")
	}
	ipe, ok := err.(*InvalidPresetConfigError)
	if !ok {
		t.Fatalf("got %v (%T), want *InvalidPresetConfigError", err, err)
	}
	if ipe.Field != "required_evidence" {
		t.Fatalf("field = %q, want required_evidence", ipe.Field)
	}
}

func TestEvidenceFileMap(t *testing.T) {
	cfg := validationCfg(map[string]any{})
	loader := NewPresetLoader(cfg)
	m := loader.EvidenceFileMap()
	if m["test"] != "command-test.txt" {
		t.Fatalf("got %v", m)
	}
	if m["lint"] != "command-lint.txt" {
		t.Fatalf("got %v", m)
	}
}

func TestDefaultPresetIDFallback(t *testing.T) {
	cfg := config.NewValue(map[string]any{})
	loader := NewPresetLoader(cfg)
	if got := loader.DefaultPresetID(); got != "quick" {
		t.Fatalf("got %q, want quick", got)
	}
}

func TestEscalationPatternsFallbackToDefaults(t *testing.T) {
	cfg := config.NewValue(map[string]any{})
	loader := NewPresetLoader(cfg)
	patterns := loader.EscalationPatterns()
	if len(patterns.Doc) != len(DefaultDocPatterns) {
		t.Fatalf("expected default doc patterns, got %v", patterns.Doc)
	}
}

func TestEscalationPatternsOverride(t *testing.T) {
	cfg := config.NewValue(map[string]any{
		"validation": map[string]any{
			"code_patterns": []any{"**/*.zig"},
		},
	})
	loader := NewPresetLoader(cfg)
	patterns := loader.EscalationPatterns()
	if len(patterns.Code) != 1 || patterns.Code[0] != "**/*.zig" {
		t.Fatalf("expected override to take effect, got %v", patterns.Code)
	}
}
