package validation

import (
	"fmt"
	"sort"

	"github.com/edison-dev/edison/internal/config"
)

// PresetLoader loads validation presets and the default-preset/escalation
// pattern configuration from a resolved config tree's "validation" section.
type PresetLoader struct {
	cfg config.Value
}

// NewPresetLoader wraps a resolved config tree.
func NewPresetLoader(cfg config.Value) *PresetLoader {
	return &PresetLoader{cfg: cfg}
}

func (l *PresetLoader) section() config.Value {
	return l.cfg.Get("validation")
}

// DefaultPresetID returns "validation.preset", falling back to "quick" if
// unset.
func (l *PresetLoader) DefaultPresetID() string {
	return l.section().Get("preset").String("quick")
}

// LoadPresets parses every entry under "validation.presets" into a Preset,
// keyed by preset id. A preset whose "required_evidence" or
// "blocking_validators" key is present but not a list is a config error
// (fail-closed); an absent or explicitly null key yields an empty list.
func (l *PresetLoader) LoadPresets() (map[string]Preset, error) {
	presetsVal := l.section().Get("presets")
	out := make(map[string]Preset)
	for id, pv := range presetsVal.Map() {
		preset, err := l.parsePreset(id, pv)
		if err != nil {
			return nil, err
		}
		out[id] = preset
	}
	return out, nil
}

// GetPreset returns a single preset by id, or ok=false if it does not exist.
func (l *PresetLoader) GetPreset(id string) (Preset, bool, error) {
	presets, err := l.LoadPresets()
	if err != nil {
		return Preset{}, false, err
	}
	p, ok := presets[id]
	return p, ok, nil
}

// ListPresetIDs returns every configured preset id, sorted.
func (l *PresetLoader) ListPresetIDs() ([]string, error) {
	presets, err := l.LoadPresets()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(presets))
	for id := range presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// EscalationPatterns returns the configured doc/code/config glob patterns
// used to classify changed files, falling back to the built-in defaults for
// any category left unset.
func (l *PresetLoader) EscalationPatterns() ClassificationPatterns {
	v := l.section()
	return ClassificationPatterns{
		Doc:    stringSliceOr(v.Get("doc_patterns"), DefaultDocPatterns),
		Code:   stringSliceOr(v.Get("code_patterns"), DefaultCodePatterns),
		Config: stringSliceOr(v.Get("config_patterns"), DefaultConfigPatterns),
	}
}

// EvidenceFileMap returns "validation.evidence.files", the logical command
// name → evidence filename translation table (e.g. "test" ->
// "command-test.txt"), consumed by the evidence service when resolving a
// preset's required_evidence into concrete filenames.
func (l *PresetLoader) EvidenceFileMap() map[string]string {
	out := map[string]string{}
	for k, v := range l.section().Get("evidence", "files").Map() {
		if s := v.String(""); s != "" {
			out[k] = s
		}
	}
	return out
}

func stringSliceOr(v config.Value, fallback []string) []string {
	if v.IsZero() {
		return fallback
	}
	s := v.StringSlice()
	if s == nil {
		return fallback
	}
	return s
}

func (l *PresetLoader) parsePreset(id string, v config.Value) (Preset, error) {
	raw := v.RawMap()

	validators := v.Get("validators").StringSlice()

	requiredEvidence, err := stringListField(raw, "required_evidence", id)
	if err != nil {
		return Preset{}, err
	}

	blockingValidators, err := stringListField(raw, "blocking_validators", id)
	if err != nil {
		return Preset{}, err
	}

	name := v.Get("name").String(id)
	staleEvidence := v.Get("stale_evidence").String("warn")

	return Preset{
		ID:                 id,
		Name:               name,
		Description:        v.Get("description").String(""),
		Validators:         validators,
		RequiredEvidence:   requiredEvidence,
		BlockingValidators: blockingValidators,
		StaleEvidence:      staleEvidence,
		EscalatesTo:        v.Get("escalates_to").String(""),
	}, nil
}

// stringListField extracts field from raw as a []string: absent or
// explicitly null yields (nil, nil); present-but-not-a-list is a fail-closed
// InvalidPresetConfigError, since an operator configured a constraint that
// would otherwise silently vanish.
func stringListField(raw map[string]any, field, presetID string) ([]string, error) {
	val, present := raw[field]
	if !present || val == nil {
		return nil, nil
	}
	list, ok := val.([]any)
	if !ok {
		return nil, &InvalidPresetConfigError{
			Preset: presetID, Field: field,
			Reason: fmt.Sprintf("expected a list, got %T", val),
		}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
