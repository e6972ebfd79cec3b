package config

import "testing"

func TestDeepMergeDicts(t *testing.T) {
	dst := NewValue(map[string]any{
		"a": 1,
		"b": map[string]any{"x": 1, "y": 2},
	})
	src := NewValue(map[string]any{
		"b": map[string]any{"y": 3, "z": 4},
		"c": 5,
	})

	merged := DeepMerge(dst, src)

	if got := merged.Get("a").Int(0); got != 1 {
		t.Errorf("a = %d, want 1", got)
	}
	if got := merged.Get("b", "x").Int(0); got != 1 {
		t.Errorf("b.x = %d, want 1 (preserved from dst)", got)
	}
	if got := merged.Get("b", "y").Int(0); got != 3 {
		t.Errorf("b.y = %d, want 3 (overridden by src)", got)
	}
	if got := merged.Get("b", "z").Int(0); got != 4 {
		t.Errorf("b.z = %d, want 4 (added by src)", got)
	}
	if got := merged.Get("c").Int(0); got != 5 {
		t.Errorf("c = %d, want 5", got)
	}
}

func TestDeepMergeListsReplace(t *testing.T) {
	dst := NewValue(map[string]any{"items": []any{"a", "b"}})
	src := NewValue(map[string]any{"items": []any{"c"}})

	merged := DeepMerge(dst, src)
	got := merged.Get("items").StringSlice()
	if len(got) != 1 || got[0] != "c" {
		t.Fatalf("got %v, want [c] (lists replace, not merge)", got)
	}
}

func TestMissingSectionYieldsEmptyMap(t *testing.T) {
	v := NewValue(map[string]any{"a": 1})
	sub := v.Get("nonexistent")
	if len(sub.Map()) != 0 {
		t.Fatalf("expected empty map for missing section, got %v", sub.Map())
	}
}

func TestNormalizeMapAnyAny(t *testing.T) {
	raw := map[any]any{"key": "value"}
	v := NewValue(raw)
	if got := v.Get("key").String(""); got != "value" {
		t.Fatalf("got %q", got)
	}
}
