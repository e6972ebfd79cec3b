package config

import "sort"

// Value is a dynamic config value: one of nil, bool, int64, float64, string,
// []Value, or map[string]Value. It is the merge tree's element type so that
// arbitrarily nested pack/project YAML can be deep-merged without a fixed Go
// struct shape.
type Value struct {
	raw any
}

// NewValue wraps a decoded YAML/JSON value (as produced by yaml.Unmarshal
// into an any) into a Value tree, normalizing map[any]any (which
// gopkg.in/yaml.v3 produces for nested maps with non-string keys) into
// map[string]any.
func NewValue(raw any) Value {
	return Value{raw: normalize(raw)}
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalize(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[toString(k)] = normalize(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalize(vv)
		}
		return out
	default:
		return v
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// IsZero reports whether the value is absent (nil raw).
func (v Value) IsZero() bool {
	return v.raw == nil
}

// Map returns the value as a map, or an empty map if the value is not a map.
// Per spec: "missing sections yield empty dicts, never crash".
func (v Value) Map() map[string]Value {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return map[string]Value{}
	}
	out := make(map[string]Value, len(m))
	for k, vv := range m {
		out[k] = Value{raw: vv}
	}
	return out
}

// RawMap returns the underlying map[string]any, or an empty map if the value
// is not a map. Useful for passing a subsection straight to yaml/json
// marshaling when decoding into a typed façade.
func (v Value) RawMap() map[string]any {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

// Get looks up a dotted path (e.g. "session.worktree.mode") through nested
// maps, returning a zero Value if any segment is missing or not a map.
func (v Value) Get(path ...string) Value {
	cur := v
	for _, seg := range path {
		m, ok := cur.raw.(map[string]any)
		if !ok {
			return Value{}
		}
		next, ok := m[seg]
		if !ok {
			return Value{}
		}
		cur = Value{raw: next}
	}
	return cur
}

// String returns the value as a string, or def if the value is not a string.
func (v Value) String(def string) string {
	if s, ok := v.raw.(string); ok {
		return s
	}
	return def
}

// Bool returns the value as a bool, or def if the value is not a bool.
func (v Value) Bool(def bool) bool {
	if b, ok := v.raw.(bool); ok {
		return b
	}
	return def
}

// Int returns the value as an int, accepting int, int64, and float64 (as
// produced by JSON/YAML decoders), or def otherwise.
func (v Value) Int(def int) int {
	switch t := v.raw.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return def
}

// Slice returns the value as a []Value, or nil if it is not a list.
func (v Value) Slice() []Value {
	s, ok := v.raw.([]any)
	if !ok {
		return nil
	}
	out := make([]Value, len(s))
	for i, vv := range s {
		out[i] = Value{raw: vv}
	}
	return out
}

// StringSlice returns the value as a []string, skipping non-string elements.
func (v Value) StringSlice() []string {
	var out []string
	for _, vv := range v.Slice() {
		if s, ok := vv.raw.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Keys returns the sorted keys of the value's map (empty if not a map).
func (v Value) Keys() []string {
	m := v.Map()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DeepMerge merges src into dst and returns the result: maps merge
// recursively key-by-key; any other type (list, scalar, or a type mismatch)
// has src replace dst wholesale, per spec §4.3 ("dicts merge recursively;
// lists and scalars replace").
func DeepMerge(dst, src Value) Value {
	dstMap, dstIsMap := dst.raw.(map[string]any)
	srcMap, srcIsMap := src.raw.(map[string]any)

	if !dstIsMap || !srcIsMap {
		if src.IsZero() {
			return dst
		}
		return src
	}

	out := make(map[string]any, len(dstMap)+len(srcMap))
	for k, v := range dstMap {
		out[k] = v
	}
	for k, sv := range srcMap {
		dv, ok := out[k]
		merged := DeepMerge(Value{raw: dv}, Value{raw: sv})
		_ = ok
		out[k] = merged.raw
	}
	return Value{raw: out}
}
