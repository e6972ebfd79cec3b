package validation

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// File classifications used to decide whether a change needs more than the
// "quick" preset.
const (
	ClassDoc    = "doc"
	ClassCode   = "code"
	ClassConfig = "config"
	ClassOther  = "other"
)

// ClassificationPatterns are the glob patterns used to classify a changed
// file into doc/code/config, packs/project-overridable via
// validation.{doc,code,config}_patterns.
type ClassificationPatterns struct {
	Doc    []string
	Code   []string
	Config []string
}

// Default classification patterns, mirrored from
// original_source/src/edison/core/qa/policy/inference.py's
// DEFAULT_{DOC,CODE,CONFIG}_PATTERNS. They apply only where the loaded config
// sets no validation.{doc,code,config}_patterns; embedded/config/core.yaml
// sets its own, shorter lists, which replace these when it is loaded.
var (
	DefaultDocPatterns = []string{
		"**/*.md", "**/*.mdx", "**/*.rst", "**/*.txt", "docs/**",
		"CHANGELOG*", "README*", "LICENSE*", "AUTHORS*", "CONTRIBUTING*",
	}
	DefaultCodePatterns = []string{
		"**/*.go", "**/*.py", "**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx",
		"**/*.rs", "**/*.java", "**/*.kt", "**/*.swift",
		"**/*.c", "**/*.cpp", "**/*.h", "**/*.hpp", "**/*.cs", "**/*.rb", "**/*.php",
	}
	DefaultConfigPatterns = []string{
		"pyproject.toml", "setup.py", "setup.cfg", "package.json", "tsconfig.json",
		"go.mod", "go.sum", "**/*.yaml", "**/*.yml", "**/*.json", "**/*.toml",
		"Makefile", "Dockerfile", "docker-compose*.yml", ".env*",
	}
)

// Classifier classifies changed files into doc/code/config/other using
// configured glob patterns, matched with doublestar so "docs/**"-style
// patterns work against full relative paths, not just the base name.
type Classifier struct {
	Patterns ClassificationPatterns
}

// NewClassifier builds a Classifier from a PresetLoader's configured (or
// default) patterns.
func NewClassifier(loader *PresetLoader) *Classifier {
	return &Classifier{Patterns: loader.EscalationPatterns()}
}

// Classify returns the class of file: ClassDoc, ClassCode, ClassConfig, or
// ClassOther, checked in that priority order (doc first, so "README.go"-style
// edge cases still resolve predictably by pattern order, not by which
// extension looks more specific).
func (c *Classifier) Classify(file string) string {
	if matchesAny(file, c.Patterns.Doc) {
		return ClassDoc
	}
	if matchesAny(file, c.Patterns.Code) {
		return ClassCode
	}
	if matchesAny(file, c.Patterns.Config) {
		return ClassConfig
	}
	return ClassOther
}

// matchesAny reports whether file matches any pattern, tried against the
// full (slash-normalized) path, the base name, and each path segment, so a
// pattern like "README*" matches "docs/README.md" via its base name even
// without an explicit "**/" prefix.
func matchesAny(file string, patterns []string) bool {
	clean := toSlash(file)
	base := path.Base(clean)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, clean); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
		for _, part := range strings.Split(clean, "/") {
			if ok, _ := doublestar.Match(pattern, part); ok {
				return true
			}
		}
	}
	return false
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// InferPresetFromFiles returns the preset id inferred from files: an empty
// list defers to defaultPresetID; a non-empty list with any code, config,
// or other file returns "standard"; an all-doc non-empty list returns
// "quick" outright (not defaultPresetID — matching
// original_source/src/edison/core/qa/policy/inference.py's
// infer_preset_from_files, which hardcodes "quick" for the doc-only case
// rather than falling back to the configured default).
func (c *Classifier) InferPresetFromFiles(files []string, defaultPresetID string) string {
	if len(files) == 0 {
		return defaultPresetID
	}

	for _, f := range files {
		switch c.Classify(f) {
		case ClassCode, ClassConfig, ClassOther:
			return "standard"
		}
	}
	return "quick"
}
