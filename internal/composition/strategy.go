package composition

import (
	"regexp"
	"strings"

	"github.com/edison-dev/edison/internal/config"
)

// MarkdownCompositionStrategy is the unified composition algorithm for all
// Markdown content types: section-based composition with EXTEND/NEW_SECTION/
// APPEND markers rendered into the core template's {{SECTION:X}}/
// {{EXTENSIBLE_SECTIONS}}/{{APPEND_SECTIONS}} placeholders, optional
// shingle-based deduplication, and optional {{config.a.b.c}} template
// substitution (spec §4.8).
type MarkdownCompositionStrategy struct {
	EnableSections           bool
	EnableDedupe             bool
	DedupeShingleSize        int
	EnableTemplateProcessing bool
}

// NewMarkdownCompositionStrategy builds a strategy with the package
// defaults (sections and template processing on, dedupe off, shingle size
// 12), overridable field-by-field by the caller afterward.
func NewMarkdownCompositionStrategy() *MarkdownCompositionStrategy {
	return &MarkdownCompositionStrategy{
		EnableSections:           true,
		EnableDedupe:             false,
		DedupeShingleSize:        12,
		EnableTemplateProcessing: true,
	}
}

// Compose runs the full pipeline over layers (already ordered core → packs
// → project) and returns the final Markdown text. name identifies the
// entity being composed, for CompositionValidationError.
func (s *MarkdownCompositionStrategy) Compose(name string, layers []LayerContent, ctx CompositionContext) (string, error) {
	if len(layers) == 0 {
		return "", nil
	}

	var composed string
	if s.EnableSections {
		out, err := composeSections(name, layers)
		if err != nil {
			return "", err
		}
		composed = out
	} else {
		parts := make([]string, len(layers))
		for i, l := range layers {
			parts[i] = strings.TrimRight(l.Content, "\n")
		}
		composed = strings.Join(parts, "\n\n")
	}

	if s.EnableDedupe {
		composed = dedupe(composed, s.DedupeShingleSize)
	}

	if s.EnableTemplateProcessing {
		composed = substituteConfigTemplate(composed, ctx.Config)
	}

	return strings.TrimSpace(composed) + "\n", nil
}

// knownSectionRe matches a {{SECTION:X}} placeholder in the template body.
var knownSectionRe = regexp.MustCompile(`\{\{\s*SECTION:([\w.-]+)\s*\}\}`)

// extensibleSectionsRe and appendSectionsRe match the two catch-all
// placeholders, each of which may appear at most meaningfully once.
var extensibleSectionsRe = regexp.MustCompile(`\{\{\s*EXTENSIBLE_SECTIONS\s*\}\}`)
var appendSectionsRe = regexp.MustCompile(`\{\{\s*APPEND_SECTIONS\s*\}\}`)

// composeSections implements spec §4.8 steps 1-3, grounded on
// original_source's SectionRegistry/SectionComposer: the first (core)
// layer's body is the template, and its own {{SECTION:X}} placeholders seed
// the set of known sections. Every layer (core included) may then EXTEND a
// known or extensible section, declare a NEW_SECTION (which becomes
// extensible so later layers can EXTEND it), or APPEND catch-all content.
// EXTEND into a section that is neither known nor extensible, and
// NEW_SECTION colliding with a known section, are validation errors.
func composeSections(name string, layers []LayerContent) (string, error) {
	if len(layers) == 0 {
		return "", nil
	}

	known := map[string][]string{}
	for _, m := range knownSectionRe.FindAllStringSubmatch(layers[0].Content, -1) {
		if _, ok := known[m[1]]; !ok {
			known[m[1]] = nil
		}
	}

	extensible := map[string][]string{}
	var extensibleOrder []string
	var appendBlocks []string
	var template strings.Builder

	for li, layer := range layers {
		for _, seg := range parseSegments(layer.Content) {
			switch seg.Kind {
			case "plain":
				if li == 0 {
					template.WriteString(seg.Content)
				}

			case "EXTEND":
				content := strings.TrimSpace(seg.Content)
				switch {
				case isKnownName(known, seg.Name):
					known[seg.Name] = append(known[seg.Name], content)
				case isKnownName(extensible, seg.Name):
					extensible[seg.Name] = append(extensible[seg.Name], content)
				default:
					return "", &CompositionValidationError{
						Entity: name, Layer: layer.Source,
						Reason: "\"" + seg.Name + "\" is not a known or extensible section",
					}
				}

			case "NEW_SECTION":
				if isKnownName(known, seg.Name) {
					return "", &CompositionValidationError{
						Entity: name, Layer: layer.Source,
						Reason: "NEW_SECTION \"" + seg.Name + "\" is already a known section",
					}
				}
				if !isKnownName(extensible, seg.Name) {
					extensibleOrder = append(extensibleOrder, seg.Name)
				}
				extensible[seg.Name] = append(extensible[seg.Name], strings.TrimSpace(seg.Content))

			case "APPEND":
				if content := strings.TrimSpace(seg.Content); content != "" {
					appendBlocks = append(appendBlocks, content)
				}
			}
		}
	}

	result := template.String()
	for secName, contents := range known {
		placeholder := "{{SECTION:" + secName + "}}"
		result = strings.ReplaceAll(result, placeholder, strings.Join(contents, "\n\n"))
	}

	var extensibleBlocks []string
	for _, secName := range extensibleOrder {
		extensibleBlocks = append(extensibleBlocks, strings.Join(extensible[secName], "\n\n"))
	}
	result = extensibleSectionsRe.ReplaceAllString(result, strings.Join(extensibleBlocks, "\n\n"))
	result = appendSectionsRe.ReplaceAllString(result, strings.Join(appendBlocks, "\n\n"))

	return result, nil
}

// isKnownName reports whether name is a key of m, regardless of whether its
// value slice is nil (a section with no content yet is still known).
func isKnownName(m map[string][]string, name string) bool {
	_, ok := m[name]
	return ok
}

// paragraphRe splits composed text into paragraph blocks on one or more
// blank lines.
var paragraphRe = regexp.MustCompile(`\n\s*\n+`)

func paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphRe.Split(text, -1) {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// shingles returns the set of contiguous n-token windows in text, or a
// single shingle of the whole text when it is shorter than n tokens.
func shingles(text string, n int) map[string]bool {
	tokens := strings.Fields(text)
	set := map[string]bool{}
	if n <= 0 {
		n = 1
	}
	if len(tokens) < n {
		set[strings.Join(tokens, " ")] = true
		return set
	}
	for i := 0; i+n <= len(tokens); i++ {
		set[strings.Join(tokens[i:i+n], " ")] = true
	}
	return set
}

func shinglesIntersect(a, b map[string]bool) bool {
	small, big := a, b
	if len(b) < len(a) {
		small, big = b, a
	}
	for k := range small {
		if big[k] {
			return true
		}
	}
	return false
}

// dedupe implements spec §4.8 step 4: paragraphs appearing earlier in the
// composed text are lower-priority (core comes first, project last, since
// composeSections and the no-sections concatenation both emit layers in
// that order), so when two paragraphs share a shingle the earlier one is
// dropped and the later one survives.
func dedupe(text string, shingleSize int) string {
	paras := paragraphs(text)
	sets := make([]map[string]bool, len(paras))
	for i, p := range paras {
		sets[i] = shingles(p, shingleSize)
	}

	keep := make([]bool, len(paras))
	for i := range paras {
		keep[i] = true
	}
	for i := range paras {
		for j := i + 1; j < len(paras); j++ {
			if shinglesIntersect(sets[i], sets[j]) {
				keep[i] = false
				break
			}
		}
	}

	var out []string
	for i, p := range paras {
		if keep[i] {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

// configTemplateRe matches {{config.a.b.c}} references.
var configTemplateRe = regexp.MustCompile(`\{\{\s*config\.([\w.-]+)\s*\}\}`)

// substituteConfigTemplate implements spec §4.8 step 5: replace each
// {{config.a.b.c}} reference with the resolved config value at that dotted
// path, or leave it blank if absent (missing config never fails
// composition, per §4.3's tolerant-getter contract).
func substituteConfigTemplate(text string, cfg config.Value) string {
	return configTemplateRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := configTemplateRe.FindStringSubmatch(match)
		if sub == nil {
			return match
		}
		path := strings.Split(sub[1], ".")
		return cfg.Get(path...).String("")
	})
}
