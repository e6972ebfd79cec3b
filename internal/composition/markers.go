package composition

import "regexp"

// segment is one piece of a layer body: either literal ("plain") text, or
// the body of an EXTEND/NEW_SECTION/APPEND marker block (§3 Composition
// markers). A layer declares where its content goes by marker kind; the
// corresponding {{SECTION:X}}/{{EXTENSIBLE_SECTIONS}}/{{APPEND_SECTIONS}}
// placeholders in the template (the core layer's own body) say where that
// content is rendered.
type segment struct {
	Kind    string // "plain" | "EXTEND" | "NEW_SECTION" | "APPEND"
	Name    string // empty for "plain" and "APPEND"
	Content string
}

// markerRe matches one whole marker block, open tag through matching close
// tag, for any of the three marker kinds. Go's RE2 engine has no
// backreferences, so the close tag's own name (if any) is not checked
// against the open tag's — well-formed input is assumed, matching every
// other file this module parses.
var markerRe = regexp.MustCompile(`(?s)<!--\s*(EXTEND|NEW_SECTION|APPEND)(?::\s*([\w.-]+))?\s*-->(.*?)<!--\s*/(?:EXTEND|NEW_SECTION|APPEND)(?::\s*[\w.-]+)?\s*-->`)

// parseSegments splits body into an ordered sequence of plain-text and
// marker segments.
func parseSegments(body string) []segment {
	matches := markerRe.FindAllStringSubmatchIndex(body, -1)
	if matches == nil {
		return []segment{{Kind: "plain", Content: body}}
	}

	var out []segment
	cursor := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > cursor {
			out = append(out, segment{Kind: "plain", Content: body[cursor:start]})
		}

		kind := body[m[2]:m[3]]
		name := ""
		if m[4] != -1 {
			name = body[m[4]:m[5]]
		}
		content := body[m[6]:m[7]]
		out = append(out, segment{Kind: kind, Name: name, Content: content})

		cursor = end
	}
	if cursor < len(body) {
		out = append(out, segment{Kind: "plain", Content: body[cursor:]})
	}
	return out
}
