package entity

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---"

// parseFrontmatter splits data into a YAML frontmatter block and a Markdown
// body. The file must begin with a line containing exactly "---", followed
// by YAML, followed by another line containing exactly "---".
func parseFrontmatter(data []byte) (*Entity, error) {
	text := string(data)
	lines := strings.Split(text, "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontmatterDelim {
		return nil, fmt.Errorf("%w: missing opening frontmatter delimiter", ErrMalformed)
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterDelim {
			end = i
			break
		}
	}
	if end == -1 {
		return nil, fmt.Errorf("%w: missing closing frontmatter delimiter", ErrMalformed)
	}

	yamlBlock := strings.Join(lines[1:end], "\n")

	var e Entity
	if err := yaml.Unmarshal([]byte(yamlBlock), &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	body := strings.Join(lines[end+1:], "\n")
	e.Body = strings.TrimPrefix(body, "\n")

	if e.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrMalformed)
	}

	return &e, nil
}

// serializeFrontmatter renders e back to the "---\n<yaml>\n---\n\n<body>"
// form. Field order is the struct's declared order (deterministic); unset
// optional fields are omitted via `omitempty`.
func serializeFrontmatter(e *Entity) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.WriteString(frontmatterDelim)
	out.WriteString("\n")
	out.Write(buf.Bytes())
	out.WriteString(frontmatterDelim)
	out.WriteString("\n\n")
	out.WriteString(e.Body)

	return out.Bytes(), nil
}
