// Package ingest imports Markdown files from a drop folder into the note
// store: YAML frontmatter supplies the title, labels, and relations, the
// body becomes the note content. A checksum per file skips unchanged
// re-imports, and an fsnotify watcher keeps the folder live.
package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the parsed form of one dropped Markdown file.
type Document struct {
	Title    string
	Body     string
	Labels   []string          // frontmatter "tags"
	Archived bool              // frontmatter "archived"
	Meta     map[string]string // remaining scalar frontmatter, kept as labels with values
}

// ParseMarkdown extracts frontmatter and body from raw Markdown bytes.
// Invalid YAML falls back to treating the whole input as body.
func ParseMarkdown(data []byte) *Document {
	fm, body := splitFrontmatter(data)
	doc := &Document{Body: body, Meta: map[string]string{}}

	for k, v := range fm {
		switch k {
		case "title":
			if s, ok := v.(string); ok {
				doc.Title = s
			}
		case "tags":
			if items, ok := v.([]any); ok {
				for _, item := range items {
					if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
						doc.Labels = append(doc.Labels, strings.TrimSpace(s))
					}
				}
			}
		case "archived":
			if b, ok := v.(bool); ok {
				doc.Archived = b
			}
		default:
			switch s := v.(type) {
			case string:
				doc.Meta[k] = s
			case int:
				doc.Meta[k] = yamlScalar(v)
			case float64:
				doc.Meta[k] = yamlScalar(v)
			}
		}
	}

	if doc.Title == "" {
		doc.Title = firstHeading(body)
	}
	return doc
}

func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}
	yamlBlock := rest[:idx]
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func yamlScalar(v any) string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// Checksum returns the hex SHA-256 of data; used to skip unchanged files.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
