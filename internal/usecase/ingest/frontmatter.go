package ingest

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---"

// splitFrontmatter separates an optional leading YAML frontmatter block
// from the document body. Values are flattened to strings; list values
// join with commas. A document without frontmatter returns a nil map.
func splitFrontmatter(text string) (map[string]string, string, error) {
	if !strings.HasPrefix(text, frontmatterDelim+"\n") {
		return nil, text, nil
	}

	rest := text[len(frontmatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelim)
	if end < 0 {
		return nil, text, nil
	}

	block := rest[:end]
	body := rest[end+len(frontmatterDelim)+1:]
	body = strings.TrimLeft(body, "\n")

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(block), &raw); err != nil {
		return nil, "", fmt.Errorf("parse frontmatter: %w", err)
	}

	fm := make(map[string]string, len(raw))
	for k, v := range raw {
		fm[k] = flattenValue(v)
	}
	return fm, body, nil
}

func flattenValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, flattenValue(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}
