package providers

import (
	"encoding/json"
	"strings"
)

// ParseObject decodes data as a JSON object.
func ParseObject(data []byte) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// ContentText flattens a message content value: a string, an object with a
// "text" field, or a list of either. List parts are joined by newlines.
func ContentText(content any) string {
	switch c := content.(type) {
	case string:
		return strings.TrimSpace(c)
	case map[string]any:
		if text, ok := c["text"].(string); ok {
			return strings.TrimSpace(text)
		}
	case []any:
		var parts []string
		for _, item := range c {
			var seg string
			switch it := item.(type) {
			case string:
				seg = strings.TrimSpace(it)
			case map[string]any:
				if text, ok := it["text"].(string); ok {
					seg = strings.TrimSpace(text)
				}
			}
			if seg != "" {
				parts = append(parts, seg)
			}
		}
		return strings.TrimSpace(strings.Join(parts, "\n"))
	}
	return ""
}

// Field walks nested objects and returns the value at path, or nil.
func Field(obj map[string]any, path ...string) any {
	var cur any = obj
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}
