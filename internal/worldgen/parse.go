package worldgen

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parsed is a model reply split into its prose prefix and JSON payload.
type Parsed struct {
	Reasoning string
	Fields    map[string]any
}

// ParseReply splits a raw model reply into the reasoning text before the
// JSON payload and the payload itself. The primary strategy takes the span
// from the first '{' to the last '}'. When that span is not valid JSON
// (reasoning prose containing braces mis-slices it), each later '{' is tried
// as the payload start until one decodes as an object.
func ParseReply(text string) (*Parsed, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &fields); err == nil {
		return &Parsed{
			Reasoning: strings.TrimSpace(text[:start]),
			Fields:    fields,
		}, nil
	}

	// Recovery scan: decode a single object from each candidate '{'.
	for i := start; i <= end; i++ {
		if text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var obj map[string]any
		if err := dec.Decode(&obj); err == nil {
			return &Parsed{
				Reasoning: strings.TrimSpace(text[:i]),
				Fields:    obj,
			}, nil
		}
	}

	return nil, fmt.Errorf("invalid JSON in reply")
}
