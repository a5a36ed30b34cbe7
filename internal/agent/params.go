package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// intParam reads an integer out of loosely-typed JSON params.
func intParam(params map[string]interface{}, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}

// stringsParam reads a string slice out of loosely-typed JSON params.
func stringsParam(params map[string]interface{}, key string) []string {
	v, ok := params[key]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// parseModelJSON decodes a JSON object from model output, tolerating markdown
// code fences. On failure the error carries the raw text so the ledger record
// is debuggable without re-running the model.
func parseModelJSON(content string, out any) error {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		snippet := trimmed
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return fmt.Errorf("malformed model output: %v (raw: %q)", err, snippet)
	}
	return nil
}

// clampScore bounds a model-reported score to [0,100].
func clampScore(v int) *int {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return &v
}
