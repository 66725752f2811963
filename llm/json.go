package llm

import (
	"encoding/json"
	"strings"
)

// StripFences removes a leading markdown code fence (with optional
// language tag) and the matching trailing fence from an LLM response.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag on the opening fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "" || !strings.ContainsAny(first, "{}[]\"") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// DecodeJSON parses an LLM response into v, tolerating markdown fences.
// LLM output is untrusted text; callers fall back to sentinel zero
// values when this returns an error.
func DecodeJSON(s string, v any) error {
	return json.Unmarshal([]byte(StripFences(s)), v)
}
