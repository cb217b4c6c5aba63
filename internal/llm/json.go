package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// StripCodeFences removes Markdown code fences around a completion,
// returning the inner content of the first fenced block, or the trimmed
// input when no fence is present.
func StripCodeFences(text string) string {
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ParseJSONLenient decodes JSON that a completion provider produced,
// tolerating code fences and surrounding prose. On any parse failure the
// caller-supplied fallback is returned unchanged: completions that were
// asked for strict JSON frequently are not.
func ParseJSONLenient[T any](text string, fallback T) T {
	cleaned := StripCodeFences(text)

	var out T
	if err := json.Unmarshal([]byte(cleaned), &out); err == nil {
		return out
	}

	// Second chance: find the outermost JSON value embedded in prose.
	if candidate := extractJSONValue(cleaned); candidate != "" {
		if err := json.Unmarshal([]byte(candidate), &out); err == nil {
			return out
		}
	}

	return fallback
}

// extractJSONValue pulls the first balanced {...} or [...] span out of
// surrounding text. Returns "" when neither delimiter is found.
func extractJSONValue(text string) string {
	for _, bounds := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(text, bounds[0])
		end := strings.LastIndexByte(text, bounds[1])
		if start >= 0 && end > start {
			return text[start : end+1]
		}
	}
	return ""
}
