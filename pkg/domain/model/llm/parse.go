package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParseMethod tells which step of the fallback chain produced a value
type ParseMethod string

const (
	ParseDirect ParseMethod = "direct"
	ParseFenced ParseMethod = "fenced"
	ParseBraces ParseMethod = "braces"
	ParseRaw    ParseMethod = "raw"
)

var fencedBlockRegex = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\r?\\n?(.*?)```")

// ParseContent coerces model text into a JSON value. It tries, in order:
// the whole text as JSON, the first fenced code block, and the span from the
// first opening brace/bracket to the last matching closing one. When all of
// them fail it returns the trimmed text itself with ParseRaw.
func ParseContent(text string) (any, ParseMethod) {
	trimmed := strings.TrimSpace(text)

	if v, ok := decodeJSON(trimmed); ok {
		return v, ParseDirect
	}

	for _, m := range fencedBlockRegex.FindAllStringSubmatch(trimmed, -1) {
		if v, ok := decodeJSON(strings.TrimSpace(m[1])); ok {
			return v, ParseFenced
		}
	}

	if v, ok := decodeJSON(braceSpan(trimmed, '{', '}')); ok {
		return v, ParseBraces
	}
	if v, ok := decodeJSON(braceSpan(trimmed, '[', ']')); ok {
		return v, ParseBraces
	}

	return trimmed, ParseRaw
}

func decodeJSON(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	// Only objects and arrays count as structured output
	if s[0] != '{' && s[0] != '[' {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// braceSpan returns the greedy span from the first open to the last close rune
func braceSpan(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
