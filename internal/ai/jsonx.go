package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Model output is not trusted to be bare JSON: responses arrive wrapped in
// markdown code fences, prefixed with prose, or with trailing commentary.
// Patterns are pre-compiled; greedy matches capture nested structures.
var (
	codeFenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")
	objectRegex    = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex     = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// ExtractJSON extracts a JSON object or array from model output using a
// sequence of fallback strategies:
//
//  1. Direct parse of the trimmed text
//  2. Contents of the first markdown code fence
//  3. The outermost {...} or [...] span in mixed content
//
// Returns the raw JSON bytes or an error if no strategy yields valid JSON.
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty response")
	}

	// Strategy 1: direct parse
	if raw, ok := tryParse(trimmed); ok {
		return raw, nil
	}

	// Strategy 2: code fence contents
	if m := codeFenceRegex.FindStringSubmatch(trimmed); m != nil {
		if raw, ok := tryParse(strings.TrimSpace(m[1])); ok {
			return raw, nil
		}
	}

	// Strategy 3: extract the outermost object or array from mixed content.
	// Objects are preferred; an array is only tried when no object parses.
	if m := objectRegex.FindString(trimmed); m != "" {
		if raw, ok := tryParse(m); ok {
			return raw, nil
		}
	}
	if m := arrayRegex.FindString(trimmed); m != "" {
		if raw, ok := tryParse(m); ok {
			return raw, nil
		}
	}

	return nil, fmt.Errorf("no valid JSON found in response")
}

func tryParse(s string) (json.RawMessage, bool) {
	if s == "" {
		return nil, false
	}
	// Only objects and arrays are acceptable top-level values; a bare
	// string or number is never a valid structured response
	if s[0] != '{' && s[0] != '[' {
		return nil, false
	}
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return json.RawMessage(s), true
}
