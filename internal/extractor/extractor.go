package extractor

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSONFound is returned when no candidate substring parses as JSON.
var ErrNoJSONFound = errors.New("no json found")

// ExtractJSON locates a JSON object inside raw model output. Candidates are
// tried from cheapest to most permissive and the first one that parses wins:
//
//  1. first '{' to last '}'
//  2. the same after replacing newlines and carriage returns with spaces
//  3. a ```json fenced block, otherwise any ``` fenced block
//  4. any single line that starts with '{' and ends with '}'
func ExtractJSON(text string) (string, error) {
	if c, ok := braceSpan(text); ok {
		return c, nil
	}

	flat := strings.NewReplacer("\n", " ", "\r", " ").Replace(text)
	if c, ok := braceSpan(flat); ok {
		return c, nil
	}

	if c, ok := fenced(text); ok {
		return c, nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") && json.Valid([]byte(line)) {
			return line, nil
		}
	}

	return "", ErrNoJSONFound
}

func braceSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	candidate := strings.TrimSpace(text[start : end+1])
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}

func fenced(text string) (string, bool) {
	if i := strings.Index(text, "```json"); i != -1 {
		if c, ok := fenceBody(text, i+len("```json")); ok {
			return c, true
		}
	}
	if i := strings.Index(text, "```"); i != -1 {
		if c, ok := fenceBody(text, i+len("```")); ok {
			return c, true
		}
	}
	return "", false
}

func fenceBody(text string, start int) (string, bool) {
	end := strings.Index(text[start:], "```")
	if end == -1 {
		return "", false
	}
	candidate := strings.TrimSpace(text[start : start+end])
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}
