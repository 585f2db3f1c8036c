// Package textproc extracts structured JSON fragments from free-form model output.
package textproc

import (
	"regexp"
	"strings"
)

// JSONFenceMarker is the fenced-code marker agents use to delimit JSON payloads.
const JSONFenceMarker = "```json"

var fencedJSONRe = regexp.MustCompile("(?s)```json(.*?)```")

// ExtractJSONBlock pulls a JSON substring out of raw model output.
//
// It prefers the last ```json fenced block (later output revises earlier
// drafts). Without a fence it falls back to slicing from the first '{' to the
// last '}'. If neither pattern matches it returns "{}". The returned substring
// is not guaranteed to parse; callers must attempt-parse and treat failure as
// a data-quality signal.
func ExtractJSONBlock(text string) string {
	matches := fencedJSONRe.FindAllStringSubmatch(text, -1)
	if len(matches) > 0 {
		return strings.TrimSpace(matches[len(matches)-1][1])
	}

	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first != -1 && last != -1 && last > first {
		return strings.TrimSpace(text[first : last+1])
	}

	return "{}"
}

// SplitTextAndJSON separates a narrative portion from a trailing JSON portion
// using an explicit section marker. If the marker is absent the whole text is
// narrative and the JSON portion defaults to "{}".
func SplitTextAndJSON(text, marker string) (narrative, jsonPart string) {
	if marker == "" {
		marker = JSONFenceMarker
	}
	idx := strings.Index(text, marker)
	if idx == -1 {
		return strings.TrimSpace(text), "{}"
	}
	return strings.TrimSpace(text[:idx]), ExtractJSONBlock(text[idx+len(marker):])
}
