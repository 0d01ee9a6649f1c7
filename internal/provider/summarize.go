package provider

import (
	"encoding/json"
	"strings"

	"github.com/kilnworks/autodev/internal/common/stringutil"
)

// MaxSummaryLen bounds every summary this package produces (spec §4.3,
// invariant 9: "JSON summarizer is total; output length <= 200").
const MaxSummaryLen = 200

// SummarizeJSONBlob turns a JSON blob emitted in place of prose into a
// compact one-line summary, per spec §4.3. It is a total function: any
// input, however malformed, yields some string of length <= MaxSummaryLen.
func SummarizeJSONBlob(raw string) string {
	var generic map[string]any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return truncate(raw, MaxSummaryLen)
	}

	if content, ok := generic["content"].([]any); ok {
		return truncate(summarizeContentArray(content), MaxSummaryLen)
	}

	if name, ok := generic["name"].(string); ok {
		if _, hasInput := generic["input"]; hasInput || generic["type"] == "tool_use" {
			return truncate(summarizeToolUse(name, generic["input"]), MaxSummaryLen)
		}
	}

	return truncate(summarizeFallback(generic), MaxSummaryLen)
}

func summarizeContentArray(blocks []any) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok {
			continue
		}
		switch block["type"] {
		case "tool_use":
			name, _ := block["name"].(string)
			parts = append(parts, summarizeToolUse(name, block["input"]))
		case "text":
			text, _ := block["text"].(string)
			parts = append(parts, truncate(text, 60))
		}
	}
	if len(parts) == 0 {
		return "(empty)"
	}
	return strings.Join(parts, "; ")
}

func summarizeToolUse(name string, input any) string {
	if name == "" {
		name = "tool"
	}
	param := salientParameter(input)
	if param == "" {
		return name
	}
	return name + " → " + param
}

// salientParameter picks the most informative scalar value out of a
// tool-use input map, preferring the keys agents most commonly act on.
func salientParameter(input any) string {
	m, ok := input.(map[string]any)
	if !ok || len(m) == 0 {
		return ""
	}
	for _, key := range []string{"command", "file_path", "path", "pattern", "query", "url", "description"} {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return truncate(s, 80)
			}
		}
	}
	for _, v := range m {
		if s, ok := v.(string); ok && s != "" {
			return truncate(s, 80)
		}
	}
	return ""
}

func summarizeFallback(generic map[string]any) string {
	var parts []string
	for _, key := range []string{"type", "model", "stop_reason"} {
		if v, ok := generic[key].(string); ok && v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return "(json)"
	}
	return strings.Join(parts, " · ")
}

// truncate is a thin wrapper over stringutil.TruncateStringWithEllipsis
// so every summary this package produces carries a visible ellipsis
// marker rather than a silent hard cut.
func truncate(s string, n int) string {
	return stringutil.TruncateStringWithEllipsis(s, n)
}

// Truncate is the general-purpose byte-length truncation spec §4.3
// applies to every broadcast payload field (text<=800, system<=500,
// tool_use.input<=200, tool_result.output<=500).
func Truncate(s string, n int) string {
	return truncate(s, n)
}

// LooksLikeJSON is a cheap heuristic used by adapters to decide whether a
// piece of assistant text should be routed through SummarizeJSONBlob
// instead of emitted as a plain text event.
func LooksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}
