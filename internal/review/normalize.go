package review

import "strings"

// StripFence removes a surrounding markdown code fence from model output and
// trims whitespace. Models frequently wrap whole documents in ``` blocks even
// when told not to; only a fence that wraps the entire payload is removed.
func StripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	last := len(lines) - 1
	if strings.TrimSpace(lines[last]) != "```" {
		return trimmed
	}
	// Drop the opening fence line (which may carry a language tag) and the
	// closing fence line.
	return strings.TrimSpace(strings.Join(lines[1:last], "\n"))
}

// TruncateForContext bounds sibling artifact content included in reviewer
// requests so a long early artifact cannot blow the token budget.
func TruncateForContext(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + "\n[... truncated ...]"
}
