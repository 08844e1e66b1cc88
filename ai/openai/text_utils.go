package openai

import "strings"

// cleanCompletion drops <think>...</think> blocks emitted by reasoning models
// and trims surrounding whitespace. An unterminated block is left in place.
func cleanCompletion(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "</think>")
		if end < 0 {
			break
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}
