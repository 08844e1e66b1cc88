package chunk

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun    = regexp.MustCompile(`\s+`)
	disallowedChars  = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?-]`)
	spaceBeforePunct = regexp.MustCompile(`\s+([.,!?])`)
)

// Preprocess normalizes free text before chunking: whitespace runs collapse
// to single spaces, characters other than letters, digits, whitespace and
// basic punctuation are removed, and spaces before punctuation are dropped.
func Preprocess(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = disallowedChars.ReplaceAllString(text, "")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
