package search

import "strings"

// Stop words ignored when picking keywords from a query
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// Keywords returns the distinct significant words of query in order of first use.
func Keywords(query string) []string {
	words := tokenizeAndFilter(query)
	seen := make(map[string]bool, len(words))
	keywords := words[:0]
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			keywords = append(keywords, w)
		}
	}
	return keywords
}

// keywordMatches counts the keywords that occur anywhere in text, ignoring case.
func keywordMatches(text string, keywords []string) int {
	lower := strings.ToLower(text)
	matches := 0
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			matches++
		}
	}
	return matches
}
