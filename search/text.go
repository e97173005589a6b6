package search

import "strings"

// Stop words to filter out of label queries
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"with": true, "on": true, "at": true, "this": true, "by": true, "from": true,
	"image": true, "images": true, "photo": true, "photos": true, "picture": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '_' || r == ','
	})
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// labelMatches reports how many query words appear among the words of label.
func labelMatches(label string, queryWords []string) int {
	labelWords := make(map[string]bool)
	for _, w := range tokenizeAndFilter(label) {
		labelWords[w] = true
		// crude plural folding so "dogs" finds "dog"
		labelWords[strings.TrimSuffix(w, "s")] = true
	}

	hits := 0
	for _, q := range queryWords {
		if labelWords[q] || labelWords[strings.TrimSuffix(q, "s")] {
			hits++
		}
	}
	return hits
}
