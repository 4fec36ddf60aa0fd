package search

import (
	"strings"
	"unicode"
)

// Words ignored when checking for verbatim matches. Besides common English
// stop words this covers the phrasing people use when asking for experts.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "do": true, "at": true, "this": true, "by": true, "from": true,
	"or": true, "who": true, "find": true, "me": true, "someone": true,
	"expert": true, "experts": true, "specialist": true, "specialists": true,
	"researcher": true, "researchers": true, "people": true, "knows": true,
}

// queryTerms splits text into lowercase words without punctuation or stop words.
func queryTerms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
	terms := words[:0]
	for _, w := range words {
		if !stopWords[w] {
			terms = append(terms, w)
		}
	}
	return terms
}

// containsAllQueryWords reports whether every query term appears in document.
func containsAllQueryWords(document, query string) bool {
	want := queryTerms(query)
	if len(want) == 0 {
		return false
	}

	have := make(map[string]bool)
	for _, w := range queryTerms(document) {
		have[w] = true
	}
	for _, w := range want {
		if !have[w] {
			return false
		}
	}
	return true
}
