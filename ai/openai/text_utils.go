package openai

import (
	"strings"
	"unicode/utf8"
)

const (
	maxEmbeddingInput = 8000
	maxSummaryInput   = 6000
)

// prepareInput collapses whitespace and truncates s to at most limit bytes
// without splitting a rune.
func prepareInput(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
