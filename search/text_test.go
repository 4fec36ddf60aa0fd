package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsAllQueryWords(t *testing.T) {
	tests := []struct {
		name     string
		document string
		query    string
		want     bool
	}{
		{"all words present", "Research on machine learning and robotics.", "machine learning", true},
		{"case and punctuation", "MACHINE-learning, robotics", "Machine Learning", true},
		{"missing word", "machine vision", "machine learning", false},
		{"stop words ignored", "graph theory", "experts in graph theory", true},
		{"only stop words", "anything", "find experts in the", false},
		{"symbols kept", "fluent in c++ and c#", "c++", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsAllQueryWords(tt.document, tt.query))
		})
	}
}

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"distributed", "systems", "2024"}, queryTerms("Who knows distributed systems (2024)?"))
	assert.Empty(t, queryTerms(""))
}
