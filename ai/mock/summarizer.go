package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/poiesic/expertfinder/ai"
)

var _ ai.Summarizer = (*MockSummarizer)(nil)

// MockSummarizer is a test double for ai.Summarizer.
// It allows custom behavior injection via function fields.
type MockSummarizer struct {
	// SummarizeFunc is called by Summarize if set.
	// If nil, returns the first line of the text as a single bullet.
	SummarizeFunc func(ctx context.Context, text string) (string, error)

	callCount atomic.Int64
}

// NewMockSummarizer creates a mock summarizer with default behavior.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{}
}

// Summarize returns a deterministic one-bullet summary.
func (m *MockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	m.callCount.Add(1)

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	if line == "" {
		return "", nil
	}
	return "- " + line, nil
}

// CallCount returns the number of times Summarize was called.
func (m *MockSummarizer) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom behavior.
func (m *MockSummarizer) Reset() {
	m.callCount.Store(0)
	m.SummarizeFunc = nil
}
