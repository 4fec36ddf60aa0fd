// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Summarizer,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	embeddings, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	mockSummarizer := mock.NewMockSummarizer()
//	mockSummarizer.SummarizeFunc = func(ctx context.Context, text string) (string, error) {
//	    return "", errors.New("model offline")
//	}
//
//	// Check call counts
//	count := mockSummarizer.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: bag-of-words vectors, so shared words mean positive similarity
//   - MockSummarizer: the first line of the input as a single bullet
//   - MockProvider: aggregates the mock embedder and summarizer
//
// Call counters are safe for concurrent use.
package mock
