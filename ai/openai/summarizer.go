package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/expertfinder/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Summarizer implements ai.Summarizer using OpenAI-compatible chat APIs.
type Summarizer struct {
	client   llms.Model
	throttle *throttle
	logger   *slog.Logger
}

func newSummarizer(config *ai.Config, th *throttle) (*Summarizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.SummarizerHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.SummarizerModel),
	)
	if err != nil {
		return nil, err
	}

	return &Summarizer{
		client:   client,
		throttle: th,
		logger:   slog.Default().With("component", "openai-summarizer", "model", config.SummarizerModel),
	}, nil
}

// NewSummarizer creates a standalone summarizer with its own throttle.
func NewSummarizer(config *ai.Config) (ai.Summarizer, error) {
	return newSummarizer(config, newThrottle(config.RequestsPerSecond))
}

// Summarize condenses profile text into a bullet list of expertise areas.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	text = prepareInput(text, maxSummaryInput)
	if text == "" {
		return "", nil
	}

	if err := s.throttle.wait(ctx); err != nil {
		return "", err
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(summarySystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildSummaryPrompt(text))},
		},
	}

	s.logger.Debug("requesting summary", "length", len(text))
	response, err := s.client.GenerateContent(ctx, messages, llms.WithTemperature(0.0))
	if err != nil {
		s.logger.Error("failed to generate summary", "err", err)
		return "", err
	}
	if len(response.Choices) == 0 {
		s.logger.Warn("summarizer returned no choices")
		return "", nil
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}
