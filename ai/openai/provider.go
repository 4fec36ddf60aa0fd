// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"log/slog"

	"github.com/poiesic/expertfinder/ai"
)

// Provider bundles the embedder and summarizer for one configuration.
// When both services point at the same host they share a request budget.
type Provider struct {
	embedder   *Embedder
	summarizer *Summarizer
	logger     *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider validates config and builds both services.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedThrottle := newThrottle(config.RequestsPerSecond)
	summaryThrottle := embedThrottle
	if config.SummarizerHost != config.EmbeddingHost {
		summaryThrottle = newThrottle(config.RequestsPerSecond)
	}

	embedder, err := newEmbedder(config, embedThrottle)
	if err != nil {
		return nil, err
	}
	summarizer, err := newSummarizer(config, summaryThrottle)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-provider")
	logger.Debug("provider ready",
		"embedding_host", config.EmbeddingHost,
		"embedding_model", config.EmbeddingModel,
		"summarizer_model", config.SummarizerModel,
		"shared_throttle", embedThrottle == summaryThrottle)

	return &Provider{embedder: embedder, summarizer: summarizer, logger: logger}, nil
}

func (p *Provider) Embedder() ai.Embedder { return p.embedder }

func (p *Provider) Summarizer() ai.Summarizer { return p.summarizer }

// Close is a no-op; the HTTP clients hold no resources.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
