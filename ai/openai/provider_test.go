package openai

import (
	"testing"

	"github.com/poiesic/expertfinder/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderThrottleSharing(t *testing.T) {
	tests := []struct {
		name       string
		opts       []ai.ConfigOption
		wantShared bool
	}{
		{
			name:       "same host shares budget",
			opts:       []ai.ConfigOption{ai.WithRequestsPerSecond(5)},
			wantShared: true,
		},
		{
			name: "separate hosts",
			opts: []ai.ConfigOption{
				ai.WithRequestsPerSecond(5),
				ai.WithSummarizerHost("http://summaries.local:8080"),
			},
			wantShared: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(ai.NewConfig(tt.opts...))
			require.NoError(t, err)
			defer p.Close()

			provider := p.(*Provider)
			require.NotNil(t, provider.embedder.throttle)
			assert.Equal(t, tt.wantShared, provider.embedder.throttle == provider.summarizer.throttle)
		})
	}
}

func TestNewProviderRejectsInvalidConfig(t *testing.T) {
	_, err := NewProvider(ai.NewConfig(ai.WithEmbeddingModel("")))
	assert.Error(t, err)
}
