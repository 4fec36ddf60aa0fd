package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/poiesic/expertfinder/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Retrieval.MaxResults)
	assert.Equal(t, 3, cfg.RetryPolicy().MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.RetryPolicy().BaseDelay)
	assert.Equal(t, "http://localhost:11434/v1", cfg.AIConfig().EmbeddingHost)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expertfinder.toml")
	content := `
[storage]
path = "/var/lib/experts"

[ai]
embedding_host = "http://gpu-box:8080"
embedding_model = "nomic-embed-text"
requests_per_second = 2.5

[retrieval]
max_results = 8
summarize = true

[credibility]
citation_weight = 0.75
institutions = ["MIT", "ETH Zurich"]

[retry]
max_attempts = 5
base_delay = "1.5s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/experts", cfg.Storage.Path)
	assert.Equal(t, 8, cfg.Retrieval.MaxResults)
	assert.True(t, cfg.Retrieval.Summarize)
	assert.Equal(t, 4, cfg.Retrieval.PoolSize, "unset keys keep defaults")

	aiCfg := cfg.AIConfig()
	require.NoError(t, aiCfg.Validate())
	assert.Equal(t, "http://gpu-box:8080/v1", aiCfg.EmbeddingHost)
	assert.Equal(t, "nomic-embed-text", aiCfg.EmbeddingModel)
	assert.Equal(t, 2.5, aiCfg.RequestsPerSecond)

	w := cfg.Weights()
	assert.Equal(t, 0.75, w.Citations)
	assert.Equal(t, 1.0, w.Experience)
	assert.Equal(t, []string{"MIT", "ETH Zurich"}, w.Institutions)

	assert.Equal(t, 1500*time.Millisecond, cfg.RetryPolicy().BaseDelay)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[storage\npath = 1"},
		{"unknown key", "[retrieval]\nmax_reslts = 3"},
		{"bad duration", "[retry]\nbase_delay = \"soon\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.content))
			assert.Error(t, err)
		})
	}

	_, err = Parse(strings.NewReader("[retrieval]\nmax_reslts = 3"))
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = ""
	cfg.AI.EmbeddingModel = ""
	cfg.Retrieval.MaxResults = 0
	cfg.Retrieval.MinSimilarity = 2
	cfg.Credibility = CredibilityConfig{CitationWeight: -1}
	cfg.Ingestion.BatchSize = 0
	cfg.Retry.MaxAttempts = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 8)
	assert.Contains(t, err.Error(), "storage.path")
	assert.Contains(t, err.Error(), "EmbeddingModel")
	assert.Contains(t, err.Error(), "credibility.citation_weight")
}

func TestValidateInMemoryNeedsNoPath(t *testing.T) {
	cfg := Default()
	cfg.Storage = StorageConfig{InMemory: true}
	assert.NoError(t, cfg.Validate())
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Retry.BaseDelay = Duration(750 * time.Millisecond)
	cfg.Credibility.Institutions = []string{"CMU"}

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))
	assert.Contains(t, buf.String(), "750ms")

	parsed, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)
}
