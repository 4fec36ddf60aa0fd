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


// Package config loads the application configuration from TOML.
//
// Load starts from Default and overlays the file, so a file only needs the
// keys it changes. Unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/expertfinder/ai"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/credibility"
	"github.com/poiesic/expertfinder/storage"
)

// Config is the complete application configuration.
type Config struct {
	Storage     StorageConfig     `toml:"storage"`
	AI          AIConfig          `toml:"ai"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Credibility CredibilityConfig `toml:"credibility"`
	Ingestion   IngestionConfig   `toml:"ingestion"`
	Retry       RetryConfig       `toml:"retry"`
}

// StorageConfig locates the document database.
type StorageConfig struct {
	Path     string `toml:"path"`
	InMemory bool   `toml:"in_memory"`
}

// AIConfig configures the embedding and summarization services.
type AIConfig struct {
	EmbeddingHost     string  `toml:"embedding_host"`
	EmbeddingModel    string  `toml:"embedding_model"`
	SummarizerHost    string  `toml:"summarizer_host"`
	SummarizerModel   string  `toml:"summarizer_model"`
	Token             string  `toml:"token"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// RetrievalConfig configures the query pipeline.
type RetrievalConfig struct {
	MaxResults    int     `toml:"max_results"`
	Summarize     bool    `toml:"summarize"`
	PoolSize      int     `toml:"pool_size"`
	MinSimilarity float64 `toml:"min_similarity"`
}

// CredibilityConfig weights the credibility metrics. A zero weight
// disables a metric.
type CredibilityConfig struct {
	ExperienceWeight  float64  `toml:"experience_weight"`
	EducationWeight   float64  `toml:"education_weight"`
	CitationWeight    float64  `toml:"citation_weight"`
	AffiliationWeight float64  `toml:"affiliation_weight"`
	Institutions      []string `toml:"institutions"`
}

// IngestionConfig configures embedding during ingestion.
type IngestionConfig struct {
	BatchSize int `toml:"batch_size"`
	PoolSize  int `toml:"pool_size"`
}

// RetryConfig bounds retries of upstream calls.
type RetryConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	BaseDelay   Duration `toml:"base_delay"`
}

// Duration is a time.Duration written as a string such as "250ms".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	weights := credibility.DefaultWeights()
	retry := storage.DefaultRetryPolicy()
	return &Config{
		Storage: StorageConfig{Path: "expertfinder.db"},
		AI: AIConfig{
			EmbeddingHost:   aiDefaults.EmbeddingHost,
			EmbeddingModel:  aiDefaults.EmbeddingModel,
			SummarizerHost:  aiDefaults.SummarizerHost,
			SummarizerModel: aiDefaults.SummarizerModel,
			Token:           aiDefaults.Token,
		},
		Retrieval: RetrievalConfig{
			MaxResults: 5,
			PoolSize:   4,
		},
		Credibility: CredibilityConfig{
			ExperienceWeight:  weights.Experience,
			EducationWeight:   weights.Education,
			CitationWeight:    weights.Citations,
			AffiliationWeight: weights.Affiliation,
		},
		Ingestion: IngestionConfig{
			BatchSize: 32,
			PoolSize:  2,
		},
		Retry: RetryConfig{
			MaxAttempts: retry.MaxAttempts,
			BaseDelay:   Duration(retry.BaseDelay),
		},
	}
}

// Load reads a TOML file over the defaults. An empty path returns Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.decode(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse reads TOML from r over the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(r); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%w: %s", core.ErrValidation, strict.String())
		}
		return err
	}
	return nil
}

// Encode writes the configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate reports every invalid setting at once. The returned error
// wraps core.ErrValidation.
func (c *Config) Validate() error {
	var errs *multierror.Error
	add := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf("%w: "+format, append([]any{core.ErrValidation}, args...)...))
	}

	if !c.Storage.InMemory && c.Storage.Path == "" {
		add("storage.path is required unless storage.in_memory is set")
	}

	if err := c.AIConfig().Validate(); err != nil {
		add("%w", err)
	}

	if c.Retrieval.MaxResults < 1 {
		add("retrieval.max_results must be at least 1, got %d", c.Retrieval.MaxResults)
	}
	if c.Retrieval.PoolSize < 1 {
		add("retrieval.pool_size must be at least 1, got %d", c.Retrieval.PoolSize)
	}
	if c.Retrieval.MinSimilarity < -1 || c.Retrieval.MinSimilarity > 1 {
		add("retrieval.min_similarity must be within [-1, 1], got %v", c.Retrieval.MinSimilarity)
	}

	w := c.Credibility
	for _, weight := range []struct {
		name  string
		value float64
	}{
		{"experience_weight", w.ExperienceWeight},
		{"education_weight", w.EducationWeight},
		{"citation_weight", w.CitationWeight},
		{"affiliation_weight", w.AffiliationWeight},
	} {
		if weight.value < 0 {
			add("credibility.%s cannot be negative, got %v", weight.name, weight.value)
		}
	}
	if w.ExperienceWeight <= 0 && w.EducationWeight <= 0 && w.CitationWeight <= 0 && w.AffiliationWeight <= 0 {
		add("at least one credibility weight must be positive")
	}

	if c.Ingestion.BatchSize < 1 {
		add("ingestion.batch_size must be at least 1, got %d", c.Ingestion.BatchSize)
	}
	if c.Ingestion.PoolSize < 1 {
		add("ingestion.pool_size must be at least 1, got %d", c.Ingestion.PoolSize)
	}

	if c.Retry.MaxAttempts < 1 {
		add("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay < 0 {
		add("retry.base_delay cannot be negative")
	}

	return errs.ErrorOrNil()
}

// AIConfig converts the [ai] section.
func (c *Config) AIConfig() *ai.Config {
	a := c.AI
	return ai.NewConfig(
		ai.WithEmbeddingHost(a.EmbeddingHost),
		ai.WithSummarizerHost(a.SummarizerHost),
		ai.WithEmbeddingModel(a.EmbeddingModel),
		ai.WithSummarizerModel(a.SummarizerModel),
		ai.WithToken(a.Token),
		ai.WithRequestsPerSecond(a.RequestsPerSecond),
	)
}

// Weights converts the [credibility] section.
func (c *Config) Weights() credibility.Weights {
	w := c.Credibility
	return credibility.Weights{
		Experience:   w.ExperienceWeight,
		Education:    w.EducationWeight,
		Citations:    w.CitationWeight,
		Affiliation:  w.AffiliationWeight,
		Institutions: w.Institutions,
	}
}

// RetryPolicy converts the [retry] section.
func (c *Config) RetryPolicy() storage.RetryPolicy {
	return storage.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   time.Duration(c.Retry.BaseDelay),
	}
}
