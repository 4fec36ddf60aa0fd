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


package reembed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"github.com/poiesic/expertfinder/ai"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/storage"
)

// Config holds configuration for a reembedding run.
type Config struct {
	// BatchSize is the number of documents embedded per request.
	BatchSize int

	// ReportInterval is how often to report progress, in documents.
	ReportInterval int

	// MaxRetries is the maximum number of attempts per batch.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration

	// Source limits the run to one collection; empty means all.
	Source core.Source
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive", core.ErrValidation)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: %w", core.ErrValidation, storage.ErrInvalidMaxAttempts)
	}
	if c.Source != "" && !c.Source.Valid() {
		return fmt.Errorf("%w: %w: %q", core.ErrValidation, core.ErrInvalidSource, c.Source)
	}
	return nil
}

// Summary reports the outcome of a run.
type Summary struct {
	Documents int           `json:"documents"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Reembedder replaces the embedding of every live document, typically
// after the embedding model changed.
type Reembedder struct {
	store     storage.DocumentStore
	config    *Config
	progress  io.Writer
	clock     clock.Clock
	logger    *slog.Logger
	queryOpts []storage.QueryOption
	processor *BatchProcessor
	iterator  *DocumentIterator
}

// Option configures a Reembedder.
type Option func(*Reembedder)

// WithClock sets the clock used for progress rates.
func WithClock(c clock.Clock) Option {
	return func(r *Reembedder) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReembedder creates a reembedder. progress receives human-readable
// progress lines, typically os.Stderr.
func NewReembedder(store storage.DocumentStore, embedder ai.Embedder, config *Config, progress io.Writer, opts ...Option) (*Reembedder, error) {
	if store == nil {
		return nil, errors.New("document store required")
	}
	if embedder == nil {
		return nil, errors.New("embedder required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}

	var queryOpts []storage.QueryOption
	if config.Source != "" {
		queryOpts = append(queryOpts, storage.WithSource(config.Source))
	}

	r := &Reembedder{
		store:     store,
		config:    config,
		progress:  progress,
		clock:     clock.WallClock,
		logger:    slog.Default().With("component", "reembed"),
		queryOpts: queryOpts,
		processor: NewBatchProcessor(store, embedder, storage.RetryPolicy{MaxAttempts: config.MaxRetries, BaseDelay: config.RetryDelay}),
		iterator:  NewDocumentIterator(store, config.BatchSize, queryOpts...),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run re-embeds all matching documents. It stops at the first batch that
// cannot be embedded; batches already written keep their new vectors.
func (r *Reembedder) Run(ctx context.Context) (*Summary, error) {
	total, err := r.store.Count(ctx, r.queryOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No documents found (0 documents)\n")
		return &Summary{}, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d documents (batch size: %d)\n", total, r.config.BatchSize)
	r.logger.Info("reembedding started", "documents", total, "batch_size", r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, r.clock, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(docs []*core.Document) error {
		if err := r.processor.Process(ctx, docs); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		tracker.Add(len(docs))
		return nil
	})
	if err != nil {
		r.logger.Error("reembedding stopped", "processed", tracker.Current(), "err", err)
		return &Summary{Documents: tracker.Current(), Elapsed: tracker.Elapsed()}, err
	}
	tracker.Finish()

	summary := &Summary{Documents: tracker.Current(), Elapsed: tracker.Elapsed()}
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d documents in %v\n",
		summary.Documents, summary.Elapsed.Round(time.Second))
	r.logger.Info("reembedding complete", "documents", summary.Documents, "elapsed", summary.Elapsed)
	return summary, nil
}
