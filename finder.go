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


// Package expertfinder wires the document store, keyword index, AI
// services, ingestion and retrieval pipelines into a single Finder.
package expertfinder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/juju/clock"
	"github.com/poiesic/expertfinder/ai"
	"github.com/poiesic/expertfinder/ai/openai"
	"github.com/poiesic/expertfinder/config"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/credibility"
	"github.com/poiesic/expertfinder/ingestion"
	"github.com/poiesic/expertfinder/reembed"
	"github.com/poiesic/expertfinder/retrieval"
	"github.com/poiesic/expertfinder/search"
	"github.com/poiesic/expertfinder/storage"
	"github.com/poiesic/expertfinder/storage/badger"
)

// KeywordIndexSuffix is appended to the storage path to locate the
// keyword index directory.
const KeywordIndexSuffix = ".keywords"

// Finder is the application facade.
type Finder struct {
	cfg      *config.Config
	backend  *badger.Backend
	store    *badger.Store
	stats    *badger.StatsRepository
	keywords *search.KeywordIndex
	provider ai.AIProvider
	scorer   *credibility.Scorer
	clock    clock.Clock
	logger   *slog.Logger

	mu        sync.Mutex
	pipelines map[SearchOptions]*retrieval.Pipeline
	closed    bool
}

// Option configures a Finder.
type Option func(*finderOptions)

type finderOptions struct {
	provider ai.AIProvider
	clock    clock.Clock
	logger   *slog.Logger
}

// WithProvider supplies the AI provider instead of building one from the
// [ai] configuration.
func WithProvider(p ai.AIProvider) Option {
	return func(o *finderOptions) { o.provider = p }
}

// WithClock sets the clock used by every component.
func WithClock(c clock.Clock) Option {
	return func(o *finderOptions) { o.clock = c }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *finderOptions) { o.logger = logger }
}

// Open validates cfg and opens every component. The keyword index is
// rebuilt when it is out of step with the store.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Finder, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &finderOptions{clock: clock.WallClock, logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	f := &Finder{
		cfg:       cfg,
		clock:     options.clock,
		logger:    options.logger.With("component", "finder"),
		pipelines: make(map[SearchOptions]*retrieval.Pipeline),
	}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(cfg.AIConfig())
		if err != nil {
			return nil, err
		}
	}
	f.provider = provider

	var err error
	f.backend, err = badger.OpenBackend(cfg.Storage.Path, cfg.Storage.InMemory)
	if err != nil {
		f.provider.Close()
		return nil, err
	}

	f.store, err = badger.NewStore(f.backend, provider.Embedder(),
		badger.WithClock(f.clock),
		badger.WithRetryPolicy(cfg.RetryPolicy()),
		badger.WithLogger(options.logger.With("component", "document-store")))
	if err != nil {
		f.Close()
		return nil, err
	}
	f.stats = badger.NewStatsRepository(f.backend)

	indexPath := ""
	if !cfg.Storage.InMemory {
		indexPath = cfg.Storage.Path + KeywordIndexSuffix
	}
	f.keywords, err = search.OpenKeywordIndex(indexPath)
	if err != nil {
		f.Close()
		return nil, err
	}

	f.scorer, err = credibility.NewScorer(
		credibility.DefaultMetrics(cfg.Weights(), credibility.WithClock(f.clock)),
		credibility.WithLogger(options.logger.With("component", "credibility")))
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := f.syncKeywords(ctx); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (f *Finder) syncKeywords(ctx context.Context) error {
	indexed, err := f.keywords.DocCount()
	if err != nil {
		return err
	}
	stored, err := f.store.Count(ctx)
	if err != nil {
		return err
	}
	if int(indexed) == stored {
		return nil
	}
	f.logger.Info("rebuilding keyword index", "indexed", indexed, "stored", stored)
	return f.keywords.Rebuild(ctx, f.store)
}

// Store exposes the document store.
func (f *Finder) Store() storage.DocumentStore {
	return f.store
}

// Ingest normalizes and stores raw records of one source, then indexes
// the stored documents for keyword search.
func (f *Finder) Ingest(ctx context.Context, source core.Source, raws []json.RawMessage, opts *ingestion.IngestOptions) (*ingestion.Result, error) {
	pipeline, err := ingestion.NewPipeline(f.store, f.provider.Embedder(),
		ingestion.WithBatchSize(f.cfg.Ingestion.BatchSize),
		ingestion.WithPoolSize(f.cfg.Ingestion.PoolSize),
		ingestion.WithRetryPolicy(f.cfg.RetryPolicy()),
		ingestion.WithClock(f.clock),
		ingestion.WithLogger(f.logger.With("component", "ingestion")))
	if err != nil {
		return nil, err
	}
	defer pipeline.Release()

	res, ingestErr := pipeline.Ingest(ctx, source, raws, opts)
	if res == nil {
		return nil, ingestErr
	}

	docs := make([]*core.Document, 0, len(res.IDs))
	for _, id := range res.IDs {
		doc, err := f.store.Get(ctx, id)
		if err != nil {
			return res, fmt.Errorf("index %s: %w", id, err)
		}
		docs = append(docs, doc)
	}
	if err := f.keywords.Index(docs...); err != nil {
		return res, err
	}
	return res, ingestErr
}

// SearchOptions selects the retrieval strategy.
type SearchOptions struct {
	// Summarize enables the enrichment stage.
	Summarize bool
	// Hybrid combines keyword and vector retrieval.
	Hybrid bool
}

// Search answers an expert query. Summarization is also enabled by
// retrieval.summarize in the configuration.
func (f *Finder) Search(ctx context.Context, req retrieval.Request, opts SearchOptions) (*retrieval.Response, error) {
	opts.Summarize = opts.Summarize || f.cfg.Retrieval.Summarize
	pipeline, err := f.pipeline(opts)
	if err != nil {
		return nil, err
	}
	if req.MaxResults < 1 {
		req.MaxResults = f.cfg.Retrieval.MaxResults
	}
	return pipeline.Run(ctx, req)
}

func (f *Finder) pipeline(opts SearchOptions) (*retrieval.Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, storage.ErrStorageClosed
	}
	if p, ok := f.pipelines[opts]; ok {
		return p, nil
	}

	var retriever retrieval.Retriever = f.store
	if opts.Hybrid {
		hybrid, err := search.NewHybrid(f.store, f.keywords, f.provider.Embedder(),
			search.WithRetryPolicy(f.cfg.RetryPolicy()),
			search.WithLogger(f.logger.With("component", "hybrid-search")))
		if err != nil {
			return nil, err
		}
		retriever = hybrid
	}

	popts := []retrieval.Option{
		retrieval.WithStats(f.stats),
		retrieval.WithPoolSize(f.cfg.Retrieval.PoolSize),
		retrieval.WithClock(f.clock),
		retrieval.WithLogger(f.logger.With("component", "retrieval")),
	}
	if opts.Summarize {
		popts = append(popts, retrieval.WithSummarizer(f.provider.Summarizer()))
	}
	if floor := f.cfg.Retrieval.MinSimilarity; floor > 0 {
		popts = append(popts, retrieval.WithQueryOptions(storage.WithMinSimilarity(float32(floor))))
	}

	p, err := retrieval.NewPipeline(retriever, f.scorer, popts...)
	if err != nil {
		return nil, err
	}
	f.pipelines[opts] = p
	return p, nil
}

// Checkpoint snapshots the live document set.
func (f *Finder) Checkpoint(ctx context.Context, message string) (*core.Version, error) {
	return f.store.Checkpoint(ctx, message)
}

// History lists recent versions, newest first.
func (f *Finder) History(ctx context.Context, limit int) ([]*core.Version, error) {
	return f.store.History(ctx, limit)
}

// Restore rolls the live set back to a version and rebuilds the keyword
// index to match.
func (f *Finder) Restore(ctx context.Context, commitID string) error {
	if err := f.store.Restore(ctx, commitID); err != nil {
		return err
	}
	return f.keywords.Rebuild(ctx, f.store)
}

// Overview summarizes the store contents.
type Overview struct {
	Total       int                 `json:"total"`
	Collections map[core.Source]int `json:"collections"`
	Credibility *credibility.Stats  `json:"credibility,omitempty"`
}

// Stats counts documents per source and loads stored credibility
// statistics when present.
func (f *Finder) Stats(ctx context.Context) (*Overview, error) {
	o := &Overview{Collections: make(map[core.Source]int, len(core.Sources))}
	for _, src := range core.Sources {
		n, err := f.store.Count(ctx, storage.WithSource(src))
		if err != nil {
			return nil, err
		}
		o.Collections[src] = n
		o.Total += n
	}

	stats, err := f.stats.LoadStats(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		o.Credibility = stats
	}
	return o, nil
}

// UpdateCredibilityStats recomputes the experience and education
// distributions over all professional profiles. Unless force is set, the
// stored statistics are kept when the profile count has not changed.
// The boolean reports whether new statistics were written.
func (f *Finder) UpdateCredibilityStats(ctx context.Context, force bool) (*credibility.Stats, bool, error) {
	bySource := storage.WithSource(core.SourceLinkedIn)
	count, err := f.store.Count(ctx, bySource)
	if err != nil {
		return nil, false, err
	}

	existing, err := f.stats.LoadStats(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}
	if !force && existing != nil && existing.TotalProfiles == count {
		f.logger.Debug("credibility statistics current", "profiles", count)
		return existing, false, nil
	}

	profiles := make([]credibility.Profile, 0, count)
	err = f.store.All(ctx, func(doc *core.Document) error {
		profiles = append(profiles, credibility.ProfileFromMetadata(doc.Metadata))
		return nil
	}, bySource)
	if err != nil {
		return nil, false, err
	}

	now := f.clock.Now()
	stats := credibility.BuildStats(profiles, now.Year(), now.UTC())
	if err := f.stats.SaveStats(ctx, stats); err != nil {
		return nil, false, err
	}
	f.logger.Info("credibility statistics updated", "profiles", stats.TotalProfiles, "max_years", stats.MaxYears)
	return stats, true, nil
}

// Reembed replaces every stored embedding using the current embedder.
func (f *Finder) Reembed(ctx context.Context, cfg *reembed.Config, progress io.Writer) (*reembed.Summary, error) {
	r, err := reembed.NewReembedder(f.store, f.provider.Embedder(), cfg, progress,
		reembed.WithClock(f.clock),
		reembed.WithLogger(f.logger.With("component", "reembed")))
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// Close releases every component. It returns the first error encountered.
// Later calls are no-ops, and searches after Close fail with
// storage.ErrStorageClosed.
func (f *Finder) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	for _, p := range f.pipelines {
		p.Release()
	}
	clear(f.pipelines)
	f.mu.Unlock()

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if f.keywords != nil {
		if err := f.keywords.Close(); err != nil {
			f.logger.Error("error closing keyword index", "err", err)
			keep(err)
		}
	}
	if f.store != nil {
		if err := f.store.Close(); err != nil {
			f.logger.Error("error closing document store", "err", err)
			keep(err)
		}
	}
	if f.backend != nil {
		if err := f.backend.Close(); err != nil {
			f.logger.Error("error closing backend storage", "err", err)
			keep(err)
		}
	}
	if f.provider != nil {
		if err := f.provider.Close(); err != nil {
			f.logger.Error("error closing AI provider", "err", err)
			keep(err)
		}
	}
	return first
}
