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


package retrieval

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/expertfinder/ai"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/credibility"
	"github.com/poiesic/expertfinder/storage"
)

const (
	// DefaultMaxResults is used when a request asks for fewer than one result.
	DefaultMaxResults = 5

	// DefaultPoolSize bounds concurrent summarization calls.
	DefaultPoolSize = 4
)

// Retriever returns the documents nearest to a query.
type Retriever = storage.Querier

// Request is one expert query.
type Request struct {
	Query      string
	MaxResults int
	// Source restricts retrieval to one collection; empty searches all.
	Source core.Source
}

// Response holds the ranked experts of a request.
type Response struct {
	Query   string        `json:"query"`
	Experts []core.Expert `json:"experts"`
}

// Pipeline answers expert queries: retrieve, enrich, score and rank,
// then format. One request runs at a time.
type Pipeline struct {
	retriever  Retriever
	scorer     *credibility.Scorer
	summarizer ai.Summarizer
	stats      storage.StatsRepository
	queryOpts  []storage.QueryOption
	pool       *ants.Pool
	monitor    Monitor
	clock      clock.Clock
	logger     *slog.Logger

	mu    sync.Mutex
	state atomic.Int32
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithSummarizer enables the enrichment stage.
func WithSummarizer(s ai.Summarizer) Option {
	return func(p *Pipeline) error {
		p.summarizer = s
		return nil
	}
}

// WithPoolSize sets the number of concurrent summarization calls.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithStats attaches percentile placement from stored credibility statistics.
func WithStats(repo storage.StatsRepository) Option {
	return func(p *Pipeline) error {
		p.stats = repo
		return nil
	}
}

// WithQueryOptions adds options to every retrieval call.
func WithQueryOptions(opts ...storage.QueryOption) Option {
	return func(p *Pipeline) error {
		p.queryOpts = append(p.queryOpts, opts...)
		return nil
	}
}

// WithMonitor sets a monitor for state transitions.
func WithMonitor(m Monitor) Option {
	return func(p *Pipeline) error {
		if m == nil {
			m = noopMonitor{}
		}
		p.monitor = m
		return nil
	}
}

// WithClock sets the clock that supplies the current year for placement.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		p.clock = c
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a retrieval pipeline.
func NewPipeline(retriever Retriever, scorer *credibility.Scorer, opts ...Option) (*Pipeline, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if scorer == nil {
		return nil, ErrScorerRequired
	}

	pool, err := ants.NewPool(DefaultPoolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		retriever: retriever,
		scorer:    scorer,
		pool:      pool,
		monitor:   noopMonitor{},
		clock:     clock.WallClock,
		logger:    slog.Default().With("component", "retrieval"),
	}
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// State reports the current state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) transition(to State) {
	from := State(p.state.Swap(int32(to)))
	p.logger.Debug("state transition", "from", from, "to", to)
	p.monitor.StateChanged(from, to)
}

func (p *Pipeline) fail(stage State, err error) error {
	p.transition(StateFailed)
	return fmt.Errorf("%s: %w", stage, err)
}

// Run executes one request. Concurrent callers wait their turn.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != StateIdle {
		p.transition(StateIdle)
	}
	if req.MaxResults < 1 {
		req.MaxResults = DefaultMaxResults
	}
	resp := &Response{Query: req.Query, Experts: []core.Expert{}}

	p.transition(StateRetrieving)
	if strings.TrimSpace(req.Query) == "" {
		p.transition(StateDone)
		return resp, nil
	}
	cands, err := p.retrieve(ctx, req)
	if err != nil {
		return nil, p.fail(StateRetrieving, err)
	}

	p.transition(StateEnriching)
	if err := p.enrich(ctx, cands); err != nil {
		return nil, p.fail(StateEnriching, err)
	}

	p.transition(StateScoring)
	if err := p.scoreAndRank(ctx, cands); err != nil {
		return nil, p.fail(StateScoring, err)
	}

	p.transition(StateFormatting)
	if err := ctx.Err(); err != nil {
		return nil, p.fail(StateFormatting, err)
	}
	resp.Experts = format(cands, req.MaxResults)

	p.transition(StateDone)
	return resp, nil
}

func (p *Pipeline) retrieve(ctx context.Context, req Request) ([]*candidate, error) {
	opts := slices.Clone(p.queryOpts)
	if req.Source != "" {
		opts = append(opts, storage.WithSource(req.Source))
	}
	docs, err := p.retriever.Query(ctx, req.Query, req.MaxResults, opts...)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("retrieved documents", "query", req.Query, "count", len(docs))

	cands := make([]*candidate, len(docs))
	for i, doc := range docs {
		cands[i] = &candidate{doc: doc}
	}
	return cands, nil
}

// enrich summarizes every candidate. A failed summary stays empty.
func (p *Pipeline) enrich(ctx context.Context, cands []*candidate) error {
	if p.summarizer == nil || len(cands) == 0 {
		return ctx.Err()
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs *multierror.Error
	)
	for _, c := range cands {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			summary, err := p.summarizer.Summarize(ctx, c.doc.Content)
			if err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", c.doc.ID, err))
				mu.Unlock()
				return
			}
			c.summary = summary
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", c.doc.ID, err))
			mu.Unlock()
		}
	}
	wg.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		p.logger.Warn("summaries unavailable", "failed", errs.Len(), "err", err)
	}
	return ctx.Err()
}

// scoreAndRank scores candidates and orders them by total score. Equal
// scores keep retrieval order.
func (p *Pipeline) scoreAndRank(ctx context.Context, cands []*candidate) error {
	stats := p.loadStats(ctx)
	year := p.clock.Now().Year()

	for _, c := range cands {
		c.profile = credibility.ProfileFromMetadata(c.doc.Metadata)
		c.result = p.scorer.Score(c.profile)
		if stats != nil && c.profile.YearsOfExperience(year) > 0 {
			placement := stats.Place(c.profile, year)
			c.placement = &placement
		}
	}

	slices.SortStableFunc(cands, func(a, b *candidate) int {
		return cmp.Compare(b.result.Total, a.result.Total)
	})
	return ctx.Err()
}

func (p *Pipeline) loadStats(ctx context.Context) *credibility.Stats {
	if p.stats == nil {
		return nil
	}
	stats, err := p.stats.LoadStats(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.logger.Warn("credibility statistics unavailable", "err", err)
		}
		return nil
	}
	return stats
}

// format projects ranked candidates to experts, keeping the first
// occurrence of each document.
func format(cands []*candidate, limit int) []core.Expert {
	seen := make(map[core.Identifier]struct{}, len(cands))
	experts := make([]core.Expert, 0, min(len(cands), limit))
	for _, c := range cands {
		if _, dup := seen[c.doc.ID]; dup {
			continue
		}
		seen[c.doc.ID] = struct{}{}
		experts = append(experts, c.expert())
		if len(experts) == limit {
			break
		}
	}
	return experts
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
