package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/expertfinder/ai"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/storage"
)

// Score weights for combining the two result sets.
const (
	bothBoost     = 1.5
	keywordWeight = 1.2
	verbatimBoost = 0.3
)

// Store is the document store surface used by Hybrid.
type Store interface {
	storage.DocumentStore
	storage.VectorSearcher
}

// Hybrid ranks documents by combining vector similarity and keyword relevance.
type Hybrid struct {
	store    Store
	keywords *KeywordIndex
	embedder ai.Embedder
	retry    storage.RetryPolicy
	monitor  SearchMonitor
	logger   *slog.Logger
}

var _ storage.Querier = (*Hybrid)(nil)

// Option configures a Hybrid retriever.
type Option func(*Hybrid) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hybrid) error {
		if logger == nil {
			logger = slog.Default()
		}
		h.logger = logger
		return nil
	}
}

// WithMonitor installs a monitor that observes every search.
func WithMonitor(m SearchMonitor) Option {
	return func(h *Hybrid) error {
		if m == nil {
			m = &noopMonitor{}
		}
		h.monitor = m
		return nil
	}
}

// WithRetryPolicy sets the retry policy for query embedding.
func WithRetryPolicy(p storage.RetryPolicy) Option {
	return func(h *Hybrid) error {
		if p.MaxAttempts < 1 {
			return storage.ErrInvalidMaxAttempts
		}
		h.retry = p
		return nil
	}
}

// NewHybrid creates a hybrid retriever.
func NewHybrid(store Store, keywords *KeywordIndex, embedder ai.Embedder, opts ...Option) (*Hybrid, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if keywords == nil {
		return nil, ErrKeywordIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	h := &Hybrid{
		store:    store,
		keywords: keywords,
		embedder: embedder,
		retry:    storage.DefaultRetryPolicy(),
		monitor:  &noopMonitor{},
		logger:   slog.Default().With("component", "hybrid-search"),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Query returns up to k documents ranked by combined relevance.
func (h *Hybrid) Query(ctx context.Context, text string, k int, opts ...storage.QueryOption) ([]*core.Document, error) {
	scored, err := h.Search(ctx, text, k, opts...)
	if err != nil {
		return nil, err
	}
	docs := make([]*core.Document, len(scored))
	for i, sd := range scored {
		docs[i] = sd.Document
	}
	return docs, nil
}

// Search returns up to k documents with their combined scores.
func (h *Hybrid) Search(ctx context.Context, text string, k int, opts ...storage.QueryOption) ([]storage.ScoredDocument, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", core.ErrValidation, k)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: query text is empty", core.ErrValidation)
	}
	o := storage.ResolveQueryOptions(opts...)
	h.monitor.Start(text)

	// 1. Semantic candidates
	var embedding []float32
	err := h.retry.Do(ctx, func() error {
		v, err := h.embedder.EmbedText(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: embed query: %w", core.ErrUpstreamUnavailable, err)
		}
		embedding = v
		return nil
	})
	if err != nil {
		h.logger.Error("error generating embedding for query", "query", text, "err", err)
		return nil, err
	}

	matches, err := h.store.FindSimilar(ctx, embedding, k, opts...)
	if err != nil {
		h.logger.Error("error querying for similar documents", "err", err)
		return nil, err
	}

	semantic := make(map[core.Identifier]storage.ScoredDocument, len(matches))
	semanticIDs := make([]core.Identifier, 0, len(matches))
	for _, m := range matches {
		semantic[m.Document.ID] = m
		semanticIDs = append(semanticIDs, m.Document.ID)
	}
	h.monitor.AfterSemanticSearch(semanticIDs)

	// 2. Keyword candidates. Over-fetch since filters apply after the index.
	hits, err := h.keywords.Search(text, k*3, o.Source)
	if err != nil {
		h.logger.Warn("keyword search failed, using semantic results only", "err", err)
		hits = nil
	}
	var maxKeyword float64
	keyword := make(map[core.Identifier]float64, len(hits))
	keywordIDs := make([]core.Identifier, 0, len(hits))
	for _, hit := range hits {
		keyword[hit.ID] = hit.Score
		keywordIDs = append(keywordIDs, hit.ID)
		maxKeyword = max(maxKeyword, hit.Score)
	}
	h.monitor.AfterKeywordSearch(keywordIDs)

	// 3. Combine and score
	results := make([]storage.ScoredDocument, 0, len(semantic)+len(keyword))
	for _, m := range matches {
		doc := m.Document
		score := m.Score
		if _, ok := keyword[doc.ID]; ok {
			score *= bothBoost
			h.monitor.SemanticAndKeywordHit(doc)
		} else {
			h.monitor.SemanticHit(doc)
		}
		if containsAllQueryWords(doc.Content, text) {
			score += verbatimBoost
		}
		results = append(results, storage.ScoredDocument{Document: doc, Score: score})
	}

	for _, id := range keywordIDs {
		if _, ok := semantic[id]; ok {
			continue
		}
		doc, err := h.store.Get(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			h.logger.Debug("keyword hit not in store", "id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !o.Match(doc) {
			continue
		}
		score := float32(keywordWeight * keyword[id] / maxKeyword)
		if containsAllQueryWords(doc.Content, text) {
			score += verbatimBoost
		}
		h.monitor.KeywordHit(doc)
		results = append(results, storage.ScoredDocument{Document: doc, Score: score})
	}

	slices.SortStableFunc(results, func(a, b storage.ScoredDocument) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(results) > k {
		results = results[:k]
	}
	h.monitor.Finish(results)

	return results, nil
}
