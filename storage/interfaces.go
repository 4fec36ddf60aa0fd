package storage

import (
	"context"

	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/credibility"
)

// Querier answers nearest-neighbour queries over stored documents.
type Querier interface {
	// Query embeds text and returns up to k documents, nearest first.
	// Returns an error wrapping core.ErrValidation when k < 1.
	Query(ctx context.Context, text string, k int, opts ...QueryOption) ([]*core.Document, error)
}

// DocumentStore is a persistent, queryable and versioned collection of
// documents. Implementations must be thread-safe.
type DocumentStore interface {
	Querier

	// Add upserts documents keyed by ID. Adding the same document twice
	// leaves a single live copy. All documents are written atomically.
	Add(ctx context.Context, docs ...*core.Document) error

	// Get retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	Get(ctx context.Context, id core.Identifier) (*core.Document, error)

	// Delete removes documents by ID. Missing IDs are ignored.
	Delete(ctx context.Context, ids ...core.Identifier) error

	// Count returns the number of live documents matching the options.
	Count(ctx context.Context, opts ...QueryOption) (int, error)

	// All calls fn for every live document matching the options, in ID order.
	// Iteration stops at the first error returned by fn.
	All(ctx context.Context, fn func(*core.Document) error, opts ...QueryOption) error

	// Checkpoint snapshots the complete live set under a new version.
	Checkpoint(ctx context.Context, message string) (*core.Version, error)

	// History returns up to limit versions, most recent first.
	// A limit below 1 selects DefaultHistoryLimit.
	History(ctx context.Context, limit int) ([]*core.Version, error)

	// Restore replaces the live set with the snapshot taken at commitID.
	// Returns ErrNotFound for an unknown commit and core.ErrSnapshotCorrupt
	// when the snapshot does not match its recorded digest. On error the
	// live set is unchanged.
	Restore(ctx context.Context, commitID string) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// StatsRepository persists aggregate credibility statistics.
type StatsRepository interface {
	// LoadStats returns the stored statistics.
	// Returns ErrNotFound if none have been saved.
	LoadStats(ctx context.Context) (*credibility.Stats, error)

	// SaveStats replaces the stored statistics.
	SaveStats(ctx context.Context, stats *credibility.Stats) error
}

// DefaultHistoryLimit is the number of versions History returns when no
// limit is given.
const DefaultHistoryLimit = 10

// ScoredDocument pairs a document with its similarity to a query vector.
type ScoredDocument struct {
	Document *core.Document
	Score    float32
}

// VectorSearcher provides nearest-neighbour search by raw vector.
type VectorSearcher interface {
	// FindSimilar returns up to limit documents ordered by descending
	// similarity to vector. Ties are broken by ascending ID.
	FindSimilar(ctx context.Context, vector []float32, limit int, opts ...QueryOption) ([]ScoredDocument, error)
}
