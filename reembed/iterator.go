package reembed

import (
	"context"

	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/storage"
)

// DefaultBatchSize is the default number of documents per batch.
const DefaultBatchSize = 100

// DocumentIterator walks the live document set in fixed-size batches.
type DocumentIterator struct {
	store     storage.DocumentStore
	batchSize int
	opts      []storage.QueryOption
}

// NewDocumentIterator creates an iterator. A batch size below 1 selects
// DefaultBatchSize.
func NewDocumentIterator(store storage.DocumentStore, batchSize int, opts ...storage.QueryOption) *DocumentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &DocumentIterator{store: store, batchSize: batchSize, opts: opts}
}

// ForEach calls fn with consecutive batches in ID order. Iteration stops
// at the first error from fn or when ctx is done.
func (it *DocumentIterator) ForEach(ctx context.Context, fn func([]*core.Document) error) error {
	batch := make([]*core.Document, 0, it.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]*core.Document, 0, it.batchSize)
		return ctx.Err()
	}

	err := it.store.All(ctx, func(doc *core.Document) error {
		batch = append(batch, doc)
		if len(batch) < it.batchSize {
			return nil
		}
		return flush()
	}, it.opts...)
	if err != nil {
		return err
	}
	return flush()
}
