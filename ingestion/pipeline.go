package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/expertfinder/ai"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/storage"
)

// DefaultBatchSize is the number of documents embedded per request.
const DefaultBatchSize = 32

// Pipeline normalizes harvested records, embeds new and changed ones and
// writes them to the document store. Embedding batches run concurrently
// on a worker pool.
type Pipeline struct {
	store         storage.DocumentStore
	embeddingPool *ants.Pool
	embeddingProc *embeddingProcessor
	batchSize     int
	retry         storage.RetryPolicy
	clock         clock.Clock
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = pool
		return nil
	}
}

// WithBatchSize sets the number of documents per embedding request and
// per store write.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size must be positive", core.ErrValidation)
		}
		p.batchSize = size
		return nil
	}
}

// WithRetryPolicy sets the retry policy for embedding requests.
func WithRetryPolicy(policy storage.RetryPolicy) Option {
	return func(p *Pipeline) error {
		if policy.MaxAttempts < 1 {
			return storage.ErrInvalidMaxAttempts
		}
		p.retry = policy
		return nil
	}
}

// WithClock sets the clock used for checkpoint messages and for
// open-ended experience spans.
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
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store storage.DocumentStore, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:         store,
		embeddingPool: pool,
		batchSize:     DefaultBatchSize,
		retry:         storage.DefaultRetryPolicy(),
		clock:         clock.WallClock,
		logger:        slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	p.embeddingProc, err = newEmbeddingProcessor(embedder, p.retry, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

// IngestOptions holds optional parameters for ingestion.
type IngestOptions struct {
	// Checkpoint snapshots the store once the records are written.
	Checkpoint bool
	// Description is appended to the checkpoint message.
	Description string
}

// Result summarizes one ingestion run.
type Result struct {
	Source     core.Source   `json:"source"`
	Received   int           `json:"received"`
	Normalized int           `json:"normalized"`
	Duplicates int           `json:"duplicates"`
	Unchanged  int           `json:"unchanged"`
	Stored     int           `json:"stored"`
	Failed     int           `json:"failed"`
	Anonymous  int           `json:"anonymous"`
	Version    *core.Version `json:"version,omitempty"`

	// IDs lists the stored documents.
	IDs []core.Identifier `json:"-"`
}

// Ingest normalizes raw records of one source and stores them.
//
// Records that fail normalization, embedding or storage are skipped and
// reported through the returned *multierror.Error; the rest are still
// stored. Documents are written in batches of the configured batch size.
// Documents whose fingerprint matches the stored copy are not re-embedded.
func (p *Pipeline) Ingest(ctx context.Context, source core.Source, raws []json.RawMessage, opts *IngestOptions) (*Result, error) {
	if opts == nil {
		opts = &IngestOptions{}
	}
	normalizer, err := NormalizerFor(source, p.clock)
	if err != nil {
		return nil, err
	}

	res := &Result{Source: source, Received: len(raws)}
	var errs *multierror.Error

	docs := make([]*core.Document, 0, len(raws))
	seen := make(map[core.Identifier]struct{}, len(raws))
	for i, raw := range raws {
		n, err := normalizer.Normalize(raw)
		if err != nil {
			res.Failed++
			errs = multierror.Append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		if _, dup := seen[n.ID]; dup {
			res.Duplicates++
			continue
		}
		seen[n.ID] = struct{}{}
		if n.Anonymous {
			res.Anonymous++
			p.logger.Warn("record has no identity fields", "record", i, "id", n.ID)
		}
		docs = append(docs, &core.Document{
			ID:       n.ID,
			Source:   n.Record.Source,
			Content:  n.Record.Content,
			Metadata: n.Record.Metadata,
		})
	}
	res.Normalized = len(docs)

	pending, err := p.changed(ctx, docs)
	if err != nil {
		return nil, err
	}
	res.Unchanged = len(docs) - len(pending)

	embedded, embedErr := p.embed(ctx, pending)
	if embedErr != nil {
		errs = multierror.Append(errs, embedErr)
	}
	res.Failed += len(pending) - len(embedded)

	for start := 0; start < len(embedded); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk := embedded[start:min(start+p.batchSize, len(embedded))]
		if err := p.store.Add(ctx, chunk...); err != nil {
			res.Failed += len(chunk)
			errs = multierror.Append(errs, fmt.Errorf("store documents %d-%d: %w", start, start+len(chunk)-1, err))
			continue
		}
		res.Stored += len(chunk)
		for _, doc := range chunk {
			res.IDs = append(res.IDs, doc.ID)
		}
	}

	p.logger.Info("ingested records",
		"source", source,
		"received", res.Received,
		"stored", res.Stored,
		"unchanged", res.Unchanged,
		"failed", res.Failed)

	if opts.Checkpoint {
		msg := CheckpointMessage(res.Normalized, source, p.clock.Now(), opts.Description)
		version, err := p.store.Checkpoint(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: %w", err)
		}
		res.Version = version
	}

	return res, errs.ErrorOrNil()
}

// changed drops documents whose stored copy has the same fingerprint and
// an embedding.
func (p *Pipeline) changed(ctx context.Context, docs []*core.Document) ([]*core.Document, error) {
	out := make([]*core.Document, 0, len(docs))
	for _, doc := range docs {
		existing, err := p.store.Get(ctx, doc.ID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			out = append(out, doc)
		case err != nil:
			return nil, fmt.Errorf("lookup %s: %w", doc.ID, err)
		case existing.Fingerprint != core.Fingerprint(doc.Content, doc.Metadata) || len(existing.Embedding) == 0:
			out = append(out, doc)
		default:
			p.logger.Debug("skipping unchanged document", "id", doc.ID)
		}
	}
	return out, nil
}

// embed runs embedding batches on the pool and returns the documents
// that received a vector, in input order.
func (p *Pipeline) embed(ctx context.Context, docs []*core.Document) ([]*core.Document, error) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs *multierror.Error
	)
	ok := make([]bool, len(docs))

	for start := 0; start < len(docs); start += p.batchSize {
		end := min(start+p.batchSize, len(docs))
		batch := docs[start:end]
		first := start

		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := p.embeddingProc.process(ctx, batch); err != nil {
				p.logger.Error("error processing embeddings", "err", err, "documents", len(batch))
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("batch %d-%d: %w", first, end-1, err))
				mu.Unlock()
				return
			}
			for i := first; i < end; i++ {
				ok[i] = true
			}
		}
		if err := p.embeddingPool.Submit(task); err != nil {
			wg.Done()
			mu.Lock()
			errs = multierror.Append(errs, fmt.Errorf("submit embedding batch: %w", err))
			mu.Unlock()
			break
		}
	}
	wg.Wait()

	out := make([]*core.Document, 0, len(docs))
	for i, doc := range docs {
		if ok[i] {
			out = append(out, doc)
		}
	}
	return out, errs.ErrorOrNil()
}

// CheckpointMessage formats the version message recorded after an
// ingestion run.
func CheckpointMessage(count int, source core.Source, at time.Time, description string) string {
	msg := fmt.Sprintf("Update vector database with %d profiles from %s - %s", count, source, at.UTC().Format(time.RFC3339))
	if description != "" {
		msg += ": " + description
	}
	return msg
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
