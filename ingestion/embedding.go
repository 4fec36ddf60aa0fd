package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/expertfinder/ai"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/storage"
)

// embeddingProcessor fills in document embeddings one batch at a time.
type embeddingProcessor struct {
	embedder ai.Embedder
	retry    storage.RetryPolicy
	logger   *slog.Logger
}

func newEmbeddingProcessor(embedder ai.Embedder, retry storage.RetryPolicy, logger *slog.Logger) (*embeddingProcessor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		embedder: embedder,
		retry:    retry,
		logger:   logger.With("processor", "embeddings"),
	}, nil
}

// process embeds the documents' content in place.
func (ep *embeddingProcessor) process(ctx context.Context, docs []*core.Document) error {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	ep.logger.Debug("generating embeddings", "documents", len(texts))
	var embeddings [][]float32
	err := ep.retry.Do(ctx, func() error {
		var err error
		embeddings, err = ep.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrUpstreamUnavailable, err)
	}

	if len(embeddings) != len(docs) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(docs), len(embeddings))
	}

	for i := range embeddings {
		docs[i].Embedding = embeddings[i]
	}
	return nil
}
