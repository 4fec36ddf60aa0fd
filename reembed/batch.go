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
	"fmt"

	"github.com/poiesic/expertfinder/ai"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/storage"
)

// BatchProcessor re-embeds batches of documents and writes them back.
type BatchProcessor struct {
	store    storage.DocumentStore
	embedder ai.Embedder
	retry    storage.RetryPolicy
}

// NewBatchProcessor creates a batch processor that retries embedding
// calls under the given policy.
func NewBatchProcessor(store storage.DocumentStore, embedder ai.Embedder, retry storage.RetryPolicy) *BatchProcessor {
	return &BatchProcessor{store: store, embedder: embedder, retry: retry}
}

// Process embeds the documents' content, normalizes the vectors and
// updates the store.
func (bp *BatchProcessor) Process(ctx context.Context, docs []*core.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	var embeddings [][]float32
	err := bp.retry.Do(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: embedding failed after %d attempts: %w", core.ErrUpstreamUnavailable, bp.retry.MaxAttempts, err)
	}

	if len(embeddings) != len(docs) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(docs), len(embeddings))
	}

	for i, doc := range docs {
		doc.Embedding = NormalizeVector(embeddings[i])
	}

	if err := bp.store.Add(ctx, docs...); err != nil {
		return fmt.Errorf("failed to update documents: %w", err)
	}
	return nil
}
