package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/storage"
)

const indexBatchSize = 200

// KeywordIndex is a full-text index over document content backed by bleve.
type KeywordIndex struct {
	index  bleve.Index
	logger *slog.Logger
}

// KeywordHit is a document identifier with its full-text relevance score.
type KeywordHit struct {
	ID    core.Identifier
	Score float64
}

// indexedDocument is the shape stored in bleve.
type indexedDocument struct {
	Content string
	Source  string
	Names   []string
}

// OpenKeywordIndex opens or creates a keyword index at path. An empty path
// creates an in-memory index.
func OpenKeywordIndex(path string) (*KeywordIndex, error) {
	var idx bleve.Index
	var err error

	switch {
	case path == "":
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	default:
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, buildIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}

	return &KeywordIndex{
		index:  idx,
		logger: slog.Default().With("component", "keyword-index"),
	}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = "en"

	sourceField := bleve.NewTextFieldMapping()
	sourceField.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Content", contentField)
	docMapping.AddFieldMappingsAt("Source", sourceField)
	docMapping.AddFieldMappingsAt("Names", bleve.NewTextFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Close closes the index.
func (k *KeywordIndex) Close() error {
	return k.index.Close()
}

// Index adds or replaces documents in one batch.
func (k *KeywordIndex) Index(docs ...*core.Document) error {
	batch := k.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(string(doc.ID), toIndexed(doc)); err != nil {
			return fmt.Errorf("index %s: %w", doc.ID, err)
		}
	}
	if err := k.index.Batch(batch); err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	return nil
}

// Delete removes documents from the index.
func (k *KeywordIndex) Delete(ids ...core.Identifier) error {
	batch := k.index.NewBatch()
	for _, id := range ids {
		batch.Delete(string(id))
	}
	return k.index.Batch(batch)
}

// DocCount returns the number of indexed documents.
func (k *KeywordIndex) DocCount() (uint64, error) {
	return k.index.DocCount()
}

// Rebuild clears the index and re-indexes every live document in store.
func (k *KeywordIndex) Rebuild(ctx context.Context, store storage.DocumentStore) error {
	stale, err := k.allIDs()
	if err != nil {
		return err
	}
	if err := k.Delete(stale...); err != nil {
		return err
	}

	pending := make([]*core.Document, 0, indexBatchSize)
	indexed := 0
	err = store.All(ctx, func(doc *core.Document) error {
		pending = append(pending, doc)
		if len(pending) < indexBatchSize {
			return nil
		}
		indexed += len(pending)
		err := k.Index(pending...)
		pending = pending[:0]
		return err
	})
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		indexed += len(pending)
		if err := k.Index(pending...); err != nil {
			return err
		}
	}

	k.logger.Info("keyword index rebuilt", "documents", indexed)
	return nil
}

func (k *KeywordIndex) allIDs() ([]core.Identifier, error) {
	count, err := k.index.DocCount()
	if err != nil || count == 0 {
		return nil, err
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	res, err := k.index.Search(req)
	if err != nil {
		return nil, err
	}
	ids := make([]core.Identifier, len(res.Hits))
	for i, hit := range res.Hits {
		ids[i] = core.Identifier(hit.ID)
	}
	return ids, nil
}

// Search runs a match query over content and author names. A non-empty
// source restricts hits to that collection.
func (k *KeywordIndex) Search(text string, limit int, source core.Source) ([]KeywordHit, error) {
	if strings.TrimSpace(text) == "" || limit < 1 {
		return nil, nil
	}

	content := bleve.NewMatchQuery(text)
	content.SetField("Content")
	names := bleve.NewMatchQuery(text)
	names.SetField("Names")
	var q query.Query = bleve.NewDisjunctionQuery(content, names)

	if source != "" {
		src := bleve.NewTermQuery(string(source))
		src.SetField("Source")
		q = bleve.NewConjunctionQuery(q, src)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := k.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]KeywordHit, len(res.Hits))
	for i, hit := range res.Hits {
		hits[i] = KeywordHit{ID: core.Identifier(hit.ID), Score: hit.Score}
	}
	return hits, nil
}

func toIndexed(doc *core.Document) indexedDocument {
	names := doc.Metadata.Strings(core.KeyAuthors)
	if n := doc.Metadata.String(core.KeyFullName); n != "" {
		names = append(names, n)
	}
	return indexedDocument{
		Content: doc.Content,
		Source:  string(doc.Source),
		Names:   names,
	}
}
