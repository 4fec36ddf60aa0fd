package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a document store is not provided.
	ErrStoreRequired = errors.New("document store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrUnknownSource is returned when no normalizer handles a source.
	ErrUnknownSource = errors.New("unknown source")

	// ErrMalformedRecord is returned when a raw record cannot be decoded
	// or lacks the fields needed to build a document.
	ErrMalformedRecord = errors.New("malformed record")
)
