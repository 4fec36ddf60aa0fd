// Package reembed replaces the embeddings of stored documents, typically
// after a change of embedding model.
//
// Documents are walked in ID order and embedded in batches. Each batch is
// retried with exponential backoff, normalized to unit length and written
// back. Progress is reported to a writer as the run advances.
package reembed
