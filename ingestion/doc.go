// Package ingestion turns harvested records into stored documents.
//
// Each source has a Normalizer that decodes its raw JSON shape, cleans
// markup out of free text and derives the metadata read by the
// credibility metrics. The Pipeline then:
//   - de-duplicates records by identifier
//   - skips documents whose fingerprint matches the stored copy
//   - embeds the rest in batches on a worker pool
//   - writes them to the store and optionally checkpoints it
//
// A record that fails normalization or embedding is reported but does not
// fail the run.
package ingestion
