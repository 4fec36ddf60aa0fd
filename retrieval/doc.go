// Package retrieval answers expert queries.
//
// A Pipeline moves each request through a fixed sequence of states:
//
//	Idle -> Retrieving -> Enriching -> Scoring -> Formatting -> Done
//
// Any stage may instead end in Failed. A blank query goes straight from
// Retrieving to Done with no results. Enrichment summarizes documents
// concurrently; a failed summary is logged and left empty. Scoring ranks
// by credibility with ties kept in retrieval order.
package retrieval
