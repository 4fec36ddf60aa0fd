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


// Package storage provides the storage abstraction layer for the expert finder.
//
// This package defines the DocumentStore and StatsRepository interfaces,
// metadata filters, the binary codecs used to persist documents, versions
// and credibility statistics, and a retry helper for calls that cross into
// upstream services.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return interfaces:
//
//	store, err := badger.NewStore(path, embedder) // returns storage.DocumentStore
//
// Internal package constructors may return concrete types since they're only
// used within the implementation package.
//
// # Versioning
//
// A DocumentStore holds a single live set of documents. Checkpoint copies
// the live set into an immutable snapshot and records a core.Version.
// Restore replaces the live set with a snapshot atomically: either every
// document is replaced or none is.
//
// # Filters
//
// Reads accept QueryOptions. WithSource narrows a read to one source
// collection and WithFilter applies metadata predicates:
//
//	docs, err := store.Query(ctx, "distributed systems", 5,
//	    storage.WithSource(core.SourceLinkedIn),
//	    storage.WithFilter(storage.And(
//	        storage.In("location", core.String("London"), core.String("Berlin")),
//	        storage.Gte("total_years_experience", 10),
//	    )),
//	)
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
