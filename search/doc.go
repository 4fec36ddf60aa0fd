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


// Package search provides hybrid semantic and keyword retrieval of experts.
//
// The Hybrid type implements storage.Querier with a multi-stage algorithm
// that combines:
//   - Semantic search using vector embeddings from the document store
//   - Keyword search over content and author names using a bleve index
//   - Verbatim matching of query terms with stop-word filtering
//
// Documents found by both searches are boosted. The ranked documents feed
// the retrieval pipeline in place of the store's plain vector query.
package search
