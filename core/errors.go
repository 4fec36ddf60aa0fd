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


package core

import "errors"

var (
	// ErrValidation indicates an invalid query, document or configuration.
	// Validation errors are surfaced to the caller and never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates that a document or version does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable indicates the embedding service, vector index or
	// storage backend could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMetricFailure indicates a credibility metric could not score a profile.
	ErrMetricFailure = errors.New("metric failure")

	// ErrSnapshotCorrupt indicates a stored snapshot does not match its digest.
	ErrSnapshotCorrupt = errors.New("snapshot digest mismatch")

	// ErrEmptyContent indicates the document content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidIdentifier indicates a malformed document identifier.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrInvalidSource indicates an unknown source.
	ErrInvalidSource = errors.New("invalid source")
)
