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


// Package ai provides abstractions for the AI services used by the expert
// finder: text embeddings and profile summarization.
//
// Both services are external collaborators. The rest of the module depends
// only on the interfaces defined here:
//
//   - Embedder: generates vector embeddings from text
//   - Summarizer: condenses profile text into a short summary
//   - AIProvider: aggregates both for initialization and shutdown
//
// The ai/openai package implements them against OpenAI-compatible APIs via
// langchaingo. The ai/mock package provides deterministic test doubles.
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inspect call counts and inject behavior:
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("offline")
//	}
//	count := embedder.CallCount()
package ai
