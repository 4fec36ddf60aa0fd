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


// Package credibility converts heterogeneous profile attributes into a single
// comparable credibility score.
//
// Each Metric maps a Profile onto a bounded ordinal scale:
//   - 0: no signal
//   - 1: minimal
//   - 2: moderate
//   - 3: strong
//
// A Scorer combines a weighted set of metrics into a CredibilityResult:
//
//	scorer, err := credibility.NewScorer([]credibility.Metric{
//	    credibility.NewExperienceMetric(1.5),
//	    credibility.NewEducationMetric(1.2),
//	})
//	result := scorer.Score(credibility.ProfileFromMetadata(doc.Metadata))
//
// Scores are computed on demand and never persisted. Stats holds the
// corpus-wide experience distribution used to turn years of experience into
// a percentile and a level.
package credibility
