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


// Package identity derives stable, content-addressed identifiers for
// harvested records.
//
// An identifier is the record's source prefix followed by the first twelve
// hex digits of a SHA-256 digest over the record's identity-bearing fields:
//
//	id := identity.Generate("scholar",
//	    identity.F("title", "Attention Is All You Need"),
//	    identity.F("year", 2017),
//	)
//	// scholar_3f1a9c0d2b7e
//
// Empty fields are skipped entirely, so a record that omits a field and a
// record that carries it empty produce the same identifier.
package identity
