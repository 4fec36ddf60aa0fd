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


package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/juju/clock"
	"github.com/microcosm-cc/bluemonday"
	"github.com/poiesic/expertfinder/core"
)

// Normalized is a raw record after source-specific normalization.
type Normalized struct {
	ID     core.Identifier
	Record core.Record

	// Anonymous is set when every identity field was empty.
	Anonymous bool
}

// Normalizer turns one raw harvested record into a Record.
// Implementations must be safe for concurrent use.
type Normalizer interface {
	Source() core.Source
	Normalize(raw json.RawMessage) (*Normalized, error)
}

// NormalizerFor returns the normalizer for a source.
func NormalizerFor(source core.Source, c clock.Clock) (Normalizer, error) {
	switch source {
	case core.SourceScholar:
		return NewScholarNormalizer(), nil
	case core.SourceLinkedIn:
		return NewLinkedInNormalizer(c), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
}

// DecodeRecords reads a JSON array of raw records.
func DecodeRecords(r io.Reader) ([]json.RawMessage, error) {
	var raws []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return raws, nil
}

var textPolicy = bluemonday.StrictPolicy()

// cleanText strips markup and entities and collapses whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(textPolicy.Sanitize(s))), " ")
}

// flexString decodes a JSON string, number or null into a string.
// Harvested years and counts arrive in either form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*f = flexString(n.String())
	}
	return nil
}

func (f flexString) String() string { return string(f) }

// Int parses the value, defaulting to 0.
func (f flexString) Int() int64 {
	s := strings.ReplaceAll(string(f), ",", "")
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(fl)
	}
	return 0
}

// Float parses the value and reports whether it was numeric.
func (f flexString) Float() (float64, bool) {
	fl, err := strconv.ParseFloat(string(f), 64)
	return fl, err == nil
}

// nameList decodes an array of strings, or of objects carrying a name or
// title, or a single comma separated string.
type nameList []string

func (l *nameList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		switch s = strings.TrimSpace(s); {
		case strings.Contains(s, ","):
			*l = core.SplitList(s)
		case s != "":
			*l = nameList{s}
		default:
			*l = nil
		}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make(nameList, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj struct {
			Name  string `json:"name"`
			Title string `json:"title"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		name := strings.TrimSpace(obj.Name)
		if name == "" {
			name = strings.TrimSpace(obj.Title)
		}
		if name != "" {
			out = append(out, name)
		}
	}
	*l = out
	return nil
}

// setString stores a non-empty string.
func setString(md core.Metadata, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		md[key] = core.String(value)
	}
}

// setStrings stores a non-empty list.
func setStrings(md core.Metadata, key string, values []string) {
	if len(values) > 0 {
		md[key] = core.Strings(values...)
	}
}

// dedupe removes blanks and repeats, keeping first occurrence order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
