// Package core defines the data model shared by ingestion, storage,
// scoring and retrieval.
package core

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Source identifies the harvesting source a record came from.
// Each source is also a named collection inside the document store.
type Source string

const (
	// SourceScholar is an academic author profile.
	SourceScholar Source = "scholar"
	// SourceLinkedIn is a professional-network profile.
	SourceLinkedIn Source = "linkedin"
)

// Sources lists every known source in a stable order.
var Sources = []Source{SourceScholar, SourceLinkedIn}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return slices.Contains(Sources, s)
}

// Prefix returns the identifier prefix used for records of this source.
func (s Source) Prefix() string {
	return string(s)
}

// ParseSource converts a string into a Source, accepting any case.
func ParseSource(s string) (Source, bool) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	return src, src.Valid()
}

// Identifier is a stable, content-derived document key of the form
// <prefix>_<12 hex digits>.
type Identifier string

// ValueKind enumerates the metadata value variants.
type ValueKind uint8

const (
	KindString ValueKind = iota + 1
	KindInt
	KindFloat
	KindBool
	KindList
)

// Value is a scalar or list-of-scalar metadata value.
// The zero Value is invalid and renders as an empty string.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	List  []Value
}

// String constructs a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Int constructs an integer value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Float constructs a floating point value.
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// List constructs a list value. Nested lists are flattened.
func List(items ...Value) Value {
	flat := make([]Value, 0, len(items))
	for _, item := range items {
		if item.Kind == KindList {
			flat = append(flat, item.List...)
			continue
		}
		flat = append(flat, item)
	}
	return Value{Kind: KindList, List: flat}
}

// Strings constructs a list value from strings.
func Strings(items ...string) Value {
	vals := make([]Value, len(items))
	for i, s := range items {
		vals[i] = String(s)
	}
	return Value{Kind: KindList, List: vals}
}

// String renders the value. Lists are comma-joined.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.String()
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

// IsEmpty reports whether the value carries no information.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case KindString:
		return v.Str == ""
	case KindList:
		return len(v.List) == 0
	case KindInt, KindFloat, KindBool:
		return false
	default:
		return true
	}
}

// Number returns the numeric interpretation of the value.
// Strings are parsed; lists and bools are not numbers.
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Items returns the list elements, or the value itself as a one-element list.
func (v Value) Items() []Value {
	if v.Kind == KindList {
		return v.List
	}
	if v.Kind == 0 {
		return nil
	}
	return []Value{v}
}

// Equal reports structural equality.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindBool:
		return v.Bool == o.Bool
	case KindList:
		return slices.EqualFunc(v.List, o.List, Value.Equal)
	default:
		return true
	}
}

// Metadata maps attribute names to values.
type Metadata map[string]Value

// Has reports whether key is present and non-empty.
func (m Metadata) Has(key string) bool {
	v, ok := m[key]
	return ok && !v.IsEmpty()
}

// String returns the string form of key, or "" when absent.
func (m Metadata) String(key string) string {
	return m[key].String()
}

// Int returns key as an integer, or 0 when absent or not numeric.
func (m Metadata) Int(key string) int {
	f, ok := m[key].Number()
	if !ok {
		return 0
	}
	return int(f)
}

// Float returns key as a number and whether it was numeric.
func (m Metadata) Float(key string) (float64, bool) {
	return m[key].Number()
}

// Strings returns key as a list of strings. A scalar string containing
// commas is split.
func (m Metadata) Strings(key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	if v.Kind == KindString {
		var out []string
		for _, part := range strings.Split(v.Str, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	items := v.Items()
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := item.String(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Equal reports whether both maps hold the same keys and values.
func (m Metadata) Equal(o Metadata) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SplitList splits a comma separated string, or a whitespace separated one
// when no commas are present.
func SplitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var parts []string
	if strings.Contains(s, ",") {
		parts = strings.Split(s, ",")
	} else {
		parts = strings.Fields(s)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Record is a harvested unit after per-source normalization.
type Record struct {
	Source   Source
	Content  string
	Metadata Metadata
}

// Document is the stored, embedded form of a record.
type Document struct {
	ID          Identifier
	Source      Source
	Content     string
	Metadata    Metadata
	Embedding   []float32
	Fingerprint string    // blake2b digest of content and metadata
	UpdatedAt   time.Time // When the document was last written
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.Metadata != nil {
		c.Metadata = make(Metadata, len(d.Metadata))
		for k, v := range d.Metadata {
			if v.Kind == KindList {
				v.List = slices.Clone(v.List)
			}
			c.Metadata[k] = v
		}
	}
	c.Embedding = slices.Clone(d.Embedding)
	return &c
}

// Version is an immutable snapshot of the full document set.
type Version struct {
	CommitID      string    `json:"commit_id"`
	Timestamp     time.Time `json:"timestamp"`
	Message       string    `json:"message"`
	DocumentCount int       `json:"document_count"`
	Digest        string    `json:"digest"` // over the sorted document fingerprints
}

// Expert is the external-facing projection of a ranked document.
// It carries neither the identifier nor the embedding.
type Expert struct {
	Name                  string   `json:"name"`
	Title                 string   `json:"title,omitempty"`
	Source                Source   `json:"source"`
	Company               string   `json:"company,omitempty"`
	Location              string   `json:"location,omitempty"`
	Skills                []string `json:"skills,omitempty"`
	Citations             int      `json:"citations"`
	Interests             []string `json:"interests"`
	Publications          []string `json:"publications"`
	Summary               string   `json:"summary,omitempty"`
	CredibilityScore      float64  `json:"credibility_score"`
	CredibilityLevel      int      `json:"credibility_level,omitempty"`
	CredibilityPercentile float64  `json:"credibility_percentile,omitempty"`
	YearsExperience       float64  `json:"years_experience,omitempty"`
}

// Fingerprint computes a deterministic blake2b-256 digest of the document
// content and metadata. Keys are hashed in sorted order.
func Fingerprint(content string, md Metadata) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(content))
	for _, k := range md.Keys() {
		v := md[k]
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{0})
		hashValue(h, v)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// hashValue writes the kind and length-prefixed rendering of v. List
// items are written one by one after the item count, so separators inside
// items cannot make two lists collide.
func hashValue(h hash.Hash, v Value) {
	h.Write([]byte{byte(v.Kind)})
	if v.Kind != KindList {
		s := v.String()
		h.Write(binary.AppendUvarint(nil, uint64(len(s))))
		h.Write([]byte(s))
		return
	}
	h.Write(binary.AppendUvarint(nil, uint64(len(v.List))))
	for _, item := range v.List {
		h.Write([]byte{0x1f})
		hashValue(h, item)
	}
}

// SnapshotDigest combines document fingerprints into a single digest.
// The result is independent of input order.
func SnapshotDigest(fingerprints []string) string {
	sorted := slices.Clone(fingerprints)
	sort.Strings(sorted)
	h, _ := blake2b.New(32, nil)
	for _, fp := range sorted {
		h.Write([]byte(fp))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
