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


package storage

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/credibility"
)

// sink receives primitive fields. The same encode function drives both
// size calculation and marshaling.
type sink interface {
	str(v string)
	i64(v int64)
	u64(v uint64)
	u32(v uint32)
	boolean(v bool)
}

type sizer struct{ n int }

func (s *sizer) str(v string) { s.n += ord.String.Size(v) }
func (s *sizer) i64(v int64) { s.n += varint.Int64.Size(v) }
func (s *sizer) u64(v uint64) { s.n += varint.Uint64.Size(v) }
func (s *sizer) u32(v uint32) { s.n += varint.Uint32.Size(v) }
func (s *sizer) boolean(v bool) { s.n += ord.Bool.Size(v) }

type writer struct {
	bs []byte
	n  int
}

func (w *writer) str(v string) { w.n += ord.String.Marshal(v, w.bs[w.n:]) }
func (w *writer) i64(v int64) { w.n += varint.Int64.Marshal(v, w.bs[w.n:]) }
func (w *writer) u64(v uint64) { w.n += varint.Uint64.Marshal(v, w.bs[w.n:]) }
func (w *writer) u32(v uint32) { w.n += varint.Uint32.Marshal(v, w.bs[w.n:]) }
func (w *writer) boolean(v bool) { w.n += ord.Bool.Marshal(v, w.bs[w.n:]) }

// reader decodes primitives sequentially and remembers the first error.
type reader struct {
	bs  []byte
	n   int
	err error
}

func (r *reader) str() (v string) {
	if r.err == nil {
		var n int
		v, n, r.err = ord.String.Unmarshal(r.bs[r.n:])
		r.n += n
	}
	return
}

func (r *reader) i64() (v int64) {
	if r.err == nil {
		var n int
		v, n, r.err = varint.Int64.Unmarshal(r.bs[r.n:])
		r.n += n
	}
	return
}

func (r *reader) u64() (v uint64) {
	if r.err == nil {
		var n int
		v, n, r.err = varint.Uint64.Unmarshal(r.bs[r.n:])
		r.n += n
	}
	return
}

func (r *reader) u32() (v uint32) {
	if r.err == nil {
		var n int
		v, n, r.err = varint.Uint32.Unmarshal(r.bs[r.n:])
		r.n += n
	}
	return
}

func (r *reader) boolean() (v bool) {
	if r.err == nil {
		var n int
		v, n, r.err = ord.Bool.Unmarshal(r.bs[r.n:])
		r.n += n
	}
	return
}

// count reads a collection length and rejects values larger than the
// remaining input.
func (r *reader) count() int {
	l := r.u64()
	if r.err == nil && l > uint64(len(r.bs)-r.n) {
		r.err = ErrTruncatedData
	}
	return int(l)
}

func (r *reader) done(what string) error {
	if r.err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSerializationFailed, what, r.err)
	}
	return nil
}

func encodeTime(s sink, t time.Time) {
	if t.IsZero() {
		s.boolean(false)
		return
	}
	s.boolean(true)
	s.i64(t.UnixMicro())
}

func decodeTime(r *reader) time.Time {
	if !r.boolean() {
		return time.Time{}
	}
	return time.UnixMicro(r.i64()).UTC()
}

func encodeValue(s sink, v core.Value) {
	s.u64(uint64(v.Kind))
	switch v.Kind {
	case core.KindString:
		s.str(v.Str)
	case core.KindInt:
		s.i64(v.Int)
	case core.KindFloat:
		s.u64(math.Float64bits(v.Float))
	case core.KindBool:
		s.boolean(v.Bool)
	case core.KindList:
		s.u64(uint64(len(v.List)))
		for _, item := range v.List {
			encodeValue(s, item)
		}
	}
}

func decodeValue(r *reader) core.Value {
	v := core.Value{Kind: core.ValueKind(r.u64())}
	switch v.Kind {
	case core.KindString:
		v.Str = r.str()
	case core.KindInt:
		v.Int = r.i64()
	case core.KindFloat:
		v.Float = math.Float64frombits(r.u64())
	case core.KindBool:
		v.Bool = r.boolean()
	case core.KindList:
		n := r.count()
		if r.err != nil {
			break
		}
		v.List = make([]core.Value, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			item := decodeValue(r)
			if item.Kind == core.KindList {
				r.err = errors.New("nested list value")
			}
			v.List = append(v.List, item)
		}
	default:
		if r.err == nil {
			r.err = fmt.Errorf("unknown value kind %d", v.Kind)
		}
	}
	return v
}

func encodeMetadata(s sink, md core.Metadata) {
	s.u64(uint64(len(md)))
	for _, k := range md.Keys() {
		s.str(k)
		encodeValue(s, md[k])
	}
}

func decodeMetadata(r *reader) core.Metadata {
	n := r.count()
	if r.err != nil || n == 0 {
		return nil
	}
	md := make(core.Metadata, n)
	for i := 0; i < n && r.err == nil; i++ {
		k := r.str()
		md[k] = decodeValue(r)
	}
	return md
}

func encodeIntMap(s sink, m map[string]int) {
	s.u64(uint64(len(m)))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		s.str(k)
		s.i64(int64(m[k]))
	}
}

func decodeIntMap(r *reader) map[string]int {
	n := r.count()
	m := make(map[string]int, n)
	for i := 0; i < n && r.err == nil; i++ {
		k := r.str()
		m[k] = int(r.i64())
	}
	return m
}

func encodeDocument(s sink, d *core.Document) {
	s.str(string(d.ID))
	s.str(string(d.Source))
	s.str(d.Content)
	encodeMetadata(s, d.Metadata)
	s.u64(uint64(len(d.Embedding)))
	for _, f := range d.Embedding {
		s.u32(math.Float32bits(f))
	}
	s.str(d.Fingerprint)
	encodeTime(s, d.UpdatedAt)
}

func encodeVersion(s sink, v *core.Version) {
	s.str(v.CommitID)
	encodeTime(s, v.Timestamp)
	s.str(v.Message)
	s.i64(int64(v.DocumentCount))
	s.str(v.Digest)
}

func encodeStats(s sink, st *credibility.Stats) {
	s.i64(int64(st.TotalProfiles))
	s.u64(math.Float64bits(st.MaxYears))
	encodeIntMap(s, st.ExperienceDistribution)
	encodeIntMap(s, st.EducationDistribution)
	encodeTime(s, st.UpdatedAt)
}

func marshal(encode func(sink)) []byte {
	sz := &sizer{}
	encode(sz)
	w := &writer{bs: make([]byte, sz.n)}
	encode(w)
	return w.bs
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	return marshal(func(s sink) { encodeDocument(s, doc) })
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	r := &reader{bs: data}
	doc := &core.Document{
		ID:       core.Identifier(r.str()),
		Source:   core.Source(r.str()),
		Content:  r.str(),
		Metadata: decodeMetadata(r),
	}
	if n := r.count(); r.err == nil && n > 0 {
		doc.Embedding = make([]float32, n)
		for i := range doc.Embedding {
			doc.Embedding[i] = math.Float32frombits(r.u32())
		}
	}
	doc.Fingerprint = r.str()
	doc.UpdatedAt = decodeTime(r)
	if err := r.done("document"); err != nil {
		return nil, err
	}
	return doc, nil
}

// MarshalVersion serializes a Version to bytes.
func MarshalVersion(v *core.Version) []byte {
	return marshal(func(s sink) { encodeVersion(s, v) })
}

// UnmarshalVersion deserializes a Version from bytes.
func UnmarshalVersion(data []byte) (*core.Version, error) {
	r := &reader{bs: data}
	v := &core.Version{
		CommitID:  r.str(),
		Timestamp: decodeTime(r),
		Message:   r.str(),
	}
	v.DocumentCount = int(r.i64())
	v.Digest = r.str()
	if err := r.done("version"); err != nil {
		return nil, err
	}
	return v, nil
}

// MarshalStats serializes credibility statistics to bytes.
func MarshalStats(st *credibility.Stats) []byte {
	return marshal(func(s sink) { encodeStats(s, st) })
}

// UnmarshalStats deserializes credibility statistics from bytes.
func UnmarshalStats(data []byte) (*credibility.Stats, error) {
	r := &reader{bs: data}
	st := &credibility.Stats{
		TotalProfiles: int(r.i64()),
		MaxYears:      math.Float64frombits(r.u64()),
	}
	st.ExperienceDistribution = decodeIntMap(r)
	st.EducationDistribution = decodeIntMap(r)
	st.UpdatedAt = decodeTime(r)
	if err := r.done("stats"); err != nil {
		return nil, err
	}
	return st, nil
}
