package storage

import (
	"github.com/poiesic/expertfinder/core"
)

// Filter selects documents by metadata.
type Filter interface {
	Match(doc *core.Document) bool
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(doc *core.Document) bool

// Match calls f(doc).
func (f FilterFunc) Match(doc *core.Document) bool { return f(doc) }

// Eq matches documents whose metadata value at key equals value. When the
// stored value is a list, any element may match.
func Eq(key string, value core.Value) Filter {
	return FilterFunc(func(doc *core.Document) bool {
		stored, ok := doc.Metadata[key]
		if !ok {
			return false
		}
		if stored.Equal(value) {
			return true
		}
		if stored.Kind == core.KindList && value.Kind != core.KindList {
			for _, item := range stored.List {
				if item.Equal(value) {
					return true
				}
			}
		}
		return false
	})
}

// In matches documents for which Eq matches any of values.
func In(key string, values ...core.Value) Filter {
	filters := make([]Filter, len(values))
	for i, v := range values {
		filters[i] = Eq(key, v)
	}
	return Or(filters...)
}

// Gte matches documents whose metadata value at key is numeric and at
// least n. Numeric strings are accepted.
func Gte(key string, n float64) Filter {
	return FilterFunc(func(doc *core.Document) bool {
		f, ok := doc.Metadata.Float(key)
		return ok && f >= n
	})
}

// And matches when every filter matches. An empty And matches everything.
func And(filters ...Filter) Filter {
	return FilterFunc(func(doc *core.Document) bool {
		for _, f := range filters {
			if !f.Match(doc) {
				return false
			}
		}
		return true
	})
}

// Or matches when any filter matches. An empty Or matches nothing.
func Or(filters ...Filter) Filter {
	return FilterFunc(func(doc *core.Document) bool {
		for _, f := range filters {
			if f.Match(doc) {
				return true
			}
		}
		return false
	})
}

// QueryOptions holds the resolved options of a read operation.
type QueryOptions struct {
	Source        core.Source
	Filter        Filter
	MinSimilarity float32
}

// QueryOption configures a read operation.
type QueryOption func(*QueryOptions)

// WithSource restricts a read to one source collection. The empty source
// selects all collections.
func WithSource(src core.Source) QueryOption {
	return func(o *QueryOptions) {
		o.Source = src
	}
}

// WithFilter restricts a read to documents matching f.
func WithFilter(f Filter) QueryOption {
	return func(o *QueryOptions) {
		o.Filter = f
	}
}

// WithMinSimilarity drops query results scoring below min.
func WithMinSimilarity(min float32) QueryOption {
	return func(o *QueryOptions) {
		o.MinSimilarity = min
	}
}

// ResolveQueryOptions applies opts over the zero options.
func ResolveQueryOptions(opts ...QueryOption) QueryOptions {
	var o QueryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Match reports whether doc passes the source and metadata filters.
func (o QueryOptions) Match(doc *core.Document) bool {
	if o.Source != "" && doc.Source != o.Source {
		return false
	}
	return o.Filter == nil || o.Filter.Match(doc)
}
