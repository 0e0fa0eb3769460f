// Package hierarchy derives views over a facility's location forest: lookups,
// classification filters, member trees, flattened descendant lists and
// bed/cabinet groupings.
//
// Every function is a pure function of the supplied collection. Nothing is
// cached between calls and the input slice is never modified; returned
// locations are deep copies.
package hierarchy

import (
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
)

// DefaultMaxDepth bounds tree materialization when no explicit limit is configured
const DefaultMaxDepth = 64

// Index resolves location identifiers to positions in a collection in O(1).
// Both ID and UUID are indexed; when two records share a key the first one wins.
type Index struct {
	locations []entities.Location
	byKey     map[string]int
}

// NewIndex builds an index over locations
func NewIndex(locations []entities.Location) *Index {
	index := &Index{
		locations: locations,
		byKey:     make(map[string]int, len(locations)*2),
	}
	for i := range locations {
		index.add(locations[i].ID, i)
		index.add(locations[i].UUID, i)
	}
	return index
}

func (x *Index) add(key string, position int) {
	if key == "" {
		return
	}
	if _, exists := x.byKey[key]; !exists {
		x.byKey[key] = position
	}
}

// Get returns the location stored under key. The pointer refers into the
// indexed collection and must not be modified.
func (x *Index) Get(key string) (*entities.Location, bool) {
	position, ok := x.byKey[key]
	if !ok {
		return nil, false
	}
	return &x.locations[position], true
}

// Len returns the number of indexed locations
func (x *Index) Len() int {
	return len(x.locations)
}

// Options tune a Query
type Options struct {
	MaxDepth int

	// StrictAttributes makes unparsable "Patients per bed" values fail tree
	// building with MALFORMED_ATTRIBUTE instead of counting as one patient.
	StrictAttributes bool
}

// Option mutates Options
type Option func(*Options)

// WithMaxDepth caps how deep member trees and unit collection may recurse
func WithMaxDepth(depth int) Option {
	return func(o *Options) {
		if depth > 0 {
			o.MaxDepth = depth
		}
	}
}

// WithStrictAttributes enables strict attribute parsing
func WithStrictAttributes(strict bool) Option {
	return func(o *Options) {
		o.StrictAttributes = strict
	}
}

// Query answers questions about one snapshot of the location collection.
// It indexes the collection once on construction.
type Query struct {
	locations []entities.Location
	index     *Index
	maxDepth  int

	strictAttributes bool
}

// New builds a Query over locations
func New(locations []entities.Location, opts ...Option) *Query {
	options := Options{MaxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&options)
	}
	return &Query{
		locations: locations,
		index:     NewIndex(locations),
		maxDepth:  options.MaxDepth,

		strictAttributes: options.StrictAttributes,
	}
}
