// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import "context"

// Index is the persistent pattern store with nearest-neighbour search.
//
// Implementations are safe for concurrent use. Writes (Insert, InsertBatch,
// Clear) are serialised against each other and against reads; reads may run
// in parallel. A Search racing an Insert may or may not observe the new record.
type Index interface {
	// Insert adds one pattern. The vector width must equal Dimension().
	// An id that is already stored is rejected with a conflict error.
	Insert(ctx context.Context, p Pattern) error

	// InsertBatch adds all patterns atomically: any invalid or conflicting
	// item rejects the whole batch and leaves the index unchanged.
	InsertBatch(ctx context.Context, ps []Pattern) error

	// Search returns up to q.TopK patterns in ascending distance order.
	// The filter is applied before ranking. An empty index or a filter that
	// matches nothing yields an empty result, not an error.
	Search(ctx context.Context, q Query) ([]Result, error)

	// Get looks up a pattern by exact id. A missing id returns (nil, false, nil).
	Get(ctx context.Context, id string) (*Pattern, bool, error)

	// Count returns the number of stored patterns without scanning them.
	Count(ctx context.Context) (int, error)

	// Clear drops every pattern and recreates the empty collection.
	Clear(ctx context.Context) error

	Dimension() int
	Collection() string
	Close() error
}
