// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package memory provides a non-persistent, brute-force pattern index.
// It is meant for tests and throwaway runs; data is lost on Close.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/sigil-dev/delm/internal/store"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

func init() {
	store.RegisterBackend("memory", func(cfg store.Config) (store.Index, error) {
		return New(cfg.CollectionName, cfg.Dimension), nil
	})
}

// Compile-time interface check.
var _ store.Index = (*Index)(nil)

// Index implements store.Index over an in-process slice.
type Index struct {
	mu         sync.RWMutex
	collection string
	dimension  int
	patterns   []store.Pattern
	byID       map[string]int
}

// New creates an empty index.
func New(collection string, dimension int) *Index {
	return &Index{
		collection: collection,
		dimension:  dimension,
		byID:       make(map[string]int),
	}
}

func (x *Index) Insert(ctx context.Context, p store.Pattern) error {
	return x.InsertBatch(ctx, []store.Pattern{p})
}

func (x *Index) InsertBatch(_ context.Context, ps []store.Pattern) error {
	if err := store.ValidateBatch(ps, x.dimension); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	for i := range ps {
		if _, ok := x.byID[ps[i].ID]; ok {
			return delmerr.New(delmerr.CodeStorePatternInsertConflict,
				"pattern already exists", delmerr.FieldPatternID(ps[i].ID))
		}
	}
	for _, p := range ps {
		x.byID[p.ID] = len(x.patterns)
		x.patterns = append(x.patterns, clonePattern(p))
	}
	return nil
}

func (x *Index) Search(_ context.Context, q store.Query) ([]store.Result, error) {
	if err := store.ValidateQuery(&q, x.dimension); err != nil {
		return nil, err
	}
	if q.TopK == 0 {
		return []store.Result{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	results := make([]store.Result, 0, min(q.TopK, len(x.patterns)))
	for i := range x.patterns {
		p := &x.patterns[i]
		if !q.Filter.Matches(p) {
			continue
		}
		d := store.CosineDistance(q.Vector, p.Vector)
		if q.MaxDistance > 0 && d > q.MaxDistance {
			continue
		}
		results = append(results, store.Result{
			ID:       p.ID,
			Content:  p.Content,
			Metadata: cloneMetadata(p.Metadata),
			Distance: d,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > q.TopK {
		results = results[:q.TopK]
	}
	return results, nil
}

func (x *Index) Get(_ context.Context, id string) (*store.Pattern, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	i, ok := x.byID[id]
	if !ok {
		return nil, false, nil
	}
	p := clonePattern(x.patterns[i])
	return &p, true, nil
}

func (x *Index) Count(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.patterns), nil
}

func (x *Index) Clear(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.patterns = nil
	x.byID = make(map[string]int)
	return nil
}

func (x *Index) Dimension() int     { return x.dimension }
func (x *Index) Collection() string { return x.collection }
func (x *Index) Close() error       { return nil }

func clonePattern(p store.Pattern) store.Pattern {
	p.Vector = slices.Clone(p.Vector)
	p.Metadata = cloneMetadata(p.Metadata)
	return p
}

func cloneMetadata(m store.Metadata) store.Metadata {
	m.Tags = slices.Clone(m.Tags)
	return m
}
