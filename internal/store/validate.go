// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"math"
	"strings"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// TagSeparator joins tags in backends that store them as a single string.
const TagSeparator = ","

// ValidatePattern checks a pattern against an index of the given dimension.
func ValidatePattern(p *Pattern, dimension int) error {
	if p.ID == "" {
		return delmerr.New(delmerr.CodeStorePatternInsertInvalidInput, "pattern id must not be empty")
	}
	if len(p.Vector) != dimension {
		return delmerr.New(delmerr.CodeStorePatternInsertSchemaMismatch,
			"pattern vector has wrong dimension",
			delmerr.FieldPatternID(p.ID),
			delmerr.Field("expected", dimension),
			delmerr.Field("got", len(p.Vector)),
		)
	}
	if isZero(p.Vector) {
		return delmerr.New(delmerr.CodeStorePatternInsertInvalidInput,
			"pattern vector has zero magnitude", delmerr.FieldPatternID(p.ID))
	}
	for _, tag := range p.Metadata.Tags {
		if tag == "" {
			return delmerr.New(delmerr.CodeStorePatternInsertInvalidInput,
				"tag must not be empty", delmerr.FieldPatternID(p.ID))
		}
		if strings.Contains(tag, TagSeparator) {
			return delmerr.New(delmerr.CodeStorePatternInsertInvalidInput,
				"tag must not contain "+TagSeparator,
				delmerr.FieldPatternID(p.ID), delmerr.Field("tag", tag))
		}
	}
	return nil
}

// ValidateBatch validates every pattern and rejects ids repeated within the batch.
func ValidateBatch(ps []Pattern, dimension int) error {
	seen := make(map[string]struct{}, len(ps))
	for i := range ps {
		if err := ValidatePattern(&ps[i], dimension); err != nil {
			return delmerr.With(err, delmerr.Field("batch_index", i))
		}
		if _, dup := seen[ps[i].ID]; dup {
			return delmerr.New(delmerr.CodeStorePatternInsertConflict,
				"pattern id repeated within batch", delmerr.FieldPatternID(ps[i].ID))
		}
		seen[ps[i].ID] = struct{}{}
	}
	return nil
}

// ValidateQuery checks a search request against an index of the given dimension.
func ValidateQuery(q *Query, dimension int) error {
	if q.TopK < 0 {
		return delmerr.Errorf(delmerr.CodeStorePatternSearchInvalidInput, "top_k must not be negative, got %d", q.TopK)
	}
	if q.MaxDistance < 0 {
		return delmerr.Errorf(delmerr.CodeStorePatternSearchInvalidInput, "max distance must not be negative, got %g", q.MaxDistance)
	}
	if len(q.Vector) != dimension {
		return delmerr.Errorf(delmerr.CodeStorePatternSearchInvalidInput,
			"query vector has dimension %d, index expects %d", len(q.Vector), dimension)
	}
	if isZero(q.Vector) {
		return delmerr.New(delmerr.CodeStorePatternSearchInvalidInput, "query vector has zero magnitude")
	}
	return q.Filter.Validate()
}

// CosineDistance returns 1 - cos(a, b). Callers must pass equal-length,
// non-zero vectors.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	if d < 0 {
		return 0
	}
	return d
}

// JoinTags flattens tags for storage.
func JoinTags(tags []string) string {
	return strings.Join(tags, TagSeparator)
}

// SplitTags restores tags flattened by JoinTags.
func SplitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, TagSeparator)
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
