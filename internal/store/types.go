// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

// Metadata is the filterable description attached to every pattern.
type Metadata struct {
	Category string   `json:"category"`
	Name     string   `json:"name"`
	Tags     []string `json:"tags,omitempty"`
}

// Pattern is a stored unit of reference content and its embedding.
// Patterns are immutable once inserted.
type Pattern struct {
	ID       string
	Content  string
	Metadata Metadata
	Vector   []float32
}

// Result is a single nearest-neighbour match.
// Distance is the cosine distance (1 - cosine similarity); lower is closer.
type Result struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
	Distance float64  `json:"distance"`
}

// Query describes a nearest-neighbour search.
type Query struct {
	Vector []float32
	Filter Filter

	// TopK caps the number of results. Zero yields an empty result.
	TopK int

	// MaxDistance drops results farther than this value. Zero disables the cutoff.
	MaxDistance float64
}

func (p *Pattern) fieldValue(f Field) string {
	switch f {
	case FieldID:
		return p.ID
	case FieldCategory:
		return p.Metadata.Category
	case FieldName:
		return p.Metadata.Name
	default:
		return ""
	}
}
