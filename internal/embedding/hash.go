// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embedding

import (
	"context"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

const (
	wordWeight    = 1.0
	trigramWeight = 0.5
)

// Hash is a local feature-hashing encoder. Lower-cased word tokens and their
// character trigrams are hashed into signed buckets and the result is
// L2-normalised. It needs no model download or network access, so texts that
// share vocabulary land close together without any semantic understanding.
type Hash struct {
	dim int
}

var _ Service = (*Hash)(nil)

// NewHash creates a hashing encoder producing vectors of width dim.
func NewHash(dim int) *Hash {
	return &Hash{dim: dim}
}

func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float64, h.dim)
	var seen bool
	for _, word := range tokenize(text) {
		seen = true
		h.add(vec, "w:"+word, wordWeight)
		padded := "^" + word + "$"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			h.add(vec, "t:"+string(runes[i:i+3]), trigramWeight)
		}
	}
	if !seen {
		return nil, delmerr.New(delmerr.CodeEmbeddingInputInvalid, "text has no tokens to embed")
	}

	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	if norm == 0 {
		return nil, delmerr.New(delmerr.CodeEmbeddingInputInvalid, "text hashed to a zero vector")
	}
	norm = math.Sqrt(norm)

	out := make([]float32, h.dim)
	for i, x := range vec {
		out[i] = float32(x / norm)
	}
	return out, nil
}

func (h *Hash) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, delmerr.With(err, delmerr.Field("batch_index", i))
		}
		out[i] = v
	}
	return out, nil
}

func (h *Hash) Dimension() int { return h.dim }
func (h *Hash) Model() string  { return "hash-" + strconv.Itoa(h.dim) }
func (h *Hash) Close() error   { return nil }

func (h *Hash) add(vec []float64, feature string, weight float64) {
	sum := xxhash.Sum64String(feature)
	bucket := sum % uint64(h.dim)
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
