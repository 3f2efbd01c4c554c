// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package embedding converts text into fixed-width vectors.
//
// A Service is constructed once with New, which performs the one-time model
// load: remote backends build their SDK client and embed a probe string to
// confirm the model answers with the configured dimension. A Service that
// fails to load is never returned.
package embedding

import (
	"context"
	"log/slog"
	"math"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// Service generates embeddings for text.
type Service interface {
	// Embed returns the vector for one text. Deterministic for a fixed model.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order.
	// An empty input yields an empty output.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the width of every returned vector.
	Dimension() int

	// Model returns the model identifier.
	Model() string

	Close() error
}

// Provider names accepted by Config.Provider.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)

const probeText = "embedding dimension probe"

// Config selects and configures the embedding backend.
type Config struct {
	Provider  string
	Model     string
	Dimension int
	APIKey    string
	BaseURL   string // optional, OpenAI-compatible endpoint or mock server
}

// New constructs the configured Service and verifies its model is usable.
// Every failure is reported as embedding.model.load.failure.
func New(ctx context.Context, cfg Config) (Service, error) {
	if cfg.Dimension <= 0 {
		return nil, delmerr.Errorf(delmerr.CodeEmbeddingModelLoadFailure, "embedding dimension must be positive, got %d", cfg.Dimension)
	}

	var (
		svc Service
		err error
	)
	switch cfg.Provider {
	case ProviderHash, "":
		return NewHash(cfg.Dimension), nil
	case ProviderOpenAI:
		svc, err = NewOpenAI(cfg)
	case ProviderGoogle:
		svc, err = NewGoogle(ctx, cfg)
	default:
		return nil, delmerr.Errorf(delmerr.CodeEmbeddingModelLoadFailure, "unsupported embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, loadFailure(cfg, "creating client", err)
	}

	if _, err := svc.Embed(ctx, probeText); err != nil {
		_ = svc.Close()
		return nil, loadFailure(cfg, "probing model", err)
	}

	slog.Info("embedding model loaded", "provider", cfg.Provider, "model", svc.Model(), "dimension", svc.Dimension())
	return svc, nil
}

// loadFailure flattens the cause so callers always see the load code rather
// than whatever the backend reported.
func loadFailure(cfg Config, step string, cause error) error {
	return delmerr.With(
		delmerr.Errorf(delmerr.CodeEmbeddingModelLoadFailure, "embedding model %s/%s: %s: %v", cfg.Provider, cfg.Model, step, cause),
		delmerr.FieldProvider(cfg.Provider), delmerr.FieldModel(cfg.Model),
	)
}

// Similarity returns the cosine similarity dot(a,b) / (|a|·|b|).
// Vectors of different length or zero magnitude are rejected rather than
// producing NaN.
func Similarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, delmerr.Errorf(delmerr.CodeEmbeddingSimilarityInvalidArg, "vector lengths differ: %d vs %d", len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, delmerr.New(delmerr.CodeEmbeddingSimilarityInvalidArg, "cannot compare a zero-magnitude vector")
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// checkDimensions verifies a backend response: one vector per input, each of width dim.
func checkDimensions(vecs [][]float32, want, dim int) error {
	if len(vecs) != want {
		return delmerr.Errorf(delmerr.CodeEmbeddingResponseSchema, "embedding response has %d vectors, want %d", len(vecs), want)
	}
	for i, v := range vecs {
		if len(v) != dim {
			return delmerr.Errorf(delmerr.CodeEmbeddingResponseSchema,
				"embedding %d has dimension %d, configured dimension is %d", i, len(v), dim)
		}
	}
	return nil
}

func float64sToFloat32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
