// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embedding_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/delm/internal/embedding"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

func TestHashEmbedIsDeterministicAndNormalised(t *testing.T) {
	h := embedding.NewHash(64)
	ctx := context.Background()

	a, err := h.Embed(ctx, "Primary call-to-action button")
	require.NoError(t, err)
	b, err := h.Embed(ctx, "Primary call-to-action button")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	var norm float64
	for _, x := range a {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestHashEmbedIsCaseInsensitive(t *testing.T) {
	h := embedding.NewHash(64)
	a, err := h.Embed(context.Background(), "Submit Button")
	require.NoError(t, err)
	b, err := h.Embed(context.Background(), "submit button")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashEmbedRejectsTextWithoutTokens(t *testing.T) {
	h := embedding.NewHash(64)
	for _, text := range []string{"", "   ", "!!! ---"} {
		_, err := h.Embed(context.Background(), text)
		require.Error(t, err, "text %q", text)
		assert.True(t, delmerr.IsInvalidInput(err))
	}
}

func TestHashSharedVocabularyRanksCloser(t *testing.T) {
	h := embedding.NewHash(256)
	ctx := context.Background()

	q, err := h.Embed(ctx, "make a submit button")
	require.NoError(t, err)
	btn, err := h.Embed(ctx, "a primary call-to-action button")
	require.NoError(t, err)
	card, err := h.Embed(ctx, "a bordered content card")
	require.NoError(t, err)

	simBtn, err := embedding.Similarity(q, btn)
	require.NoError(t, err)
	simCard, err := embedding.Similarity(q, card)
	require.NoError(t, err)
	assert.Greater(t, simBtn, simCard)
}

func TestHashTrigramsLinkWordVariants(t *testing.T) {
	h := embedding.NewHash(1024)
	ctx := context.Background()

	// "buttons" and "button" share no word token, only trigrams.
	plural, err := h.Embed(ctx, "buttons")
	require.NoError(t, err)
	single, err := h.Embed(ctx, "button")
	require.NoError(t, err)
	card, err := h.Embed(ctx, "card")
	require.NoError(t, err)

	simVariant, err := embedding.Similarity(plural, single)
	require.NoError(t, err)
	simCard, err := embedding.Similarity(plural, card)
	require.NoError(t, err)
	assert.Greater(t, simVariant, 0.3)
	assert.Greater(t, simVariant, simCard)
}

func TestHashEmbedBatchPreservesOrder(t *testing.T) {
	h := embedding.NewHash(32)
	ctx := context.Background()
	texts := []string{"alpha", "beta", "gamma"}

	batch, err := h.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := h.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestHashEmbedBatchEmptyInput(t *testing.T) {
	batch, err := embedding.NewHash(32).EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestHashEmbedBatchReportsFailingIndex(t *testing.T) {
	_, err := embedding.NewHash(32).EmbedBatch(context.Background(), []string{"ok", "  "})
	require.Error(t, err)
	assert.Equal(t, 1, delmerr.FieldsOf(err)["batch_index"])
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "scaled", a: []float32{1, 0}, b: []float32{5, 0}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 1}, b: []float32{-1, -1}, want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := embedding.Similarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSimilarityRejectsDegenerateInput(t *testing.T) {
	_, err := embedding.Similarity([]float32{1, 2}, []float32{1, 2, 3})
	require.Error(t, err)
	assert.True(t, delmerr.HasCode(err, delmerr.CodeEmbeddingSimilarityInvalidArg))

	_, err = embedding.Similarity([]float32{0, 0}, []float32{1, 0})
	require.Error(t, err)
	assert.True(t, delmerr.HasCode(err, delmerr.CodeEmbeddingSimilarityInvalidArg))
}

func TestNewHashProvider(t *testing.T) {
	svc, err := embedding.New(context.Background(), embedding.Config{Provider: embedding.ProviderHash, Dimension: 48})
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	assert.Equal(t, 48, svc.Dimension())
	assert.Equal(t, "hash-48", svc.Model())
}

func TestNewLoadFailures(t *testing.T) {
	tests := []struct {
		name string
		cfg  embedding.Config
	}{
		{name: "unknown provider", cfg: embedding.Config{Provider: "word2vec", Dimension: 8}},
		{name: "zero dimension", cfg: embedding.Config{Provider: embedding.ProviderHash}},
		{name: "openai without key", cfg: embedding.Config{Provider: embedding.ProviderOpenAI, Dimension: 8}},
		{name: "google without key", cfg: embedding.Config{Provider: embedding.ProviderGoogle, Dimension: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := embedding.New(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.True(t, delmerr.HasCode(err, delmerr.CodeEmbeddingModelLoadFailure), "got code %s", delmerr.CodeOf(err))
		})
	}
}

// fakeOpenAI serves /embeddings, returning vectors of width dim where every
// component equals the input's position plus one.
func fakeOpenAI(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data := make([]map[string]any, 0, len(req.Input))
		for i := range req.Input {
			vec := make([]float64, dim)
			for j := range vec {
				vec[j] = float64(i + 1)
			}
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": vec})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAIProbesDimension(t *testing.T) {
	srv := fakeOpenAI(t, 4)

	svc, err := embedding.New(context.Background(), embedding.Config{
		Provider:  embedding.ProviderOpenAI,
		Model:     "text-embedding-3-small",
		Dimension: 4,
		APIKey:    "test-key",
		BaseURL:   srv.URL,
	})
	require.NoError(t, err)

	vecs, err := svc.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 1, 1, 1}, vecs[0])
	assert.Equal(t, []float32{2, 2, 2, 2}, vecs[1])
}

func TestNewOpenAIDimensionMismatchFailsLoad(t *testing.T) {
	srv := fakeOpenAI(t, 3)

	_, err := embedding.New(context.Background(), embedding.Config{
		Provider:  embedding.ProviderOpenAI,
		Model:     "text-embedding-ada-002",
		Dimension: 4,
		APIKey:    "test-key",
		BaseURL:   srv.URL,
	})
	require.Error(t, err)
	assert.True(t, delmerr.HasCode(err, delmerr.CodeEmbeddingModelLoadFailure))
}

func TestOpenAIEmbedRejectsEmptyText(t *testing.T) {
	svc, err := embedding.NewOpenAI(embedding.Config{APIKey: "k", Dimension: 4})
	require.NoError(t, err)
	_, err = svc.Embed(context.Background(), " ")
	require.Error(t, err)
	assert.True(t, delmerr.IsInvalidInput(err))
}
