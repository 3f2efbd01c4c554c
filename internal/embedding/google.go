// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embedding

import (
	"context"
	"strings"

	"google.golang.org/genai"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

const (
	googleMaxBatch     = 100
	googleDefaultModel = "gemini-embedding-001"
)

// Google embeds text through the Gemini API.
type Google struct {
	client *genai.Client
	model  string
	dim    int
}

var _ Service = (*Google)(nil)

func NewGoogle(ctx context.Context, cfg Config) (*Google, error) {
	if cfg.APIKey == "" {
		return nil, delmerr.New(delmerr.CodeEmbeddingModelLoadFailure, "google: missing api_key", delmerr.FieldProvider(ProviderGoogle))
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, delmerr.Wrapf(err, delmerr.CodeEmbeddingModelLoadFailure, "google: creating client")
	}

	model := cfg.Model
	if model == "" {
		model = googleDefaultModel
	}
	return &Google{client: client, model: model, dim: cfg.Dimension}, nil
}

func (g *Google) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, delmerr.New(delmerr.CodeEmbeddingInputInvalid, "text is empty")
	}
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (g *Google) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += googleMaxBatch {
		end := min(i+googleMaxBatch, len(texts))
		vecs, err := g.call(ctx, texts[i:end])
		if err != nil {
			return nil, delmerr.With(err, delmerr.Field("batch_start", i), delmerr.Field("batch_end", end))
		}
		result = append(result, vecs...)
	}
	return result, nil
}

func (g *Google) Dimension() int { return g.dim }
func (g *Google) Model() string  { return g.model }
func (g *Google) Close() error   { return nil }

func (g *Google) call(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(g.dim)),
	})
	if err != nil {
		return nil, delmerr.Wrap(err, delmerr.CodeEmbeddingUpstreamFailure, "google: embed content",
			delmerr.FieldProvider(ProviderGoogle), delmerr.FieldModel(g.model))
	}

	vecs := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		if e == nil {
			continue
		}
		vecs = append(vecs, e.Values)
	}
	if err := checkDimensions(vecs, len(texts), g.dim); err != nil {
		return nil, err
	}
	return vecs, nil
}
