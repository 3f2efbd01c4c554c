// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embedding

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

const (
	openAIMaxBatch     = 2048
	openAIDefaultModel = "text-embedding-3-small"
)

// OpenAI embeds text through the OpenAI embeddings API or any compatible
// endpoint set via Config.BaseURL.
type OpenAI struct {
	client *openai.Client
	model  string
	dim    int
}

var _ Service = (*OpenAI)(nil)

// NewOpenAI creates the client. It performs no network calls.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, delmerr.New(delmerr.CodeEmbeddingModelLoadFailure, "openai: missing api_key", delmerr.FieldProvider(ProviderOpenAI))
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAI{client: &client, model: model, dim: cfg.Dimension}, nil
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, delmerr.New(delmerr.CodeEmbeddingInputInvalid, "text is empty")
	}
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch splits inputs larger than the API batch limit across calls.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := 0; i < len(texts); i += openAIMaxBatch {
		end := min(i+openAIMaxBatch, len(texts))
		vecs, err := o.call(ctx, texts[i:end])
		if err != nil {
			return nil, delmerr.With(err, delmerr.Field("batch_start", i), delmerr.Field("batch_end", end))
		}
		copy(result[i:], vecs)
	}
	return result, nil
}

func (o *OpenAI) Dimension() int { return o.dim }
func (o *OpenAI) Model() string  { return o.model }
func (o *OpenAI) Close() error   { return nil }

func (o *OpenAI) call(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model:          o.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	// Only the text-embedding-3 family accepts a requested width.
	if strings.HasPrefix(o.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(o.dim))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, delmerr.Wrap(err, delmerr.CodeEmbeddingUpstreamFailure, "openai: embeddings request",
			delmerr.FieldProvider(ProviderOpenAI), delmerr.FieldModel(o.model))
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= int64(len(texts)) {
			return nil, delmerr.Errorf(delmerr.CodeEmbeddingResponseSchema,
				"openai: unexpected embedding index %d for batch size %d", idx, len(texts))
		}
		vecs[idx] = float64sToFloat32s(item.Embedding)
	}
	if err := checkDimensions(compact(vecs), len(texts), o.dim); err != nil {
		return nil, err
	}
	return vecs, nil
}

// compact drops nil slots so a missing index is reported as a count mismatch.
func compact(vecs [][]float32) [][]float32 {
	out := vecs[:0:0]
	for _, v := range vecs {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}
