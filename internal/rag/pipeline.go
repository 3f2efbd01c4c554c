// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package rag ties the embedding service and the pattern index together:
// retrieval of reference patterns, context assembly, and generation through
// an external text generator.
package rag

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/sigil-dev/delm/internal/embedding"
	"github.com/sigil-dev/delm/internal/store"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// DefaultTopK is used when Config.TopK is unset.
const DefaultTopK = 5

// Generator produces text from a user prompt and a system instruction.
// It may block for as long as the caller's context allows.
type Generator interface {
	Generate(ctx context.Context, userPrompt, systemPrompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, userPrompt, systemPrompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, userPrompt, systemPrompt string) (string, error) {
	return f(ctx, userPrompt, systemPrompt)
}

// ContentGuard screens pattern content before it is stored and generator
// output before it is returned. Both methods return the text to use.
type ContentGuard interface {
	CheckPattern(ctx context.Context, id, content string) (string, error)
	CheckOutput(ctx context.Context, output string) (string, error)
}

// Deps are the collaborators a Pipeline is built from. Generator may be nil
// for retrieval-only use; Generate then fails with rag.request.invalid.
// Guard is optional.
type Deps struct {
	Embedder  embedding.Service
	Index     store.Index
	Generator Generator
	Guard     ContentGuard
}

// Config tunes retrieval.
type Config struct {
	TopK int

	// SimilarityThreshold drops results whose cosine similarity is below it.
	// Zero disables the cutoff.
	SimilarityThreshold float64
}

// Pipeline is safe for concurrent use when its Deps are.
type Pipeline struct {
	embedder  embedding.Service
	index     store.Index
	generator Generator
	guard     ContentGuard
	topK      int
	threshold float64
}

// New validates deps and config. The embedder and index must agree on the
// vector dimension.
func New(deps Deps, cfg Config) (*Pipeline, error) {
	if deps.Embedder == nil || deps.Index == nil {
		return nil, delmerr.New(delmerr.CodeRAGRequestInvalid, "rag: embedder and index are required")
	}
	if deps.Embedder.Dimension() != deps.Index.Dimension() {
		return nil, delmerr.New(delmerr.CodeStoreOpenSchemaMismatch,
			"rag: embedding dimension does not match index dimension",
			delmerr.FieldModel(deps.Embedder.Model()),
			delmerr.FieldCollection(deps.Index.Collection()),
			delmerr.Field("embedding_dimension", deps.Embedder.Dimension()),
			delmerr.Field("index_dimension", deps.Index.Dimension()),
		)
	}
	if cfg.TopK < 0 {
		return nil, delmerr.Errorf(delmerr.CodeRAGRequestInvalid, "rag: top_k must not be negative, got %d", cfg.TopK)
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold >= 1 {
		return nil, delmerr.Errorf(delmerr.CodeRAGRequestInvalid,
			"rag: similarity_threshold must be in [0, 1), got %g", cfg.SimilarityThreshold)
	}

	topK := cfg.TopK
	if topK == 0 {
		topK = DefaultTopK
	}
	return &Pipeline{
		embedder:  deps.Embedder,
		index:     deps.Index,
		generator: deps.Generator,
		guard:     deps.Guard,
		topK:      topK,
		threshold: cfg.SimilarityThreshold,
	}, nil
}

type retrieveOptions struct {
	category string
	topK     int
	topKSet  bool
}

// RetrieveOption narrows a single retrieval.
type RetrieveOption func(*retrieveOptions)

// WithCategory restricts results to patterns with exactly this category.
// An empty category means no restriction.
func WithCategory(category string) RetrieveOption {
	return func(o *retrieveOptions) { o.category = category }
}

// WithTopK overrides the configured result count. Zero yields no results.
func WithTopK(k int) RetrieveOption {
	return func(o *retrieveOptions) {
		o.topK = k
		o.topKSet = true
	}
}

// Retrieve embeds query and returns the nearest patterns in index order.
// An empty or fully filtered index yields an empty slice, not an error.
func (p *Pipeline) Retrieve(ctx context.Context, query string, opts ...RetrieveOption) ([]store.Result, error) {
	o := retrieveOptions{topK: p.topK}
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(query) == "" {
		return nil, delmerr.New(delmerr.CodeRAGRequestInvalid, "rag: query must not be empty")
	}
	if o.topKSet && o.topK < 0 {
		return nil, delmerr.Errorf(delmerr.CodeRAGRequestInvalid, "rag: top_k must not be negative, got %d", o.topK)
	}

	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	q := store.Query{
		Vector: vec,
		Filter: store.CategoryFilter(o.category),
		TopK:   o.topK,
	}
	if p.threshold > 0 {
		q.MaxDistance = 1 - p.threshold
	}

	results, err := p.index.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	slog.Debug("retrieved patterns",
		"collection", p.index.Collection(),
		"category", o.category,
		"top_k", o.topK,
		"results", len(results),
	)
	return results, nil
}

// GenerateResult is the generator output plus the patterns behind it.
type GenerateResult struct {
	Output       string   `json:"output"`
	PatternsUsed int      `json:"patterns_used"`
	PatternIDs   []string `json:"pattern_ids"`
}

type generateOptions struct {
	onRetrieved func(GenerateResult)
}

// GenerateOption adjusts a single Generate call.
type GenerateOption func(*generateOptions)

// OnRetrieved registers fn to receive the provenance once retrieval finishes
// and before the generator is called. Output is empty at that point.
func OnRetrieved(fn func(GenerateResult)) GenerateOption {
	return func(o *generateOptions) { o.onRetrieved = fn }
}

// Generate retrieves context for prompt and asks the generator for output in
// the given mode. If only the generator fails, the result is returned with
// its provenance alongside a rag.generate.upstream.failure error.
func (p *Pipeline) Generate(ctx context.Context, prompt string, mode Mode, category string, opts ...GenerateOption) (*GenerateResult, error) {
	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !mode.Valid() {
		return nil, delmerr.New(delmerr.CodeRAGRequestInvalid, "rag: unknown generation mode", delmerr.Field("mode", string(mode)))
	}
	if p.generator == nil {
		return nil, delmerr.New(delmerr.CodeRAGRequestInvalid, "rag: no generator configured")
	}

	results, err := p.Retrieve(ctx, prompt, WithCategory(category))
	if err != nil {
		return nil, err
	}

	res := &GenerateResult{
		PatternsUsed: len(results),
		PatternIDs:   make([]string, 0, len(results)),
	}
	for _, r := range results {
		res.PatternIDs = append(res.PatternIDs, r.ID)
	}
	if o.onRetrieved != nil {
		o.onRetrieved(*res)
	}

	user, system := mode.Render(prompt, BuildContext(results))
	out, err := p.generator.Generate(ctx, user, system)
	if err != nil {
		slog.Warn("generation failed", "mode", mode, "patterns_used", res.PatternsUsed, "error", err)
		return res, delmerr.Wrap(err, delmerr.CodeRAGGenerateUpstreamFailure, "rag: generating output",
			delmerr.Field("mode", string(mode)),
			delmerr.Field("pattern_ids", res.PatternIDs),
		)
	}
	if p.guard != nil {
		if out, err = p.guard.CheckOutput(ctx, out); err != nil {
			return res, err
		}
	}
	res.Output = out
	return res, nil
}

// PatternInput is a pattern before embedding.
type PatternInput struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Name     string   `json:"name"`
	Tags     []string `json:"tags,omitempty"`
}

func (in PatternInput) pattern(vec []float32) store.Pattern {
	return store.Pattern{
		ID:      in.ID,
		Content: in.Content,
		Metadata: store.Metadata{
			Category: in.Category,
			Name:     in.Name,
			Tags:     in.Tags,
		},
		Vector: vec,
	}
}

func (in PatternInput) validate() error {
	if in.ID == "" {
		return delmerr.New(delmerr.CodeStorePatternInsertInvalidInput, "pattern id must not be empty")
	}
	if strings.TrimSpace(in.Content) == "" {
		return delmerr.New(delmerr.CodeStorePatternInsertInvalidInput, "pattern content must not be empty", delmerr.FieldPatternID(in.ID))
	}
	return nil
}

// AddPattern embeds the content and inserts the pattern.
func (p *Pipeline) AddPattern(ctx context.Context, in PatternInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	in, err := p.screen(ctx, in)
	if err != nil {
		return err
	}

	vec, err := p.embedder.Embed(ctx, in.Content)
	if err != nil {
		return delmerr.With(err, delmerr.FieldPatternID(in.ID))
	}

	if err := p.index.Insert(ctx, in.pattern(vec)); err != nil {
		return err
	}

	slog.Info("pattern added", "pattern_id", in.ID, "name", in.Name, "category", in.Category)
	return nil
}

// AddPatterns ingests parallel slices in one embedding pass and one atomic
// insert. tags may be nil; otherwise every slice must have the same length.
func (p *Pipeline) AddPatterns(ctx context.Context, ids, contents, categories, names []string, tags [][]string) error {
	n := len(ids)
	if len(contents) != n || len(categories) != n || len(names) != n || (tags != nil && len(tags) != n) {
		return delmerr.New(delmerr.CodeStorePatternInsertInvalidInput, "parallel pattern slices differ in length",
			delmerr.Field("ids", n),
			delmerr.Field("contents", len(contents)),
			delmerr.Field("categories", len(categories)),
			delmerr.Field("names", len(names)),
			delmerr.Field("tags", len(tags)),
		)
	}

	inputs := make([]PatternInput, n)
	for i := range ids {
		inputs[i] = PatternInput{ID: ids[i], Content: contents[i], Category: categories[i], Name: names[i]}
		if tags != nil {
			inputs[i].Tags = tags[i]
		}
	}
	return p.AddPatternInputs(ctx, inputs)
}

// AddPatternInputs is AddPatterns over a slice of inputs.
func (p *Pipeline) AddPatternInputs(ctx context.Context, inputs []PatternInput) error {
	if len(inputs) == 0 {
		return nil
	}

	inputs = slices.Clone(inputs)
	texts := make([]string, len(inputs))
	for i, in := range inputs {
		if err := in.validate(); err != nil {
			return delmerr.With(err, delmerr.Field("batch_index", i))
		}
		in, err := p.screen(ctx, in)
		if err != nil {
			return delmerr.With(err, delmerr.Field("batch_index", i))
		}
		inputs[i] = in
		texts[i] = in.Content
	}

	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(inputs) {
		return delmerr.Errorf(delmerr.CodeEmbeddingResponseSchema, "embedder returned %d vectors for %d inputs", len(vecs), len(inputs))
	}

	patterns := make([]store.Pattern, len(inputs))
	for i, in := range inputs {
		patterns[i] = in.pattern(vecs[i])
	}
	if err := p.index.InsertBatch(ctx, patterns); err != nil {
		return err
	}

	slog.Info("patterns added", "count", len(patterns), "collection", p.index.Collection())
	return nil
}

// screen passes the content through the guard, if any.
func (p *Pipeline) screen(ctx context.Context, in PatternInput) (PatternInput, error) {
	if p.guard == nil {
		return in, nil
	}
	content, err := p.guard.CheckPattern(ctx, in.ID, in.Content)
	if err != nil {
		return in, err
	}
	in.Content = content
	return in, nil
}

// Get returns a stored pattern. The bool is false when id is unknown.
func (p *Pipeline) Get(ctx context.Context, id string) (*store.Pattern, bool, error) {
	return p.index.Get(ctx, id)
}

// Stats describes the pipeline's index and embedding model.
type Stats struct {
	Count      int    `json:"count"`
	Collection string `json:"collection"`
	Model      string `json:"model"`
	Dimension  int    `json:"dimension"`
}

func (p *Pipeline) Stats(ctx context.Context) (Stats, error) {
	n, err := p.index.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Count:      n,
		Collection: p.index.Collection(),
		Model:      p.embedder.Model(),
		Dimension:  p.index.Dimension(),
	}, nil
}

// Clear removes every pattern from the index.
func (p *Pipeline) Clear(ctx context.Context) error {
	if err := p.index.Clear(ctx); err != nil {
		return err
	}
	slog.Info("collection cleared", "collection", p.index.Collection())
	return nil
}
