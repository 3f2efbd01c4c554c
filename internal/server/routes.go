// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/sigil-dev/delm/internal/provider"
	"github.com/sigil-dev/delm/internal/rag"
	"github.com/sigil-dev/delm/internal/store"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "generate",
		Method:      http.MethodPost,
		Path:        "/api/v1/generate",
		Summary:     "Generate code from a prompt and retrieved patterns",
		Description: "Retrieves the closest design patterns and asks the configured model to generate code. " +
			"A model failure returns 502 with the retrieved pattern ids still in the body.",
		Tags: []string{"generation"},
	}, s.handleGenerate)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-patterns",
		Method:      http.MethodPost,
		Path:        "/api/v1/search",
		Summary:     "Search patterns by semantic similarity",
		Tags:        []string{"patterns"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID:   "add-pattern",
		Method:        http.MethodPost,
		Path:          "/api/v1/patterns",
		Summary:       "Add a design pattern",
		Tags:          []string{"patterns"},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddPattern)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-pattern",
		Method:      http.MethodGet,
		Path:        "/api/v1/patterns/{id}",
		Summary:     "Get a pattern by id",
		Tags:        []string{"patterns"},
	}, s.handleGetPattern)

	huma.Register(s.api, huma.Operation{
		OperationID:   "clear-patterns",
		Method:        http.MethodDelete,
		Path:          "/api/v1/patterns",
		Summary:       "Remove every pattern",
		Tags:          []string{"patterns"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleClear)

	huma.Register(s.api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Index statistics",
		Tags:        []string{"system"},
	}, s.handleStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-providers",
		Method:      http.MethodGet,
		Path:        "/api/v1/providers",
		Summary:     "Generator provider health",
		Tags:        []string{"system"},
	}, s.handleListProviders)
}

// --- Request/Response types for huma ---

type generateInput struct {
	Body struct {
		Prompt   string `json:"prompt" minLength:"1" doc:"What to build"`
		Mode     string `json:"mode,omitempty" doc:"component (default), styles, layout, or generic"`
		Category string `json:"category,omitempty" doc:"Only retrieve patterns in this category"`
	}
}

// GenerateBody is the generation result. When the model fails (502) or the
// output is blocked (422), Code and Error are set and PatternsUsed/PatternIDs
// still describe what was retrieved.
type GenerateBody struct {
	Output       string   `json:"output" doc:"Generated text"`
	PatternsUsed int      `json:"patterns_used" doc:"Number of patterns placed in the prompt"`
	PatternIDs   []string `json:"pattern_ids" doc:"Ids of the retrieved patterns, closest first"`
	Code         string   `json:"code,omitempty" doc:"Error code of the generation failure"`
	Error        string   `json:"error,omitempty" doc:"Generation failure, if any"`
}

type generateOutput struct {
	Status int
	Body   GenerateBody
}

type searchInput struct {
	Body struct {
		Query    string `json:"query" minLength:"1" doc:"Natural-language query"`
		Category string `json:"category,omitempty" doc:"Only return patterns in this category"`
		TopK     int    `json:"top_k,omitempty" minimum:"0" maximum:"100" doc:"Maximum results; 0 uses the server default"`
	}
}

// SearchResult is one match. Similarity is 1 - Distance.
type SearchResult struct {
	store.Result
	Similarity float64 `json:"similarity" doc:"Cosine similarity to the query"`
}

type searchOutput struct {
	Body struct {
		Results []SearchResult `json:"results"`
	}
}

type addPatternInput struct {
	Body struct {
		ID       string   `json:"id,omitempty" doc:"Pattern id; generated when empty"`
		Content  string   `json:"content" minLength:"1" doc:"Reference source or prose"`
		Category string   `json:"category,omitempty" doc:"Category used for filtering"`
		Name     string   `json:"name,omitempty" doc:"Display name"`
		Tags     []string `json:"tags,omitempty" doc:"Free-form labels"`
	}
}

type addPatternOutput struct {
	Body struct {
		ID string `json:"id" doc:"Stored pattern id"`
	}
}

type patternIDInput struct {
	ID string `path:"id"`
}

// PatternBody is the REST representation of a stored pattern.
type PatternBody struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata store.Metadata `json:"metadata"`
}

type getPatternOutput struct {
	Body PatternBody
}

type statsOutput struct {
	Body rag.Stats
}

type listProvidersOutput struct {
	Body struct {
		Providers []provider.ProviderStatus `json:"providers"`
	}
}

// --- Handlers ---

func (s *Server) handleGenerate(ctx context.Context, input *generateInput) (*generateOutput, error) {
	mode, err := rag.ParseMode(input.Body.Mode)
	if err != nil {
		return nil, toHTTPError("parsing mode", err)
	}

	res, err := s.deps.Pipeline.Generate(ctx, input.Body.Prompt, mode, input.Body.Category)
	if err != nil && (res == nil || !(delmerr.IsUpstreamFailure(err) || delmerr.IsBlocked(err))) {
		return nil, toHTTPError("generating", err)
	}

	out := &generateOutput{Status: http.StatusOK}
	out.Body.Output = res.Output
	out.Body.PatternsUsed = res.PatternsUsed
	out.Body.PatternIDs = res.PatternIDs
	if out.Body.PatternIDs == nil {
		out.Body.PatternIDs = []string{}
	}
	if err != nil {
		out.Status = delmerr.HTTPStatus(err)
		out.Body.Code = string(delmerr.CodeOf(err))
		out.Body.Error = generateFailureMessage(err)
		slog.Warn("generation failed", "mode", mode, "pattern_ids", res.PatternIDs, "code", out.Body.Code, "error", err)
	}
	return out, nil
}

// generateFailureMessage is the client-facing text for a generation that
// retrieved context but produced no output. Provider detail stays in the log.
func generateFailureMessage(err error) string {
	if delmerr.IsBlocked(err) {
		return "generating: output blocked by content scanner"
	}
	return "generating: upstream model failed"
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	opts := []rag.RetrieveOption{rag.WithCategory(input.Body.Category)}
	if input.Body.TopK > 0 {
		opts = append(opts, rag.WithTopK(input.Body.TopK))
	}

	results, err := s.deps.Pipeline.Retrieve(ctx, input.Body.Query, opts...)
	if err != nil {
		return nil, toHTTPError("searching", err)
	}

	out := &searchOutput{}
	out.Body.Results = make([]SearchResult, len(results))
	for i, r := range results {
		out.Body.Results[i] = SearchResult{Result: r, Similarity: 1 - r.Distance}
	}
	return out, nil
}

func (s *Server) handleAddPattern(ctx context.Context, input *addPatternInput) (*addPatternOutput, error) {
	id := input.Body.ID
	if id == "" {
		id = uuid.NewString()
	}

	err := s.deps.Pipeline.AddPattern(ctx, rag.PatternInput{
		ID:       id,
		Content:  input.Body.Content,
		Category: input.Body.Category,
		Name:     input.Body.Name,
		Tags:     input.Body.Tags,
	})
	if err != nil {
		return nil, toHTTPError("adding pattern", err)
	}

	out := &addPatternOutput{}
	out.Body.ID = id
	return out, nil
}

func (s *Server) handleGetPattern(ctx context.Context, input *patternIDInput) (*getPatternOutput, error) {
	p, ok, err := s.deps.Pipeline.Get(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError("getting pattern", err)
	}
	if !ok {
		return nil, huma.Error404NotFound("pattern " + input.ID + " not found")
	}
	return &getPatternOutput{Body: PatternBody{ID: p.ID, Content: p.Content, Metadata: p.Metadata}}, nil
}

func (s *Server) handleClear(ctx context.Context, _ *struct{}) (*struct{}, error) {
	if err := s.deps.Pipeline.Clear(ctx); err != nil {
		return nil, toHTTPError("clearing patterns", err)
	}
	return nil, nil
}

func (s *Server) handleStats(ctx context.Context, _ *struct{}) (*statsOutput, error) {
	st, err := s.deps.Pipeline.Stats(ctx)
	if err != nil {
		return nil, toHTTPError("reading stats", err)
	}
	return &statsOutput{Body: st}, nil
}

func (s *Server) handleListProviders(ctx context.Context, _ *struct{}) (*listProvidersOutput, error) {
	out := &listProvidersOutput{}
	out.Body.Providers = []provider.ProviderStatus{}
	if s.deps.Providers != nil {
		out.Body.Providers = s.deps.Providers.Statuses(ctx)
	}
	return out, nil
}

// toHTTPError maps a coded error to a huma status error. Client errors keep
// their message; server errors are logged and the detail is withheld.
func toHTTPError(op string, err error) error {
	status := delmerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "op", op, "code", delmerr.CodeOf(err), "error", err)
		if status == http.StatusBadGateway {
			return huma.NewError(status, op+": upstream model failed")
		}
		return huma.NewError(status, op+": internal error")
	}
	return huma.NewError(status, err.Error())
}
