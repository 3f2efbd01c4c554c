// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/delm/internal/rag"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// SSEEventType names a server-sent event.
type SSEEventType string

const (
	// SSEEventContext carries the retrieved pattern ids before generation starts.
	SSEEventContext SSEEventType = "context"
	SSEEventOutput  SSEEventType = "output"
	SSEEventError   SSEEventType = "error"
	SSEEventDone    SSEEventType = "done"
)

// SSEEvent is a single server-sent event. Data is JSON.
type SSEEvent struct {
	Event SSEEventType    `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// GenerateStreamRequest is the body of the streaming generate endpoint.
type GenerateStreamRequest struct {
	Prompt   string `json:"prompt"`
	Mode     string `json:"mode,omitempty"`
	Category string `json:"category,omitempty"`
}

// ContextEvent is the data of a context event.
type ContextEvent struct {
	PatternsUsed int      `json:"patterns_used"`
	PatternIDs   []string `json:"pattern_ids"`
}

// OutputEvent is the data of an output event.
type OutputEvent struct {
	Output string `json:"output"`
}

// ErrorEvent is the data of an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// validateEventType rejects event names that would break SSE framing.
func validateEventType(t SSEEventType) bool {
	return !strings.ContainsAny(string(t), "\r\n")
}

func (s *Server) registerStreamRoute() {
	s.router.Post("/api/v1/generate/stream", s.handleGenerateStream)

	// The handler writes to the raw ResponseWriter, so huma only documents it.
	minPromptLen := 1
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "generate-stream",
		Method:      http.MethodPost,
		Path:        "/api/v1/generate/stream",
		Summary:     "Generate code and stream progress events",
		Description: "Emits a context event once patterns are retrieved, then output or error, then done. " +
			"Set Accept: text/event-stream for SSE, otherwise the events are returned as a JSON array.",
		Tags: []string{"generation"},
		RequestBody: &huma.RequestBody{
			Required: true,
			Content: map[string]*huma.MediaType{
				"application/json": {
					Schema: &huma.Schema{
						Type:     "object",
						Required: []string{"prompt"},
						Properties: map[string]*huma.Schema{
							"prompt": {
								Type:        "string",
								MinLength:   &minPromptLen,
								Description: "What to build",
							},
							"mode": {
								Type:        "string",
								Description: "component (default), styles, layout, or generic",
							},
							"category": {
								Type:        "string",
								Description: "Only retrieve patterns in this category",
							},
						},
					},
				},
			},
		},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Event stream (SSE or JSON depending on Accept header)",
				Content: map[string]*huma.MediaType{
					"text/event-stream": {
						Schema: &huma.Schema{
							Type:        "string",
							Description: "Server-sent event stream",
						},
					},
					"application/json": {
						Schema: &huma.Schema{
							Type: "object",
							Properties: map[string]*huma.Schema{
								"events": {
									Type:        "array",
									Description: "Collected events with their JSON data",
									Items:       &huma.Schema{Type: "object"},
								},
							},
						},
					},
				},
			},
			"400": {Description: "Malformed body or unknown mode"},
			"422": {Description: "Missing prompt"},
		},
	})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var req GenerateStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusUnprocessableEntity, "prompt is required")
		return
	}
	mode, err := rag.ParseMode(req.Mode)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	events := make(chan SSEEvent, 4)
	go s.streamGenerate(r.Context(), req, mode, events)

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		writeSSE(w, events)
		return
	}
	writeEventsJSON(w, events)
}

// streamGenerate runs one generation and reports it on events, which it
// closes when done.
func (s *Server) streamGenerate(ctx context.Context, req GenerateStreamRequest, mode rag.Mode, events chan<- SSEEvent) {
	defer close(events)

	send := func(t SSEEventType, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			slog.Error("encoding stream event", "event", t, "error", err)
			return
		}
		select {
		case events <- SSEEvent{Event: t, Data: data}:
		case <-ctx.Done():
		}
	}

	res, err := s.deps.Pipeline.Generate(ctx, req.Prompt, mode, req.Category,
		rag.OnRetrieved(func(r rag.GenerateResult) {
			ids := r.PatternIDs
			if ids == nil {
				ids = []string{}
			}
			send(SSEEventContext, ContextEvent{PatternsUsed: r.PatternsUsed, PatternIDs: ids})
		}),
	)
	if err != nil {
		send(SSEEventError, errorEvent("generating", err))
	} else {
		send(SSEEventOutput, OutputEvent{Output: res.Output})
	}
	send(SSEEventDone, struct{}{})
}

// errorEvent withholds detail for internal failures the same way
// toHTTPError does.
func errorEvent(op string, err error) ErrorEvent {
	ev := ErrorEvent{Code: string(delmerr.CodeOf(err)), Message: err.Error()}
	status := delmerr.HTTPStatus(err)
	switch {
	case status == http.StatusBadGateway:
		slog.Warn("streamed generation failed", "code", ev.Code, "error", err)
		ev.Message = op + ": upstream model failed"
	case status >= http.StatusInternalServerError:
		slog.Error("request failed", "op", op, "code", ev.Code, "error", err)
		ev.Message = op + ": internal error"
	}
	return ev
}

func writeSSE(w http.ResponseWriter, events <-chan SSEEvent) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)

	for ev := range events {
		if !validateEventType(ev.Event) {
			slog.Error("dropping stream event with invalid type", "event", ev.Event)
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, ev.Data); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeEventsJSON(w http.ResponseWriter, events <-chan SSEEvent) {
	collected := []SSEEvent{}
	for ev := range events {
		collected = append(collected, ev)
	}

	w.Header().Set("Content-Type", "application/json")
	resp := struct {
		Events []SSEEvent `json:"events"`
	}{Events: collected}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("writing stream response", "error", err)
	}
}
