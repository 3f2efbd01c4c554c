// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider

import (
	"context"
	"log/slog"
	"strings"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// GeneratorConfig configures a TextGenerator.
type GeneratorConfig struct {
	Model       string   // "provider/model"; empty uses the registry default
	MaxTokens   int      // 0 leaves the provider default
	Temperature *float32 // nil leaves the provider default
}

// TextGenerator turns a routed streaming chat into a single blocking call
// returning the full response text.
type TextGenerator struct {
	registry *Registry
	cfg      GeneratorConfig
}

// NewTextGenerator creates a generator over registry.
func NewTextGenerator(registry *Registry, cfg GeneratorConfig) *TextGenerator {
	return &TextGenerator{registry: registry, cfg: cfg}
}

// Generate sends one user message with systemPrompt and drains the event
// stream. When a provider fails, the next one in the failover chain is tried
// with the same request; partial text from the failed attempt is discarded.
// The error of the last attempt is returned once no candidate is left.
func (g *TextGenerator) Generate(ctx context.Context, userPrompt, systemPrompt string) (string, error) {
	req := ChatRequest{
		Messages:     []Message{{Role: MessageRoleUser, Content: userPrompt}},
		SystemPrompt: systemPrompt,
		Options: ChatOptions{
			Temperature: g.cfg.Temperature,
			MaxTokens:   g.cfg.MaxTokens,
		},
	}

	var (
		tried   []string
		lastErr error
	)
	for {
		p, model, err := g.registry.Route(ctx, g.cfg.Model, tried...)
		if err != nil {
			if lastErr != nil {
				return "", lastErr
			}
			return "", err
		}

		req.Model = model
		text, err := g.attempt(ctx, p, req)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		slog.Warn("generation attempt failed", "provider", p.Name(), "model", model, "error", err)
		tried = append(tried, p.Name())
		lastErr = err
	}
}

// attempt runs one chat against p and collects the text.
func (g *TextGenerator) attempt(ctx context.Context, p Provider, req ChatRequest) (string, error) {
	fields := []delmerr.Attr{delmerr.FieldProvider(p.Name()), delmerr.FieldModel(req.Model)}

	events, err := p.Chat(ctx, req)
	if err != nil {
		return "", delmerr.Wrap(err, delmerr.CodeProviderUpstreamFailure, "starting chat", fields...)
	}

	var (
		out   strings.Builder
		usage Usage
	)
	for {
		select {
		case <-ctx.Done():
			return "", delmerr.Wrap(ctx.Err(), delmerr.CodeProviderUpstreamFailure, "waiting for chat response", fields...)
		case ev, ok := <-events:
			if !ok {
				return finish(p.Name(), req.Model, out.String(), usage), nil
			}
			switch ev.Type {
			case EventTypeTextDelta:
				out.WriteString(ev.Text)
			case EventTypeUsage:
				if ev.Usage != nil {
					usage = *ev.Usage
				}
			case EventTypeError:
				return "", delmerr.New(delmerr.CodeProviderUpstreamFailure, ev.Error, fields...)
			case EventTypeDone:
				return finish(p.Name(), req.Model, out.String(), usage), nil
			}
		}
	}
}

func finish(providerName, model, text string, usage Usage) string {
	slog.Debug("generation complete",
		"provider", providerName,
		"model", model,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"chars", len(text),
	)
	return text
}
