// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package google generates through the Gemini API.
package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/sigil-dev/delm/internal/provider"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

const name = "google"

// Config holds Google provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional
}

// Provider implements provider.Provider.
type Provider struct {
	client *genai.Client
	health *provider.HealthTracker
}

// New creates a Gemini provider. The API key is required.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, delmerr.New(delmerr.CodeProviderRequestInvalid, "google: missing api_key in config", delmerr.FieldProvider(name))
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
		return nil, delmerr.Wrapf(err, delmerr.CodeProviderUpstreamFailure, "google: creating client")
	}

	return &Provider{client: client, health: provider.NewDefaultHealthTracker()}, nil
}

func (p *Provider) Name() string { return name }

func (p *Provider) Available(context.Context) bool { return p.health.IsHealthy() }

func (p *Provider) Status(context.Context) (provider.ProviderStatus, error) {
	return p.health.Status(name), nil
}

func (p *Provider) HealthMetrics() provider.HealthMetrics { return p.health.HealthMetrics() }

func (p *Provider) Close() error { return nil }

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return nil, delmerr.New(delmerr.CodeProviderRequestInvalid, "google: request has no user or assistant messages")
	}

	ch := make(chan provider.ChatEvent, 16)
	go func() {
		defer close(ch)
		p.stream(ctx, req.Model, contents, buildConfig(req), ch)
	}()
	return ch, nil
}

// buildConfig carries sampling options and the system prompt, which Gemini
// takes as SystemInstruction rather than a message.
func buildConfig(req provider.ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Options.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Options.Temperature)
	}
	if req.Options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	return cfg
}

// convertMessages maps user and assistant turns to genai contents and drops
// system messages.
func convertMessages(msgs []provider.Message) ([]*genai.Content, error) {
	var out []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case provider.MessageRoleUser:
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleUser))
		case provider.MessageRoleAssistant:
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleModel))
		case provider.MessageRoleSystem:
		default:
			return nil, delmerr.Errorf(delmerr.CodeProviderRequestInvalid, "google: unsupported message role %q", m.Role)
		}
	}
	return out, nil
}

func (p *Provider) stream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig, ch chan<- provider.ChatEvent) {
	var usage *provider.Usage
	for res, err := range p.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			if ctx.Err() == nil {
				p.health.RecordFailure()
			}
			provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()})
			return
		}

		for _, cand := range res.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				// Thought parts are the model's reasoning, not output.
				if part.Text == "" || part.Thought {
					continue
				}
				if !provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: part.Text}) {
					return
				}
			}
		}

		// Usage is cumulative on every chunk; the last one wins.
		if res.UsageMetadata != nil {
			usage = &provider.Usage{
				InputTokens:  int(res.UsageMetadata.PromptTokenCount),
				OutputTokens: int(res.UsageMetadata.CandidatesTokenCount),
			}
		}
	}

	p.health.RecordSuccess()
	if usage != nil && !provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeUsage, Usage: usage}) {
		return
	}
	provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeDone})
}
