// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package anthropic generates through the Anthropic Messages API.
package anthropic

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sigil-dev/delm/internal/provider"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

const name = "anthropic"

// The Messages API requires max_tokens; this applies when the request
// leaves it unset. UI components rarely need more.
const defaultMaxTokens = 4096

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional
}

// Provider implements provider.Provider.
type Provider struct {
	client anthropicsdk.Client
	health *provider.HealthTracker
}

// New creates an Anthropic provider. The API key is required.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, delmerr.New(delmerr.CodeProviderRequestInvalid, "anthropic: missing api_key in config", delmerr.FieldProvider(name))
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client: anthropicsdk.NewClient(opts...),
		health: provider.NewDefaultHealthTracker(),
	}, nil
}

func (p *Provider) Name() string { return name }

func (p *Provider) Available(context.Context) bool { return p.health.IsHealthy() }

func (p *Provider) Status(context.Context) (provider.ProviderStatus, error) {
	return p.health.Status(name), nil
}

func (p *Provider) HealthMetrics() provider.HealthMetrics { return p.health.HealthMetrics() }

func (p *Provider) Close() error { return nil }

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	ch := make(chan provider.ChatEvent, 16)
	go func() {
		defer close(ch)
		p.stream(ctx, params, ch)
	}()
	return ch, nil
}

// buildParams maps a request onto MessageNewParams. The system prompt goes
// in the top-level system field; system-role messages are dropped.
func buildParams(req provider.ChatRequest) (anthropicsdk.MessageNewParams, error) {
	var msgs []anthropicsdk.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case provider.MessageRoleUser:
			msgs = append(msgs, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		case provider.MessageRoleAssistant:
			msgs = append(msgs, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		case provider.MessageRoleSystem:
		default:
			return anthropicsdk.MessageNewParams{}, delmerr.Errorf(delmerr.CodeProviderRequestInvalid,
				"anthropic: unsupported message role %q", m.Role)
		}
	}
	if len(msgs) == 0 {
		return anthropicsdk.MessageNewParams{}, delmerr.New(delmerr.CodeProviderRequestInvalid,
			"anthropic: request has no user or assistant messages")
	}

	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Options.Temperature != nil {
		params.Temperature = anthropicsdk.Float(float64(*req.Options.Temperature))
	}
	return params, nil
}

func (p *Provider) stream(ctx context.Context, params anthropicsdk.MessageNewParams, ch chan<- provider.ChatEvent) {
	stream := p.client.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	var usage provider.Usage
	for stream.Next() {
		ev := stream.Current()
		switch ev.Type {
		case "message_start":
			usage.InputTokens = int(ev.Message.Usage.InputTokens)
		case "content_block_delta":
			if ev.Delta.Type != "text_delta" {
				continue
			}
			if !provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: ev.Delta.Text}) {
				return
			}
		case "message_delta":
			usage.OutputTokens = int(ev.Usage.OutputTokens)
		case "message_stop":
			p.health.RecordSuccess()
			if provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &usage}) {
				provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeDone})
			}
			return
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() == nil {
			p.health.RecordFailure()
		}
		provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()})
		return
	}

	// The stream closed without message_stop; the text so far is truncated.
	p.health.RecordFailure()
	provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeError, Error: "anthropic: stream ended before message_stop"})
}
