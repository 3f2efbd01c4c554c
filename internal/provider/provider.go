// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package provider adapts hosted LLM APIs to a common streaming chat
// interface, routes "provider/model" references to them, and turns a routed
// stream into the single blocking call the generation pipeline needs.
package provider

import (
	"context"
)

// Provider is a hosted model API that generation can be routed to.
type Provider interface {
	Name() string
	// Available is false while the provider is cooling down after a failure.
	Available(ctx context.Context) bool
	// Chat starts a streaming completion. The returned channel is closed after
	// a Done or Error event, or when ctx ends.
	Chat(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
	Status(ctx context.Context) (ProviderStatus, error)
	Close() error
}

// ChatRequest represents a request to the LLM.
type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	Options      ChatOptions
}

// ChatOptions contains sampling settings.
type ChatOptions struct {
	Temperature *float32 // nil leaves the provider default
	MaxTokens   int      // 0 leaves the provider default
}

// Message represents a conversation message.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole defines the role of a message sender.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// ChatEvent is a streaming response event.
type ChatEvent struct {
	Type  EventType
	Text  string
	Usage *Usage
	Error string
}

// EventType defines the type of chat event.
type EventType string

const (
	EventTypeTextDelta EventType = "text_delta"
	EventTypeUsage     EventType = "usage"
	EventTypeDone      EventType = "done"
	EventTypeError     EventType = "error"
)

// Usage tracks token consumption for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ProviderStatus indicates provider health.
type ProviderStatus struct {
	Available bool           `json:"available"`
	Provider  string         `json:"provider"`
	Message   string         `json:"message"`
	Health    *HealthMetrics `json:"health,omitempty"`
}

// Emit sends ev on ch unless ctx ends first. It reports whether the event
// was delivered; adapters stop streaming once it returns false.
func Emit(ctx context.Context, ch chan<- ChatEvent, ev ChatEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
