// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider_test

import (
	"context"

	"github.com/sigil-dev/delm/internal/provider"
)

// mockProvider is a reusable provider.Provider for tests. Chat replays
// events, or calls chatFunc when set.
type mockProvider struct {
	name      string
	available bool
	events    []provider.ChatEvent
	chatFunc  func(context.Context, provider.ChatRequest) (<-chan provider.ChatEvent, error)

	lastRequest provider.ChatRequest
}

func newMockProvider(name string, available bool) *mockProvider {
	return &mockProvider{
		name:      name,
		available: available,
		events: []provider.ChatEvent{
			{Type: provider.EventTypeTextDelta, Text: "hel"},
			{Type: provider.EventTypeTextDelta, Text: "lo"},
			{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 5}},
			{Type: provider.EventTypeDone},
		},
	}
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Available(context.Context) bool { return m.available }

func (m *mockProvider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	m.lastRequest = req
	if m.chatFunc != nil {
		return m.chatFunc(ctx, req)
	}
	ch := make(chan provider.ChatEvent, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (m *mockProvider) Status(context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Available: m.available,
		Provider:  m.name,
		Message:   "ok",
	}, nil
}

func (m *mockProvider) Close() error { return nil }
