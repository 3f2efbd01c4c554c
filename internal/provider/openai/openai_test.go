// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package openai_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/delm/internal/provider"
	"github.com/sigil-dev/delm/internal/provider/openai"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

var _ provider.Provider = (*openai.Provider)(nil)

func TestOpenAIProvider_Name(t *testing.T) {
	assert.Equal(t, "openai", mustNewProvider(t, "").Name())
}

func TestOpenAIProvider_MissingAPIKey(t *testing.T) {
	_, err := openai.New(openai.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
	assert.True(t, delmerr.IsInvalidInput(err))
}

func TestBuildParams(t *testing.T) {
	temp := float32(0.7)
	params, err := openai.BuildParams(provider.ChatRequest{
		Model:        "gpt-4.1",
		SystemPrompt: "system text",
		Messages:     []provider.Message{{Role: provider.MessageRoleUser, Content: "hi"}},
		Options:      provider.ChatOptions{MaxTokens: 256, Temperature: &temp},
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4.1", string(params.Model))
	assert.Len(t, params.Messages, 2, "system prompt is prepended")
	assert.Equal(t, int64(256), params.MaxCompletionTokens.Value)
	assert.InDelta(t, 0.7, params.Temperature.Value, 1e-6)
}

func TestBuildParams_UnsupportedRole(t *testing.T) {
	_, err := openai.BuildParams(provider.ChatRequest{
		Messages: []provider.Message{{Role: "tool", Content: "x"}},
	})
	require.Error(t, err)
	assert.True(t, delmerr.HasCode(err, delmerr.CodeProviderRequestInvalid))
}

func TestOpenAIProvider_ChatStreamsText(t *testing.T) {
	chunk := func(content string) string {
		return fmt.Sprintf(`data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4.1","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`+"\n\n", content)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), "path %s", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w,
			chunk("const "),
			chunk("x = 1"),
			`data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4.1","choices":[],"usage":{"prompt_tokens":9,"completion_tokens":4,"total_tokens":13}}`+"\n\n",
			"data: [DONE]\n\n",
		)
	}))
	defer srv.Close()

	p := mustNewProvider(t, srv.URL)
	events, err := p.Chat(context.Background(), provider.ChatRequest{
		Model:    "gpt-4.1",
		Messages: []provider.Message{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	var (
		text  strings.Builder
		usage *provider.Usage
		done  bool
	)
	for ev := range events {
		switch ev.Type {
		case provider.EventTypeTextDelta:
			text.WriteString(ev.Text)
		case provider.EventTypeUsage:
			usage = ev.Usage
		case provider.EventTypeDone:
			done = true
		case provider.EventTypeError:
			t.Fatalf("unexpected error event: %s", ev.Error)
		}
	}

	assert.Equal(t, "const x = 1", text.String())
	assert.True(t, done)
	require.NotNil(t, usage)
	assert.Equal(t, 9, usage.InputTokens)
	assert.Equal(t, 4, usage.OutputTokens)
	assert.True(t, p.Available(context.Background()))
}

func TestOpenAIProvider_ServerErrorMarksUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	p := mustNewProvider(t, srv.URL)
	events, err := p.Chat(context.Background(), provider.ChatRequest{
		Model:    "gpt-4.1",
		Messages: []provider.Message{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	var errEvents int
	for ev := range events {
		if ev.Type == provider.EventTypeError {
			errEvents++
		}
	}
	assert.Equal(t, 1, errEvents)
	assert.False(t, p.Available(context.Background()))
	assert.Equal(t, 1, p.HealthMetrics().ConsecutiveFailures)
}

func mustNewProvider(t *testing.T, baseURL string) *openai.Provider {
	t.Helper()
	p, err := openai.New(openai.Config{APIKey: "test-key-not-real", BaseURL: baseURL})
	require.NoError(t, err)
	return p
}
