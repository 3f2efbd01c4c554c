// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/delm/internal/provider"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

func TestValidateKey_Anthropic_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	err := provider.ValidateKey(context.Background(), srv.Client(), provider.ProviderAnthropic, "test-api-key", srv.URL+"/v1/")
	require.NoError(t, err)
}

func TestValidateKey_SendsProviderAuthHeader(t *testing.T) {
	tests := []struct {
		provider provider.ProviderName
		header   string
		want     string
	}{
		{provider: provider.ProviderOpenAI, header: "Authorization", want: "Bearer k"},
		{provider: provider.ProviderGoogle, header: "x-goog-api-key", want: "k"},
	}
	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.want, r.Header.Get(tt.header))
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			require.NoError(t, provider.ValidateKey(context.Background(), srv.Client(), tt.provider, "k", srv.URL))
		})
	}
}

func TestValidateKey_InvalidKey_ReturnsError(t *testing.T) {
	tests := []struct {
		name       string
		provider   provider.ProviderName
		statusCode int
		wantCode   delmerr.Code
	}{
		{name: "anthropic 401", provider: provider.ProviderAnthropic, statusCode: http.StatusUnauthorized, wantCode: delmerr.CodeProviderKeyInvalid},
		{name: "openai 403", provider: provider.ProviderOpenAI, statusCode: http.StatusForbidden, wantCode: delmerr.CodeProviderKeyInvalid},
		{name: "google 401", provider: provider.ProviderGoogle, statusCode: http.StatusUnauthorized, wantCode: delmerr.CodeProviderKeyInvalid},
		{name: "openai 500", provider: provider.ProviderOpenAI, statusCode: http.StatusInternalServerError, wantCode: delmerr.CodeProviderKeyCheckFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer srv.Close()

			err := provider.ValidateKey(context.Background(), srv.Client(), tt.provider, "bad-key", srv.URL)
			require.Error(t, err)
			assert.True(t, delmerr.HasCode(err, tt.wantCode),
				"expected %s, got %s", tt.wantCode, delmerr.CodeOf(err))
		})
	}
}

func TestValidateKey_UnknownProvider(t *testing.T) {
	err := provider.ValidateKey(context.Background(), http.DefaultClient, "unknown", "key", "")
	require.Error(t, err)
	assert.True(t, delmerr.HasCode(err, delmerr.CodeProviderKeyInvalid))
}
