// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider

import (
	"context"
	"io"
	"net/http"
	"strings"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// ProviderName identifies a supported LLM provider for key validation.
type ProviderName string

const (
	ProviderAnthropic ProviderName = "anthropic"
	ProviderOpenAI    ProviderName = "openai"
	ProviderGoogle    ProviderName = "google"
)

var defaultModelsURL = map[ProviderName]string{
	ProviderAnthropic: "https://api.anthropic.com/v1/models",
	ProviderOpenAI:    "https://api.openai.com/v1/models",
	ProviderGoogle:    "https://generativelanguage.googleapis.com/v1/models",
}

// ValidateKey makes a lightweight call to the provider's models endpoint to
// confirm the API key is accepted. A non-empty endpoint replaces the
// provider's base URL; "/models" is appended to it.
func ValidateKey(ctx context.Context, client *http.Client, name ProviderName, key, endpoint string) error {
	url, ok := defaultModelsURL[name]
	if !ok {
		return delmerr.Errorf(delmerr.CodeProviderKeyInvalid, "unknown provider: %s", name)
	}
	if endpoint != "" {
		url = strings.TrimSuffix(endpoint, "/") + "/models"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return delmerr.Errorf(delmerr.CodeProviderKeyCheckFailed, "building validation request: %w", err)
	}
	switch name {
	case ProviderAnthropic:
		req.Header.Set("x-api-key", key)
		req.Header.Set("anthropic-version", "2023-06-01")
	case ProviderOpenAI:
		req.Header.Set("Authorization", "Bearer "+key)
	case ProviderGoogle:
		req.Header.Set("x-goog-api-key", key)
	}

	resp, err := client.Do(req)
	if err != nil {
		return delmerr.Errorf(delmerr.CodeProviderKeyCheckFailed, "validating %s key: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return delmerr.Errorf(delmerr.CodeProviderKeyInvalid, "invalid %s API key (HTTP %d)", name, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return delmerr.Errorf(delmerr.CodeProviderKeyCheckFailed, "%s validation failed (HTTP %d)", name, resp.StatusCode)
	}
	return nil
}
