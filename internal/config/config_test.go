// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sigil-dev/delm/internal/config"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv blanks vendor key variables so a developer's shell does not
// leak providers into the config under test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range config.KnownProviders {
		t.Setenv(strings.ToUpper(name)+"_API_KEY", "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "delm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	isolateEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "hash", cfg.Embeddings.Provider)
	assert.Equal(t, 384, cfg.Embeddings.Dimension)
	assert.Equal(t, "sqlite", cfg.VectorDB.Backend)
	assert.Equal(t, "design_patterns", cfg.VectorDB.CollectionName)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Zero(t, cfg.RAG.SimilarityThreshold)
	assert.Equal(t, "anthropic/claude-sonnet-4-5", cfg.Generator.Model)
	assert.Nil(t, cfg.Generator.Temperature)
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Listen)
	assert.Equal(t, 2*time.Minute, cfg.Server.RequestTimeout)
	assert.Zero(t, cfg.Server.RateLimit.RequestsPerSecond)
	assert.Equal(t, 10, cfg.Server.RateLimit.Burst)
	assert.Empty(t, cfg.Providers)
}

func TestLoad_FromFile(t *testing.T) {
	isolateEnv(t)

	path := writeConfig(t, `
embeddings:
  provider: openai
  model: text-embedding-3-small
  dimension: 1536
vector_db:
  backend: memory
  collection_name: ui_patterns
rag:
  top_k: 3
  similarity_threshold: 0.25
generator:
  model: openai/gpt-4.1
  failover:
    - anthropic/claude-sonnet-4-5
  temperature: 0.2
providers:
  openai:
    api_key: sk-openai
  anthropic:
    api_key: sk-ant
server:
  listen: 0.0.0.0:9000
  request_timeout: 45s
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, 1536, cfg.Embeddings.Dimension)
	assert.Equal(t, "memory", cfg.VectorDB.Backend)
	assert.Equal(t, "ui_patterns", cfg.VectorDB.CollectionName)
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.InDelta(t, 0.25, cfg.RAG.SimilarityThreshold, 1e-9)
	assert.Equal(t, []string{"anthropic/claude-sonnet-4-5"}, cfg.Generator.Failover)
	require.NotNil(t, cfg.Generator.Temperature)
	assert.InDelta(t, 0.2, *cfg.Generator.Temperature, 1e-9)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, 45*time.Second, cfg.Server.RequestTimeout)

	assert.Equal(t, "sk-openai", cfg.ProviderKey("openai"))
	assert.Equal(t, "sk-openai", cfg.EmbeddingAPIKey(), "embedding key falls back to provider entry")
}

func TestLoad_EnvOverride(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DELM_SERVER_LISTEN", "10.0.0.1:8080")
	t.Setenv("DELM_RAG_TOP_K", "9")
	t.Setenv("DELM_EMBEDDINGS_API_KEY", "sk-embed")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", cfg.Server.Listen)
	assert.Equal(t, 9, cfg.RAG.TopK)
	assert.Equal(t, "sk-embed", cfg.EmbeddingAPIKey())
}

func TestLoad_VendorKeyEnv(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-env", cfg.ProviderKey("anthropic"))
	assert.NotContains(t, cfg.Providers, "openai")
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, "rag:\n  top_k: 3\n")
	t.Setenv("DELM_RAG_TOP_K", "7")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RAG.TopK)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, delmerr.HasCode(err, delmerr.CodeConfigLoadReadFailure))
}

func TestLoad_ValidationCalledAtLoadTime(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, "vector_db:\n  backend: chroma\n")

	_, err := config.Load(path)
	require.Error(t, err)
	assert.True(t, delmerr.HasCode(err, delmerr.CodeConfigValidateInvalidValue))
	assert.Contains(t, err.Error(), "vector_db.backend")
}

func TestFromViper_UsesSharedInstance(t *testing.T) {
	isolateEnv(t)
	v := viper.New()
	config.SetDefaults(v)
	config.SetupEnv(v)
	v.Set("embeddings.dimension", 64)

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Embeddings.Dimension)
}

// validConfig returns a minimal config that passes all validation.
func validConfig() *config.Config {
	return &config.Config{
		Embeddings: config.EmbeddingsConfig{Provider: "hash", Dimension: 384},
		VectorDB: config.VectorDBConfig{
			Backend:          "sqlite",
			PersistDirectory: "./data",
			CollectionName:   "design_patterns",
		},
		RAG:       config.RAGConfig{TopK: 5},
		Generator: config.GeneratorConfig{Model: "anthropic/claude-sonnet-4-5", MaxTokens: 1024},
		Providers: map[string]config.ProviderConfig{
			"anthropic": {APIKey: "test-key"},
		},
		Server:  config.ServerConfig{Listen: "127.0.0.1:8000", RequestTimeout: time.Minute},
		Scanner: config.ScannerConfig{PatternMode: "block", OutputMode: "redact"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.Empty(t, validConfig().Validate())
}

func TestValidate_Fields(t *testing.T) {
	temp := func(f float64) *float64 { return &f }

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantKey string
	}{
		{"unknown embedding provider", func(c *config.Config) { c.Embeddings.Provider = "cohere" }, "embeddings.provider"},
		{"zero dimension", func(c *config.Config) { c.Embeddings.Dimension = 0 }, "embeddings.dimension"},
		{"unknown backend", func(c *config.Config) { c.VectorDB.Backend = "chroma" }, "vector_db.backend"},
		{"sqlite without directory", func(c *config.Config) { c.VectorDB.PersistDirectory = "" }, "vector_db.persist_directory"},
		{"bad collection name", func(c *config.Config) { c.VectorDB.CollectionName = "drop table;" }, "vector_db.collection_name"},
		{"zero top_k", func(c *config.Config) { c.RAG.TopK = 0 }, "rag.top_k"},
		{"threshold of one", func(c *config.Config) { c.RAG.SimilarityThreshold = 1 }, "rag.similarity_threshold"},
		{"negative threshold", func(c *config.Config) { c.RAG.SimilarityThreshold = -0.1 }, "rag.similarity_threshold"},
		{"model without slash", func(c *config.Config) { c.Generator.Model = "claude" }, "generator.model"},
		{"unknown provider", func(c *config.Config) { c.Generator.Model = "mistral/large" }, "generator.model"},
		{"unconfigured provider", func(c *config.Config) { c.Generator.Model = "openai/gpt-4.1" }, "not configured"},
		{"bad failover", func(c *config.Config) { c.Generator.Failover = []string{"nope"} }, "generator.failover[0]"},
		{"negative max tokens", func(c *config.Config) { c.Generator.MaxTokens = -1 }, "generator.max_tokens"},
		{"temperature too high", func(c *config.Config) { c.Generator.Temperature = temp(3) }, "generator.temperature"},
		{"empty listen", func(c *config.Config) { c.Server.Listen = "" }, "server.listen"},
		{"listen without port", func(c *config.Config) { c.Server.Listen = "localhost" }, "server.listen"},
		{"port out of range", func(c *config.Config) { c.Server.Listen = ":70000" }, "server.listen"},
		{"zero timeout", func(c *config.Config) { c.Server.RequestTimeout = 0 }, "server.request_timeout"},
		{"negative rate", func(c *config.Config) { c.Server.RateLimit.RequestsPerSecond = -1 }, "server.rate_limit.requests_per_second"},
		{"rate without burst", func(c *config.Config) { c.Server.RateLimit.RequestsPerSecond = 2 }, "server.rate_limit.burst"},
		{"unknown scanner mode", func(c *config.Config) { c.Scanner.OutputMode = "quarantine" }, "scanner.output_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.True(t, delmerr.HasCode(errs[0], delmerr.CodeConfigValidateInvalidValue))
			assert.Contains(t, errs[0].Error(), tt.wantKey)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.RAG.TopK = -1
	cfg.Embeddings.Dimension = -1
	cfg.Server.Listen = ""

	assert.Len(t, cfg.Validate(), 3)
}

func TestValidate_NoProvidersSectionSkipsCrossCheck(t *testing.T) {
	cfg := validConfig()
	cfg.Providers = nil
	cfg.Generator.Model = "google/gemini-2.5-flash"

	assert.Empty(t, cfg.Validate())
}

func TestDefaultConfigYAML_Loads(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, string(config.DefaultConfigYAML))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hash", cfg.Embeddings.Provider)
	assert.Equal(t, "design_patterns", cfg.VectorDB.CollectionName)
}
