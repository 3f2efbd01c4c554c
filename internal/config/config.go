// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sigil-dev/delm/internal/scanner"
	"github.com/sigil-dev/delm/internal/store"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. DELM_RAG_TOP_K.
const EnvPrefix = "DELM"

// KnownProviders are the generator providers delm can register.
var KnownProviders = []string{"anthropic", "google", "openai"}

// Config is the top-level delm configuration.
type Config struct {
	Embeddings EmbeddingsConfig          `mapstructure:"embeddings"`
	VectorDB   VectorDBConfig            `mapstructure:"vector_db"`
	RAG        RAGConfig                 `mapstructure:"rag"`
	Generator  GeneratorConfig           `mapstructure:"generator"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Server     ServerConfig              `mapstructure:"server"`
	Scanner    ScannerConfig             `mapstructure:"scanner"`
}

// EmbeddingsConfig selects the embedding model.
type EmbeddingsConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
}

// VectorDBConfig selects where patterns are stored.
type VectorDBConfig struct {
	Backend          string `mapstructure:"backend"`
	PersistDirectory string `mapstructure:"persist_directory"`
	CollectionName   string `mapstructure:"collection_name"`
}

type RAGConfig struct {
	TopK                int     `mapstructure:"top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// GeneratorConfig picks the chat model that turns retrieved context into output.
type GeneratorConfig struct {
	Model       string   `mapstructure:"model"`
	Failover    []string `mapstructure:"failover"`
	MaxTokens   int      `mapstructure:"max_tokens"`
	Temperature *float64 `mapstructure:"temperature"`
}

// ProviderConfig holds credentials and endpoint for an LLM provider.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

type ServerConfig struct {
	Listen         string          `mapstructure:"listen"`
	CORSOrigins    []string        `mapstructure:"cors_origins"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles /api requests per client IP. A zero rate disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ScannerConfig sets how matched content is handled: block, flag, redact or off.
type ScannerConfig struct {
	PatternMode string `mapstructure:"pattern_mode"`
	OutputMode  string `mapstructure:"output_mode"`
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("embeddings.provider", "hash")
	v.SetDefault("embeddings.model", "")
	v.SetDefault("embeddings.dimension", 384)

	v.SetDefault("vector_db.backend", "sqlite")
	v.SetDefault("vector_db.persist_directory", "./data/vector_db")
	v.SetDefault("vector_db.collection_name", store.DefaultCollection)

	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.similarity_threshold", 0.0)

	v.SetDefault("generator.model", "anthropic/claude-sonnet-4-5")
	v.SetDefault("generator.max_tokens", 4096)

	v.SetDefault("server.listen", "127.0.0.1:8000")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.request_timeout", "2m")
	v.SetDefault("server.rate_limit.requests_per_second", 0.0)
	v.SetDefault("server.rate_limit.burst", 10)

	v.SetDefault("scanner.pattern_mode", string(scanner.DefaultPatternMode))
	v.SetDefault("scanner.output_mode", string(scanner.DefaultOutputMode))
}

// SetupEnv enables DELM_ environment overrides. Keys without a default are
// bound explicitly so AutomaticEnv can see them; provider keys also accept the
// vendor's conventional variable name.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("embeddings.api_key", "DELM_EMBEDDINGS_API_KEY")
	_ = v.BindEnv("embeddings.base_url", "DELM_EMBEDDINGS_BASE_URL")
	_ = v.BindEnv("generator.temperature", "DELM_GENERATOR_TEMPERATURE")
	_ = v.BindEnv("generator.failover", "DELM_GENERATOR_FAILOVER")

	for _, name := range KnownProviders {
		upper := strings.ToUpper(name)
		_ = v.BindEnv("providers."+name+".api_key", "DELM_PROVIDERS_"+upper+"_API_KEY", upper+"_API_KEY")
		_ = v.BindEnv("providers."+name+".endpoint", "DELM_PROVIDERS_"+upper+"_ENDPOINT")
	}
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, delmerr.Errorf(delmerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	// Bound-but-unset provider env vars leave empty entries behind.
	for name, pc := range cfg.Providers {
		if pc.APIKey == "" && pc.Endpoint == "" {
			delete(cfg.Providers, name)
		}
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, delmerr.Errorf(delmerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Load reads configuration from path (or defaults only when empty) with
// DELM_ environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, delmerr.Errorf(delmerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// Validate checks the configuration for logical errors. It collects every
// problem rather than stopping at the first.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateEmbeddings()...)
	errs = append(errs, c.validateVectorDB()...)
	errs = append(errs, c.validateRAG()...)
	errs = append(errs, c.validateGenerator()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateScanner()...)

	return errs
}

// ProviderKey returns the configured API key for a named provider.
func (c *Config) ProviderKey(name string) string {
	return c.Providers[name].APIKey
}

// EmbeddingAPIKey falls back to the matching provider entry when
// embeddings.api_key is unset.
func (c *Config) EmbeddingAPIKey() string {
	if c.Embeddings.APIKey != "" {
		return c.Embeddings.APIKey
	}
	return c.ProviderKey(c.Embeddings.Provider)
}

func invalid(format string, args ...any) error {
	return delmerr.Errorf(delmerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateEmbeddings() []error {
	var errs []error

	validProviders := []string{"hash", "openai", "google"}
	if !slices.Contains(validProviders, c.Embeddings.Provider) {
		errs = append(errs, invalid("embeddings.provider must be one of %v, got %q",
			validProviders, c.Embeddings.Provider))
	}
	if c.Embeddings.Dimension <= 0 {
		errs = append(errs, invalid("embeddings.dimension must be greater than 0, got %d", c.Embeddings.Dimension))
	}

	return errs
}

func (c *Config) validateVectorDB() []error {
	var errs []error

	validBackends := []string{"sqlite", "memory"}
	if !slices.Contains(validBackends, c.VectorDB.Backend) {
		errs = append(errs, invalid("vector_db.backend must be one of %v, got %q",
			validBackends, c.VectorDB.Backend))
	}
	if c.VectorDB.Backend == "sqlite" && c.VectorDB.PersistDirectory == "" {
		errs = append(errs, invalid("vector_db.persist_directory must not be empty for the sqlite backend"))
	}
	if !store.ValidCollectionName(c.VectorDB.CollectionName) {
		errs = append(errs, invalid("vector_db.collection_name must be an identifier, got %q",
			c.VectorDB.CollectionName))
	}

	return errs
}

func (c *Config) validateRAG() []error {
	var errs []error

	if c.RAG.TopK <= 0 {
		errs = append(errs, invalid("rag.top_k must be greater than 0, got %d", c.RAG.TopK))
	}
	if c.RAG.SimilarityThreshold < 0 || c.RAG.SimilarityThreshold >= 1 {
		errs = append(errs, invalid("rag.similarity_threshold must be in [0, 1), got %g",
			c.RAG.SimilarityThreshold))
	}

	return errs
}

func (c *Config) validateGenerator() []error {
	var errs []error

	errs = append(errs, c.validateModelRef("generator.model", c.Generator.Model)...)
	for i, ref := range c.Generator.Failover {
		errs = append(errs, c.validateModelRef("generator.failover["+strconv.Itoa(i)+"]", ref)...)
	}

	if c.Generator.MaxTokens < 0 {
		errs = append(errs, invalid("generator.max_tokens must not be negative, got %d", c.Generator.MaxTokens))
	}
	if t := c.Generator.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, invalid("generator.temperature must be in [0, 2], got %g", *t))
	}

	return errs
}

func (c *Config) validateModelRef(key, ref string) []error {
	providerName, model, ok := strings.Cut(ref, "/")
	if !ok || providerName == "" || model == "" {
		return []error{invalid("%s must be in \"provider/model\" format, got %q", key, ref)}
	}
	if !slices.Contains(KnownProviders, providerName) {
		return []error{invalid("%s %q references unknown provider %q", key, ref, providerName)}
	}
	// No providers section means a fresh install; the missing key surfaces
	// when generation is first attempted.
	if len(c.Providers) > 0 {
		if _, ok := c.Providers[providerName]; !ok {
			return []error{invalid("%s %q references provider %q which is not configured", key, ref, providerName)}
		}
	}
	return nil
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, invalid("server.listen must not be empty"))
	} else if _, portStr, err := net.SplitHostPort(c.Server.Listen); err != nil {
		errs = append(errs, invalid("server.listen must be a valid host:port address, got %q: %v",
			c.Server.Listen, err))
	} else if port, err := strconv.Atoi(portStr); err != nil {
		errs = append(errs, invalid("server.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, invalid("server.listen port must be between 1 and 65535, got %d", port))
	}

	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, invalid("server.request_timeout must be positive, got %s", c.Server.RequestTimeout))
	}

	if rl := c.Server.RateLimit; rl.RequestsPerSecond < 0 {
		errs = append(errs, invalid("server.rate_limit.requests_per_second must not be negative, got %g", rl.RequestsPerSecond))
	} else if rl.RequestsPerSecond > 0 && rl.Burst <= 0 {
		errs = append(errs, invalid("server.rate_limit.burst must be positive when a rate is set, got %d", rl.Burst))
	}

	return errs
}

func (c *Config) validateScanner() []error {
	var errs []error
	for _, f := range []struct{ key, mode string }{
		{"scanner.pattern_mode", c.Scanner.PatternMode},
		{"scanner.output_mode", c.Scanner.OutputMode},
	} {
		if _, err := scanner.ParseMode(f.mode); err != nil {
			errs = append(errs, invalid("%s must be one of %v, got %q", f.key, scanner.Modes(), f.mode))
		}
	}
	return errs
}
