// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sigil-dev/delm/internal/config"
	"github.com/sigil-dev/delm/internal/embedding"
	"github.com/sigil-dev/delm/internal/provider"
	anthropicprov "github.com/sigil-dev/delm/internal/provider/anthropic"
	googleprov "github.com/sigil-dev/delm/internal/provider/google"
	openaiprov "github.com/sigil-dev/delm/internal/provider/openai"
	"github.com/sigil-dev/delm/internal/rag"
	"github.com/sigil-dev/delm/internal/scanner"
	"github.com/sigil-dev/delm/internal/secrets"
	"github.com/sigil-dev/delm/internal/store"
	_ "github.com/sigil-dev/delm/internal/store/memory" // register memory backend
	_ "github.com/sigil-dev/delm/internal/store/sqlite" // register sqlite backend
	"github.com/spf13/viper"
)

// App holds every wired subsystem for one command invocation.
type App struct {
	Config    *config.Config
	Pipeline  *rag.Pipeline
	Providers *provider.Registry

	embedder embedding.Service
	index    store.Index
}

// Close releases the index, embedder and provider clients.
func (a *App) Close() error {
	return errors.Join(a.Providers.Close(), a.index.Close(), a.embedder.Close())
}

// providerFactory builds a provider.Provider from a ProviderConfig.
type providerFactory func(context.Context, config.ProviderConfig) (provider.Provider, error)

// builtinProviderFactories maps provider names to their constructors.
// Tests replace entries to avoid network clients.
var builtinProviderFactories = map[string]providerFactory{
	"anthropic": func(_ context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		return anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"google": func(ctx context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		return googleprov.New(ctx, googleprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"openai": func(_ context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		return openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
}

// secretStoreFactory creates the store keyring:// config values resolve
// against. Tests substitute an in-memory implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// loadConfig resolves keyring references in v and decodes the result.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	if err := secrets.ResolveViperSecrets(v, secretStoreFactory()); err != nil {
		return nil, err
	}
	return config.FromViper(v)
}

// Wire builds the content guard, embedding service, index, provider registry
// and pipeline described by v. The caller must Close the returned App.
func Wire(ctx context.Context, v *viper.Viper) (*App, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}

	guard, err := newGuard(cfg.Scanner)
	if err != nil {
		return nil, err
	}

	emb, err := embedding.New(ctx, embedding.Config{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		Dimension: cfg.Embeddings.Dimension,
		APIKey:    cfg.EmbeddingAPIKey(),
		BaseURL:   cfg.Embeddings.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	idx, err := store.Open(store.Config{
		Backend:          cfg.VectorDB.Backend,
		PersistDirectory: cfg.VectorDB.PersistDirectory,
		CollectionName:   cfg.VectorDB.CollectionName,
		Dimension:        emb.Dimension(),
	})
	if err != nil {
		_ = emb.Close()
		return nil, err
	}

	reg := provider.NewRegistry()
	registerBuiltinProviders(ctx, cfg, reg)

	var gen rag.Generator
	if len(reg.Names()) > 0 {
		configureRouting(cfg, reg)
		gen = provider.NewTextGenerator(reg, generatorConfig(cfg.Generator))
	} else {
		slog.Warn("no generation providers configured, generate is disabled")
	}

	pipeline, err := rag.New(
		rag.Deps{Embedder: emb, Index: idx, Generator: gen, Guard: guard},
		rag.Config{TopK: cfg.RAG.TopK, SimilarityThreshold: cfg.RAG.SimilarityThreshold},
	)
	if err != nil {
		_ = reg.Close()
		_ = idx.Close()
		_ = emb.Close()
		return nil, err
	}

	return &App{
		Config:    cfg,
		Pipeline:  pipeline,
		Providers: reg,
		embedder:  emb,
		index:     idx,
	}, nil
}

// registerBuiltinProviders registers every configured provider that has an
// API key. Unknown names and construction failures are logged and skipped.
func registerBuiltinProviders(ctx context.Context, cfg *config.Config, reg *provider.Registry) {
	for name, pc := range cfg.Providers {
		if pc.APIKey == "" {
			slog.Debug("skipping provider with empty API key", "provider", name)
			continue
		}
		factory, ok := builtinProviderFactories[name]
		if !ok {
			slog.Warn("unknown provider in config, skipping", "provider", name)
			continue
		}
		p, err := factory(ctx, pc)
		if err != nil {
			slog.Warn("failed to create provider", "provider", name, "error", err)
			continue
		}
		reg.Register(name, p)
		slog.Info("registered provider", "provider", name)
	}
}

// configureRouting sets the default model and failover chain. Refs whose
// provider did not register are dropped with a warning.
func configureRouting(cfg *config.Config, reg *provider.Registry) {
	if err := reg.SetDefault(cfg.Generator.Model); err != nil {
		slog.Warn("default model unavailable, relying on failover", "model", cfg.Generator.Model, "error", err)
	}

	chain := make([]string, 0, len(cfg.Generator.Failover))
	for _, ref := range cfg.Generator.Failover {
		name, _, _ := strings.Cut(ref, "/")
		if _, err := reg.Get(name); err != nil {
			slog.Warn("dropping failover model", "model", ref, "error", err)
			continue
		}
		chain = append(chain, ref)
	}
	if err := reg.SetFailover(chain); err != nil {
		slog.Warn("setting failover chain", "error", err)
	}
}

func newGuard(sc config.ScannerConfig) (*scanner.Guard, error) {
	pm, err := scanner.ParseMode(sc.PatternMode)
	if err != nil {
		return nil, err
	}
	om, err := scanner.ParseMode(sc.OutputMode)
	if err != nil {
		return nil, err
	}
	return scanner.NewGuard(nil, scanner.GuardConfig{PatternMode: pm, OutputMode: om})
}

func generatorConfig(gc config.GeneratorConfig) provider.GeneratorConfig {
	out := provider.GeneratorConfig{Model: gc.Model, MaxTokens: gc.MaxTokens}
	if gc.Temperature != nil {
		t := float32(*gc.Temperature)
		out.Temperature = &t
	}
	return out
}

// withApp wires the application for the duration of fn.
func (c *cli) withApp(ctx context.Context, fn func(*App) error) error {
	app, err := Wire(ctx, c.v)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			slog.Warn("closing app", "error", cerr)
		}
	}()
	return fn(app)
}
