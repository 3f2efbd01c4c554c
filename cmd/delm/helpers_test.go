// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sigil-dev/delm/internal/config"
	"github.com/sigil-dev/delm/internal/provider"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
	"github.com/stretchr/testify/require"
)

// isolateEnv keeps the developer's shell and home directory out of a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, name := range config.KnownProviders {
		upper := strings.ToUpper(name)
		t.Setenv(upper+"_API_KEY", "")
		t.Setenv("DELM_PROVIDERS_"+upper+"_API_KEY", "")
		t.Setenv("DELM_PROVIDERS_"+upper+"_ENDPOINT", "")
	}
}

// writeTestConfig writes a config using the hash embedder and a sqlite index
// under a temp dir, plus any extra YAML, and returns its path.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`embeddings:
  provider: hash
  dimension: 64
vector_db:
  backend: sqlite
  persist_directory: %s
  collection_name: design_patterns
%s`, filepath.Join(dir, "vector_db"), extra)

	path := filepath.Join(dir, "delm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// runCLI executes the root command and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

// stubProvider answers every chat with a fixed reply.
type stubProvider struct {
	name  string
	reply string
	fail  string
	got   []provider.ChatRequest
}

func (p *stubProvider) Name() string                     { return p.name }
func (p *stubProvider) Available(_ context.Context) bool { return true }
func (p *stubProvider) Close() error                     { return nil }

func (p *stubProvider) Status(_ context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: true, Provider: p.name, Message: "ok"}, nil
}

func (p *stubProvider) Chat(_ context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	p.got = append(p.got, req)
	if p.fail != "" {
		return nil, delmerr.New(delmerr.CodeProviderUpstreamFailure, p.fail)
	}
	ch := make(chan provider.ChatEvent, 2)
	ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: p.reply}
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	close(ch)
	return ch, nil
}

// useStubProvider replaces the named provider factory and records the
// config it was built with.
func useStubProvider(t *testing.T, name string, p *stubProvider) *config.ProviderConfig {
	t.Helper()
	var seen config.ProviderConfig
	orig := builtinProviderFactories[name]
	builtinProviderFactories[name] = func(_ context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		seen = pc
		return p, nil
	}
	t.Cleanup(func() { builtinProviderFactories[name] = orig })
	return &seen
}
