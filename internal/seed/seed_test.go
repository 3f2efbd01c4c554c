// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package seed_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/delm/internal/embedding"
	"github.com/sigil-dev/delm/internal/rag"
	"github.com/sigil-dev/delm/internal/seed"
	"github.com/sigil-dev/delm/internal/store/memory"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

const testDim = 128

func newPipeline(t *testing.T) *rag.Pipeline {
	t.Helper()
	p, err := rag.New(rag.Deps{
		Embedder: embedding.NewHash(testDim),
		Index:    memory.New("design_patterns", testDim),
	}, rag.Config{})
	require.NoError(t, err)
	return p
}

func patternIDs(inputs []rag.PatternInput) []string {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		out[i] = in.ID
	}
	return out
}

func TestDefault(t *testing.T) {
	patterns, err := seed.Default()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"comp-001", "comp-002", "comp-003",
		"layout-001", "layout-002",
		"style-001", "style-002",
		"a11y-001",
	}, patternIDs(patterns))

	modal := patterns[7]
	assert.Equal(t, "Accessible Modal", modal.Name)
	assert.Equal(t, "accessibility", modal.Category)
	assert.Equal(t, []string{"modal", "dialog", "a11y", "focus-trap"}, modal.Tags)
	assert.Contains(t, modal.Content, `role="dialog"`)
	assert.True(t, strings.HasPrefix(patterns[0].Content, "import React from 'react';"))
}

func TestDefault_ReturnsIndependentCopies(t *testing.T) {
	first, err := seed.Default()
	require.NoError(t, err)
	first[0].Tags[0] = "mutated"
	first[1].ID = "mutated"

	second, err := seed.Default()
	require.NoError(t, err)
	assert.Equal(t, "button", second[0].Tags[0])
	assert.Equal(t, "comp-002", second[1].ID)
}

func TestLoad(t *testing.T) {
	src := `
patterns:
  - id: nav-1
    name: Top Nav
    category: layouts
    tags: [navigation, header]
    content: |
      <nav className="flex items-center">...</nav>
  - id: badge-1
    category: components
    content: a small status badge
`
	patterns, err := seed.Load(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	assert.Equal(t, rag.PatternInput{
		ID:       "nav-1",
		Name:     "Top Nav",
		Category: "layouts",
		Tags:     []string{"navigation", "header"},
		Content:  "<nav className=\"flex items-center\">...</nav>\n",
	}, patterns[0])
	assert.Empty(t, patterns[1].Tags)
	assert.Empty(t, patterns[1].Name)
}

func TestLoad_EmptyDocument(t *testing.T) {
	patterns, err := seed.Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"malformed yaml", "patterns: [", "seed parse"},
		{"unknown field", "patterns:\n  - id: a\n    body: x\n", "body"},
		{"missing id", "patterns:\n  - content: x\n", "id must not be empty"},
		{"missing content", "patterns:\n  - id: a\n", "content must not be empty"},
		{"duplicate id", "patterns:\n  - id: a\n    content: x\n  - id: a\n    content: y\n", "already used by patterns[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := seed.Load(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.True(t, delmerr.HasCode(err, delmerr.CodeSeedParseInvalidFormat), "got %v", err)
			assert.True(t, delmerr.IsInvalidInput(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patterns:\n  - id: x\n    content: y\n"), 0o600))

	patterns, err := seed.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, patternIDs(patterns))

	_, err = seed.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, delmerr.HasCode(err, delmerr.CodeSeedParseInvalidFormat))
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	patterns, err := seed.Default()
	require.NoError(t, err)

	res, err := seed.Apply(ctx, p, patterns)
	require.NoError(t, err)
	assert.Equal(t, patternIDs(patterns), res.Applied)
	assert.Empty(t, res.Skipped)

	stats, err := p.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(patterns), stats.Count)

	got, err := p.Retrieve(ctx, "modal dialog", rag.WithCategory("accessibility"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a11y-001", got[0].ID)
	assert.Equal(t, []string{"modal", "dialog", "a11y", "focus-trap"}, got[0].Metadata.Tags)
}

func TestApply_SkipsExisting(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	require.NoError(t, p.AddPattern(ctx, rag.PatternInput{
		ID: "comp-001", Category: "components", Name: "Custom Button", Content: "my own button",
	}))

	patterns, err := seed.Default()
	require.NoError(t, err)

	res, err := seed.Apply(ctx, p, patterns)
	require.NoError(t, err)
	assert.Equal(t, []string{"comp-001"}, res.Skipped)
	assert.Len(t, res.Applied, len(patterns)-1)

	kept, ok, err := p.Get(ctx, "comp-001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "my own button", kept.Content)

	again, err := seed.Apply(ctx, p, patterns)
	require.NoError(t, err)
	assert.Empty(t, again.Applied)
	assert.Len(t, again.Skipped, len(patterns))
}
