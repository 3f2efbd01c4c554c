// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store_test

import (
	"testing"

	"github.com/sigil-dev/delm/internal/store"
	_ "github.com/sigil-dev/delm/internal/store/memory" // register memory backend
	_ "github.com/sigil-dev/delm/internal/store/sqlite" // register sqlite backend
	delmerr "github.com/sigil-dev/delm/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteDefault(t *testing.T) {
	idx, err := store.Open(store.Config{PersistDirectory: t.TempDir(), Dimension: 8})
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	assert.Equal(t, store.DefaultCollection, idx.Collection())
	assert.Equal(t, 8, idx.Dimension())
}

func TestOpen_Memory(t *testing.T) {
	idx, err := store.Open(store.Config{Backend: "memory", CollectionName: "scratch", Dimension: 4})
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	assert.Equal(t, "scratch", idx.Collection())
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  store.Config
		code delmerr.Code
	}{
		{"unknown backend", store.Config{Backend: "chroma", Dimension: 4}, delmerr.CodeStoreBackendUnsupported},
		{"zero dimension", store.Config{Backend: "memory"}, delmerr.CodeStoreConfigInvalid},
		{"bad collection", store.Config{Backend: "memory", CollectionName: "1-bad", Dimension: 4}, delmerr.CodeStoreConfigInvalid},
		{"sqlite without directory", store.Config{Backend: "sqlite", Dimension: 4}, delmerr.CodeStoreConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Open(tt.cfg)
			require.Error(t, err)
			assert.True(t, delmerr.HasCode(err, tt.code), "got %s", delmerr.CodeOf(err))
		})
	}
}

func TestBackends(t *testing.T) {
	assert.Equal(t, []string{"memory", "sqlite"}, store.Backends())
}
