// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/sigil-dev/delm/internal/store"
	"github.com/sigil-dev/delm/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

// newTestIndex opens a 3-dimensional index that is closed on cleanup.
func newTestIndex(t *testing.T, name string) *sqlite.Index {
	t.Helper()
	idx, err := sqlite.NewIndex(testDBPath(t, name), "patterns", 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func pattern(id, category string, vec ...float32) store.Pattern {
	return store.Pattern{
		ID:      id,
		Content: "content of " + id,
		Metadata: store.Metadata{
			Category: category,
			Name:     "Pattern " + id,
		},
		Vector: vec,
	}
}
