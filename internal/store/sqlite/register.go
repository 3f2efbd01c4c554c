// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/sigil-dev/delm/internal/store"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// DatabaseFile is the file name created inside the persist directory.
const DatabaseFile = "patterns.db"

func init() {
	store.RegisterBackend("sqlite", openIndex)
}

func openIndex(cfg store.Config) (store.Index, error) {
	if cfg.PersistDirectory == "" {
		return nil, delmerr.New(delmerr.CodeStoreConfigInvalid, "persist directory is required for the sqlite backend")
	}
	if err := os.MkdirAll(cfg.PersistDirectory, 0o755); err != nil {
		return nil, delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "creating persist directory: %w", err)
	}

	idx, err := NewIndex(filepath.Join(cfg.PersistDirectory, DatabaseFile), cfg.CollectionName, cfg.Dimension)
	if err != nil {
		return nil, delmerr.With(err, delmerr.FieldCollection(cfg.CollectionName))
	}
	return idx, nil
}
