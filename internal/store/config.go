// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

// Config controls which backend Open uses and where it keeps its data.
type Config struct {
	Backend          string // "sqlite" (default) or "memory".
	PersistDirectory string // Directory holding the sqlite database; ignored by memory.
	CollectionName   string // Record set within the database.
	Dimension        int    // Embedding width every stored vector must have.
}
