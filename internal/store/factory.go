// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"regexp"
	"sort"
	"sync"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// DefaultCollection is used when Config.CollectionName is empty.
const DefaultCollection = "design_patterns"

// BackendFactory opens an Index for a validated Config.
type BackendFactory func(cfg Config) (Index, error)

var (
	backends   = map[string]BackendFactory{}
	backendsMu sync.RWMutex

	collectionNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)
)

// RegisterBackend registers a factory for a named index backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f BackendFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = f
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidCollectionName reports whether name can be used as a collection identifier.
func ValidCollectionName(name string) bool {
	return collectionNameRE.MatchString(name)
}

// Open resolves the configured backend and opens the index.
func Open(cfg Config) (Index, error) {
	if cfg.Backend == "" {
		cfg.Backend = "sqlite"
	}
	if cfg.CollectionName == "" {
		cfg.CollectionName = DefaultCollection
	}
	if cfg.Dimension <= 0 {
		return nil, delmerr.Errorf(delmerr.CodeStoreConfigInvalid, "dimension must be positive, got %d", cfg.Dimension)
	}
	if !ValidCollectionName(cfg.CollectionName) {
		return nil, delmerr.Errorf(delmerr.CodeStoreConfigInvalid, "invalid collection name %q", cfg.CollectionName)
	}

	backendsMu.RLock()
	factory, ok := backends[cfg.Backend]
	backendsMu.RUnlock()
	if !ok {
		return nil, delmerr.Errorf(delmerr.CodeStoreBackendUnsupported, "unsupported index backend: %q", cfg.Backend)
	}

	return factory(cfg)
}
