// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// DefaultConfigYAML is the commented starter config: the offline hash
// embedder, a sqlite index under ./data/vector_db, and keyring:// placeholders
// for provider keys. It must pass Validate as written.
//
//go:embed delm.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/delm/delm.yaml, the last place the CLI
// searches after ./delm.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", delmerr.Errorf(delmerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "delm", "delm.yaml"), nil
}

// BootstrapConfig writes DefaultConfigYAML to DefaultConfigPath on first run.
// It returns the path written, or "" when a file already exists there or
// writing failed; a failure only means the CLI runs on built-in defaults.
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	return bootstrapAt(cfgPath)
}

func bootstrapAt(cfgPath string) string {
	if _, err := os.Stat(cfgPath); err == nil {
		return ""
	}

	// The file will hold API keys once the user fills them in, so it starts
	// private rather than tripping WarnInsecurePermissions later.
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}
	if err := os.WriteFile(cfgPath, DefaultConfigYAML, RecommendedFileMode); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath, "embeddings", "hash", "vector_db", "sqlite")
	return cfgPath
}
