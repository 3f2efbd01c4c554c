// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// RecommendedFileMode is the mode a config file holding plaintext API keys
// should have.
const RecommendedFileMode fs.FileMode = 0o600

// PermissionStatus is the result of CheckPermissions.
type PermissionStatus struct {
	Mode fs.FileMode
	// Exposed is set when group or others can read the file.
	Exposed bool
}

// CheckPermissions reports the permission bits of the config file at path.
func CheckPermissions(path string) (PermissionStatus, error) {
	info, err := os.Stat(path)
	if err != nil {
		return PermissionStatus{}, err
	}
	perm := info.Mode().Perm()
	return PermissionStatus{Mode: perm, Exposed: perm&0o044 != 0}, nil
}

// WarnInsecurePermissions logs a warning when the config file at path is
// readable by other users. It never blocks startup.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}

	st, err := CheckPermissions(path)
	if err != nil {
		slog.Debug("skipping config permission check", "path", path, "error", err)
		return
	}
	if st.Exposed {
		slog.Warn("config file is readable by other users, provider API keys in it are exposed",
			"path", path,
			"mode", st.Mode,
			"fix", fmt.Sprintf("chmod %o %s", RecommendedFileMode, path),
		)
	}
}
