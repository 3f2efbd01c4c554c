// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build windows

package config

import (
	"io/fs"
	"os"
)

// RecommendedFileMode is unused on Windows, where access is governed by ACLs.
const RecommendedFileMode fs.FileMode = 0o600

// PermissionStatus is the result of CheckPermissions.
type PermissionStatus struct {
	Mode    fs.FileMode
	Exposed bool
}

// CheckPermissions only confirms the file exists; mode bits carry no access
// information on Windows.
func CheckPermissions(path string) (PermissionStatus, error) {
	info, err := os.Stat(path)
	if err != nil {
		return PermissionStatus{}, err
	}
	return PermissionStatus{Mode: info.Mode().Perm()}, nil
}

// WarnInsecurePermissions is a no-op on Windows.
func WarnInsecurePermissions(string) {}
