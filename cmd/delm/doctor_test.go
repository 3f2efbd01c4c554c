// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useHTTPClient(t *testing.T, c *http.Client) {
	t.Helper()
	old := defaultHTTPClient
	defaultHTTPClient = c
	t.Cleanup(func() { defaultHTTPClient = old })
}

func TestDoctor_RunsAllChecks(t *testing.T) {
	isolateEnv(t)
	cfg := writeTestConfig(t, "")

	out, _, err := runCLI(t, "doctor", "--offline", "--address", closedAddr(t), "--config", cfg)
	require.NoError(t, err)

	for _, name := range []string{"Binary:", "Platform:", "Config:", "Providers:", "Server:", "Disk Space:"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "ok, loaded from "+cfg)
	assert.Contains(t, out, "none configured")
	assert.Contains(t, out, "keyring://delm/anthropic")
	assert.Contains(t, out, "not running at")
	assert.Contains(t, out, "available")
	assert.Contains(t, out, "0600 ok")
}

func TestCheckConfigPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	require.NoError(t, os.Chmod(path, 0o644))

	assert.Equal(t, "0644, readable by other users (run: chmod 600 "+path+")", checkConfigPermissions(path))
	assert.Equal(t, "n/a (no config file)", checkConfigPermissions(""))
}

func TestDoctor_ServerAndProviderChecks(t *testing.T) {
	isolateEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "1.2.3"})
		case "/v1/models":
			if r.Header.Get("Authorization") != "Bearer good-key" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"data":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	useHTTPClient(t, srv.Client())

	t.Setenv("OPENAI_API_KEY", "good-key")
	t.Setenv("DELM_PROVIDERS_OPENAI_ENDPOINT", srv.URL+"/v1")
	cfg := writeTestConfig(t, "generator:\n  model: openai/gpt-4o\n")
	addr := srv.Listener.Addr().String()

	out, _, err := runCLI(t, "doctor", "--address", addr, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "ok at "+addr+" (version 1.2.3)")
	assert.Contains(t, out, "openai ok")

	t.Setenv("OPENAI_API_KEY", "bad-key")
	out, _, err = runCLI(t, "doctor", "--address", addr, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "openai key rejected")
}

func TestDoctor_InvalidConfigIsReported(t *testing.T) {
	isolateEnv(t)
	cfg := writeTestConfig(t, "rag:\n  top_k: 0\n")

	out, _, err := runCLI(t, "doctor", "--offline", "--address", closedAddr(t), "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "invalid ("+cfg+")")
	assert.Contains(t, out, "skipped (config invalid)")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{in: 512, want: "512 bytes"},
		{in: 5 * 1024 * 1024, want: "5.0 MB"},
		{in: 3 * 1024 * 1024 * 1024 / 2, want: "1.5 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.in))
	}
}

// closedAddr returns a loopback address nothing is listening on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}
