// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/sigil-dev/delm/internal/config"
	"github.com/sigil-dev/delm/internal/provider"
	"github.com/sigil-dev/delm/internal/secrets"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

func newDoctorCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the binary, configuration and its file mode, provider API keys, a running server, and free disk space for the index.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runDoctor(cmd)
		},
	}

	cmd.Flags().String("address", "", "server address to check (default: server.listen)")
	cmd.Flags().Bool("offline", false, "skip provider API key checks")

	return cmd
}

func (c *cli) runDoctor(cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")
	offline, _ := cmd.Flags().GetBool("offline")

	cfg, cfgErr := loadConfig(c.v)
	if addr == "" {
		addr = c.v.GetString("server.listen")
	}

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return c.checkConfig(cfgErr) }},
		{"Config Permissions", func() string { return checkConfigPermissions(c.v.ConfigFileUsed()) }},
		{"Providers", func() string { return checkProviders(cmd.Context(), cfg, offline) }},
		{"Server", func() string { return checkServer(addr) }},
		{"Disk Space", func() string { return checkDiskSpace(c.v.GetString("vector_db.persist_directory")) }},
	}

	for _, ch := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", ch.name+":", ch.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("delm %s (commit: %s)", version, commit)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func (c *cli) checkConfig(cfgErr error) string {
	src := "defaults (no config file found)"
	if f := c.v.ConfigFileUsed(); f != "" {
		src = f
	}
	if cfgErr != nil {
		return fmt.Sprintf("invalid (%s): %s", src, cfgErr)
	}
	return "ok, loaded from " + src
}

func checkConfigPermissions(path string) string {
	if path == "" {
		return "n/a (no config file)"
	}
	st, err := config.CheckPermissions(path)
	if err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}
	if st.Exposed {
		return fmt.Sprintf("%04o, readable by other users (run: chmod %o %s)", st.Mode, config.RecommendedFileMode, path)
	}
	return fmt.Sprintf("%04o ok", st.Mode)
}

// checkProviders validates every configured API key against its provider's
// models endpoint.
func checkProviders(ctx context.Context, cfg *config.Config, offline bool) string {
	if cfg == nil {
		return "skipped (config invalid)"
	}

	parts := make([]string, 0, len(config.KnownProviders))
	for _, name := range config.KnownProviders {
		pc, ok := cfg.Providers[name]
		if !ok || pc.APIKey == "" {
			continue
		}
		if offline {
			parts = append(parts, name+" configured")
			continue
		}
		err := provider.ValidateKey(ctx, defaultHTTPClient, provider.ProviderName(name), pc.APIKey, pc.Endpoint)
		switch {
		case err == nil:
			parts = append(parts, name+" ok")
		case delmerr.HasCode(err, delmerr.CodeProviderKeyInvalid):
			parts = append(parts, name+" key rejected")
		default:
			parts = append(parts, name+" unreachable")
		}
	}

	if len(parts) == 0 {
		return fmt.Sprintf("none configured (generate is disabled; run: delm secret set anthropic, then set providers.anthropic.api_key: %s)",
			secrets.ProviderKeyURI("anthropic"))
	}
	return strings.Join(parts, ", ")
}

func checkServer(addr string) string {
	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := newServerClient(addr).getJSON("/health", &body); err != nil {
		if delmerr.HasCode(err, delmerr.CodeCLIServerNotRunning) {
			return fmt.Sprintf("not running at %s (run 'delm serve')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s (version %s)", body.Status, addr, body.Version)
}

func checkDiskSpace(dir string) string {
	path := dir
	if _, err := os.Stat(path); path == "" || os.IsNotExist(err) {
		// Index directory is created on first use.
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
