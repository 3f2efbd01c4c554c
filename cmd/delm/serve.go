// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sigil-dev/delm/internal/server"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
	"github.com/spf13/cobra"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Load configuration, open the pattern index, and serve the generate, search and pattern endpoints.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.withApp(ctx, func(app *App) error {
				return runServe(ctx, app)
			})
		},
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = c.v.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(ctx context.Context, app *App) error {
	sc := app.Config.Server
	srv, err := server.New(server.Config{
		ListenAddr:     sc.Listen,
		CORSOrigins:    sc.CORSOrigins,
		RequestTimeout: sc.RequestTimeout,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: sc.RateLimit.RequestsPerSecond,
			Burst:             sc.RateLimit.Burst,
		},
		Version: version,
	}, server.Deps{
		Pipeline:  app.Pipeline,
		Providers: app.Providers,
	})
	if err != nil {
		return delmerr.Wrap(err, delmerr.CodeCLISetupFailure, "creating server")
	}
	defer func() { _ = srv.Close() }()

	return srv.Start(ctx)
}
