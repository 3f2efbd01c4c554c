// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"

	"github.com/sigil-dev/delm/internal/rag"
	"github.com/sigil-dev/delm/internal/seed"
	"github.com/spf13/cobra"
)

func newSeedCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed [file]",
		Short: "Load design patterns into the index",
		Long: "Ingest patterns from a YAML seed file, or the built-in set when no file is given. " +
			"Patterns whose id is already stored are skipped.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reset, _ := cmd.Flags().GetBool("reset")
			return c.withApp(cmd.Context(), func(app *App) error {
				return runSeed(cmd, app, args, reset)
			})
		},
	}

	cmd.Flags().Bool("reset", false, "clear the collection before seeding")

	return cmd
}

func runSeed(cmd *cobra.Command, app *App, args []string, reset bool) error {
	var (
		patterns []rag.PatternInput
		err      error
	)
	if len(args) == 1 {
		patterns, err = seed.LoadFile(args[0])
	} else {
		patterns, err = seed.Default()
	}
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if reset {
		if err := app.Pipeline.Clear(ctx); err != nil {
			return err
		}
	}

	res, err := seed.Apply(ctx, app.Pipeline, patterns)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d pattern(s), skipped %d already present.\n",
		len(res.Applied), len(res.Skipped))
	return err
}
