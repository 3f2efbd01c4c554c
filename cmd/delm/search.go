// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/sigil-dev/delm/internal/rag"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
	"github.com/spf13/cobra"
)

func newSearchCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the stored patterns closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(app *App) error {
				return runSearch(cmd, app, strings.Join(args, " "))
			})
		},
	}

	cmd.Flags().String("category", "", "only return patterns in this category")
	cmd.Flags().Int("top-k", 0, "number of results (default: rag.top_k)")

	return cmd
}

func runSearch(cmd *cobra.Command, app *App, query string) error {
	category, _ := cmd.Flags().GetString("category")
	topK, _ := cmd.Flags().GetInt("top-k")

	opts := []rag.RetrieveOption{rag.WithCategory(category)}
	if cmd.Flags().Changed("top-k") {
		if topK < 1 {
			return delmerr.Errorf(delmerr.CodeCLIInputInvalid, "--top-k must be at least 1, got %d", topK)
		}
		opts = append(opts, rag.WithTopK(topK))
	}

	results, err := app.Pipeline.Retrieve(cmd.Context(), query, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		_, err := fmt.Fprintln(out, "No matching patterns.")
		return err
	}
	for i, r := range results {
		if _, err := fmt.Fprintf(out, "%d. %s  [%s]  %s  similarity=%.3f\n",
			i+1, r.ID, r.Metadata.Category, r.Metadata.Name, 1-r.Distance); err != nil {
			return err
		}
	}
	return nil
}
