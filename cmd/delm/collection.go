// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show collection size and embedding model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(app *App) error {
				st, err := app.Pipeline.Stats(cmd.Context())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, row := range [][2]string{
					{"Collection", st.Collection},
					{"Patterns", fmt.Sprint(st.Count)},
					{"Model", st.Model},
					{"Dimension", fmt.Sprint(st.Dimension)},
				} {
					if _, err := fmt.Fprintf(w, "%-12s %s\n", row[0]+":", row[1]); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newClearCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every pattern in the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Refusing to clear without --yes.")
				return err
			}
			return c.withApp(cmd.Context(), func(app *App) error {
				if err := app.Pipeline.Clear(cmd.Context()); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Cleared collection %s.\n", app.Config.VectorDB.CollectionName)
				return err
			})
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "confirm deletion")

	return cmd
}
