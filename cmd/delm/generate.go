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

func newGenerateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate code using the closest stored patterns as context",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(app *App) error {
				return runGenerate(cmd, app, strings.Join(args, " "))
			})
		},
	}

	cmd.Flags().String("mode", string(rag.ModeComponent), fmt.Sprintf("generation mode, one of %v", rag.Modes()))
	cmd.Flags().String("category", "", "only use patterns in this category as context")

	return cmd
}

func runGenerate(cmd *cobra.Command, app *App, prompt string) error {
	modeFlag, _ := cmd.Flags().GetString("mode")
	category, _ := cmd.Flags().GetString("category")

	mode, err := rag.ParseMode(modeFlag)
	if err != nil {
		return err
	}

	res, err := app.Pipeline.Generate(cmd.Context(), prompt, mode, category)
	if res != nil {
		errOut := cmd.ErrOrStderr()
		if len(res.PatternIDs) > 0 {
			_, _ = fmt.Fprintf(errOut, "Context: %d pattern(s): %s\n", res.PatternsUsed, strings.Join(res.PatternIDs, ", "))
		} else {
			_, _ = fmt.Fprintln(errOut, "Context: no matching patterns")
		}
	}
	if err != nil {
		return delmerr.Wrap(err, delmerr.CodeCLIRequestFailure, "generating")
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Output)
	return err
}
