// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/sigil-dev/delm/internal/config"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli carries the state shared by every subcommand of one root command.
type cli struct {
	v *viper.Viper
}

// NewRootCmd creates the root delm command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:           "delm",
		Short:         "delm: retrieval-augmented design pattern generation",
		Long:          "delm stores UI design patterns as embeddings and uses the closest matches as context for LLM code generation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(c),
		newSeedCmd(c),
		newSearchCmd(c),
		newGenerateCmd(c),
		newStatsCmd(c),
		newClearCmd(c),
		newDoctorCmd(c),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper applies defaults and env bindings, then reads the config file so
// the usual precedence (flag > env > file > defaults) holds everywhere.
func (c *cli) initViper(cmd *cobra.Command) error {
	v := c.v

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return delmerr.Errorf(delmerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted so viper never matches the ./delm binary.
		v.SetConfigName("delm")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/delm")
		v.AddConfigPath("/etc/delm")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return delmerr.Errorf(delmerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return delmerr.Errorf(delmerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if used := v.ConfigFileUsed(); used != "" {
		config.WarnInsecurePermissions(used)
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return delmerr.Errorf(delmerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}
	if v.GetBool("verbose") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	return nil
}
