// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/xdg"
)

// rootFlags holds the persistent flags shared by every subcommand.
type rootFlags struct {
	configFile string
	envFile    string
}

// NewRootCmd creates the root command for the Gatekeep CLI.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "gatekeep",
		Short: "Gatekeep - user authentication and session service",
		Long: `Gatekeep registers users, verifies passwords, issues session cookies
and password reset tokens, and guards HTTP routes with a pluggable
authentication strategy (basic, session, expiring or persisted session).`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/gatekeep/gatekeep.yaml when present)")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file read before the environment (missing is ignored)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd(flags))
	cmd.AddCommand(NewMigrateCmd(flags))
	cmd.AddCommand(NewHashPasswordCmd(flags))

	return cmd
}

// load reads the configuration for cmd, applying the flags the user set.
func (f *rootFlags) load(cmd *cobra.Command) (*config.Config, error) {
	file := f.configFile
	if file == "" {
		var err error
		if file, err = xdg.DefaultConfigFile(); err != nil {
			return nil, err
		}
	}
	//nolint:wrapcheck // config errors already carry codes and context
	return config.Load(config.LoadOptions{
		File:    file,
		EnvFile: f.envFile,
		Flags:   cmd.Flags(),
	})
}
