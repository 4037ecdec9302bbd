// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the craftsmen CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "craftsmen",
		Short: "Craftsmen Platform - marketplace for craftsmen and customers",
		Long: `Craftsmen Platform connects customers who post projects with
craftsmen who bid on them. The server exposes the account and project
API over HTTP and publishes domain events.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML, default $XDG_CONFIG_HOME/craftsmen/config.yaml)")
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL (default: $DATABASE_URL)")
	cmd.PersistentFlags().String("log-format", "", "log format (json or text)")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
