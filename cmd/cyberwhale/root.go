// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the CyberWhale CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cyberwhale",
		Short: "CyberWhale - account and one-time code service",
		Long: `CyberWhale runs the account service: registration, login sessions,
email verification codes and password reset codes.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/cyberwhale/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSessionCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}
