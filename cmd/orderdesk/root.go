// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the OrderDesk CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orderdesk",
		Short: "OrderDesk - accounts, sessions and access control for the orders app",
		Long: `OrderDesk is the security core of the orders application: password
hashing and lockout, sessions, role-based access control and an audit trail.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/orderdesk/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHashPasswordCmd())
	cmd.AddCommand(NewCheckPasswordCmd())
	cmd.AddCommand(NewAccessCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewAuditCmd())

	return cmd
}
