// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/orderdesk/orderdesk/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with configuration files",
	}
	cmd.AddCommand(newConfigSchemaCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a configuration file",
		Long: `Check FILE against the configuration schema, then load it to catch values
the schema cannot express, such as unknown roles in route restrictions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateFile(args[0]); err != nil {
				return err
			}
			if _, err := config.Load(args[0], nil); err != nil {
				return err
			}
			cmd.Printf("%s: valid\n", args[0])
			return nil
		},
	}
}
