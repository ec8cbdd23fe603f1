// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/orderdesk/orderdesk/internal/access"
	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/config"
)

// NewAccessCmd creates the access subcommand.
func NewAccessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Inspect the route access rules",
	}
	cmd.AddCommand(newAccessCheckCmd())
	cmd.AddCommand(newAccessRoutesCmd())
	return cmd
}

func loadRouteGate() (*access.RouteGate, error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return nil, err
	}
	return cfg.RouteGate()
}

func newAccessCheckCmd() *cobra.Command {
	var role, operation string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate the route gate for a role and operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			gate, err := loadRouteGate()
			if err != nil {
				return err
			}

			if gate.IsPublic(operation) {
				cmd.Println("allow (public)")
				return nil
			}
			decision, rule := gate.Check(r, operation)
			if rule != "" {
				cmd.Printf("%s (rule %s)\n", decision, rule)
				return nil
			}
			cmd.Println(decision)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "role to evaluate (admin, manager, customer)")
	cmd.Flags().StringVar(&operation, "operation", "", "operation path, e.g. /admin/logs")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("operation")

	return cmd
}

func newAccessRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the route restrictions and public routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gate, err := loadRouteGate()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "PATTERN\tROLES")
			for _, pattern := range gate.Patterns() {
				roles := gate.Roles(pattern)
				names := make([]string, len(roles))
				for i, r := range roles {
					names[i] = string(r)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\n", pattern, strings.Join(names, ","))
			}
			for _, pattern := range gate.PublicPatterns() {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", pattern, "(public)")
			}
			return w.Flush()
		},
	}
}
