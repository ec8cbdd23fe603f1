// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/orderdesk/orderdesk/internal/audit"
)

// auditShowConfig holds configuration for the audit show command.
type auditShowConfig struct {
	limit      int
	jsonOutput bool
}

// NewAuditCmd creates the audit subcommand.
func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect mirrored audit logs",
	}
	cmd.AddCommand(newAuditShowCmd())
	return cmd
}

func newAuditShowCmd() *cobra.Command {
	cfg := &auditShowConfig{}

	cmd := &cobra.Command{
		Use:   "show [FILE]",
		Short: "Show entries from an audit JSONL file, newest first",
		Long: `Show entries from an audit file written by serve --audit-mirror.
Without FILE, audit.jsonl in the XDG state directory is read.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runAuditShow(cmd, cfg, path)
		},
	}

	cmd.Flags().IntVar(&cfg.limit, "limit", audit.DefaultListLimit, "maximum number of entries to show (0 = all)")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output entries as JSON lines")

	return cmd
}

func runAuditShow(cmd *cobra.Command, cfg *auditShowConfig, path string) error {
	if path == "" {
		p, err := audit.DefaultFilePath()
		if err != nil {
			return err
		}
		path = p
	}

	entries, skipped, err := audit.ReadFile(path)
	if err != nil {
		return err
	}
	slices.Reverse(entries)
	if cfg.limit > 0 && len(entries) > cfg.limit {
		entries = entries[:cfg.limit]
	}

	if cfg.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("failed to encode entry: %w", err)
			}
		}
	} else {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "TIME\tACTION\tOUTCOME\tUSER\tORIGIN\tDETAIL")
		for _, e := range entries {
			user := "-"
			if e.HasUser() {
				user = e.UserID.String()
			}
			origin := e.Origin
			if origin == "" {
				origin = "-"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.UTC().Format(time.RFC3339), e.Action, e.Outcome, user, origin, e.Detail)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("failed to write table: %w", err)
		}
	}

	if skipped > 0 {
		cmd.PrintErrf("skipped %d malformed line(s)\n", skipped)
	}
	return nil
}
