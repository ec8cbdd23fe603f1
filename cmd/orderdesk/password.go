// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package main

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/config"
	"github.com/orderdesk/orderdesk/internal/validate"
)

// readPassword prompts without echo when stdin is a terminal and otherwise
// reads a single line.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		cmd.PrintErr(prompt)
		pw, err := term.ReadPassword(int(f.Fd()))
		cmd.PrintErrln()
		if err != nil {
			return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", oops.Code("PASSWORD_EMPTY").Errorf("no password given")
	}
	return line, nil
}

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	var skipPolicy bool

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password with the configured scrypt parameters",
		Long: `Read a password from the terminal (or one line of stdin) and print its
encoded scrypt hash. The password must satisfy the password policy unless
--skip-policy is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, nil)
			if err != nil {
				return err
			}
			params, err := cfg.ScryptParams()
			if err != nil {
				return err
			}
			hasher, err := auth.NewScryptHasher(params)
			if err != nil {
				return err
			}

			pw, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			if !skipPolicy {
				if err := validate.Password(pw); err != nil {
					return oops.Errorf("%s", validate.Message(err))
				}
			}

			encoded, err := hasher.Hash(pw)
			if err != nil {
				return err
			}
			cmd.Println(encoded)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipPolicy, "skip-policy", false, "hash even if the password violates the policy")

	return cmd
}

// NewCheckPasswordCmd creates the check-password subcommand.
func NewCheckPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-password",
		Short: "Check a password against the password policy",
		Long: `Read a password from the terminal (or one line of stdin) and report whether
it satisfies the policy: ` + validate.PasswordRuleDescription + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			if err := validate.Password(pw); err != nil {
				cmd.Println(validate.Message(err))
				return err
			}
			cmd.Println("ok")
			return nil
		},
	}
}
