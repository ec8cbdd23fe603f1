// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package core

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/orderdesk/orderdesk/internal/auth"
)

// Built-in administrator created on first start.
const (
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminName     = "Admin User"
	DefaultAdminPassword = "AdminStrong!1"
)

// SeedAccount is an account created at startup if it does not exist.
type SeedAccount struct {
	Email    string
	Name     string
	Password string
	Role     auth.Role
}

// DefaultSeedAccounts returns the built-in administrator.
func DefaultSeedAccounts() []SeedAccount {
	return []SeedAccount{{
		Email:    DefaultAdminEmail,
		Name:     DefaultAdminName,
		Password: DefaultAdminPassword,
		Role:     auth.RoleAdmin,
	}}
}

// Seed creates every account that does not exist yet and returns how many
// were created. Existing accounts are left untouched, so Seed is safe to run
// on every start.
func (e *Engine) Seed(ctx context.Context, accounts []SeedAccount) (int, error) {
	created := 0
	for _, acct := range accounts {
		if _, err := e.users.GetByEmail(ctx, acct.Email); err == nil {
			continue
		}
		_, err := e.users.Register(ctx, auth.RegisterParams{
			Email:    acct.Email,
			Name:     acct.Name,
			Password: acct.Password,
			Role:     acct.Role,
		})
		if errors.Is(err, auth.ErrDuplicateEmail) {
			continue
		}
		if err != nil {
			return created, oops.Code("SEED_FAILED").With("email", acct.Email).Wrap(err)
		}
		created++
		if acct.Password == DefaultAdminPassword {
			e.logger.WarnContext(ctx, "seeded account uses the default password; change it before exposing the service",
				"email", auth.NormalizeEmail(acct.Email))
		}
	}
	return created, nil
}
