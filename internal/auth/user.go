// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package auth

import (
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is one of the fixed account roles.
type Role string

// Account roles.
const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleCustomer Role = "customer"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleCustomer}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return slices.Contains(Roles(), r)
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", oops.Code("AUTH_INVALID_ROLE").With("role", s).Wrap(ErrInvalidRole)
	}
	return r, nil
}

// LoginResult is the outcome of the most recent authentication attempt.
type LoginResult string

// Login results.
const (
	LoginSuccess LoginResult = "success"
	LoginFailure LoginResult = "failure"
)

// PasswordHistoryEntry is a previously used password hash.
type PasswordHistoryEntry struct {
	Hash      string
	ChangedAt time.Time
}

// User is a registered account. Values returned by Store are copies; changing
// them has no effect on the stored record.
type User struct {
	ID                ulid.ULID
	Email             string
	Name              string
	Role              Role
	PasswordHash      string
	PasswordHistory   []PasswordHistoryEntry // newest first
	PasswordChangedAt time.Time
	FailedAttempts    int
	LockedUntil       *time.Time
	LastLoginAt       *time.Time
	LastLoginResult   LoginResult
	CreatedAt         time.Time
}

// NormalizeEmail returns the canonical form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsLockedAt reports whether a lockout is in effect at now.
func (u *User) IsLockedAt(now time.Time) bool {
	return IsLockedOut(u.LockedUntil, now)
}

// RecordFailure counts a failed attempt and locks the account once the
// policy threshold is reached.
func (u *User) RecordFailure(now time.Time, policy LockoutPolicy) {
	u.FailedAttempts++
	u.LastLoginAt = &now
	u.LastLoginResult = LoginFailure
	if lockout := policy.ComputeLockoutTime(u.FailedAttempts, now); lockout != nil {
		u.LockedUntil = lockout
	}
}

// RecordSuccess clears the failure counter and any lockout.
func (u *User) RecordSuccess(now time.Time) {
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	u.LastLoginResult = LoginSuccess
}

// SetPassword installs hash as the current password, pushes it to the front
// of the history and truncates the history to limit entries.
func (u *User) SetPassword(hash string, now time.Time, limit int) {
	u.PasswordHash = hash
	u.PasswordChangedAt = now
	u.PasswordHistory = slices.Insert(u.PasswordHistory, 0, PasswordHistoryEntry{Hash: hash, ChangedAt: now})
	if limit > 0 && len(u.PasswordHistory) > limit {
		u.PasswordHistory = u.PasswordHistory[:limit]
	}
}

// clone returns a deep copy.
func (u *User) clone() User {
	c := *u
	c.PasswordHistory = slices.Clone(u.PasswordHistory)
	if u.LockedUntil != nil {
		t := *u.LockedUntil
		c.LockedUntil = &t
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return c
}
