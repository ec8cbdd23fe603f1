// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package auth

import "errors"

// Credential store errors. Messages of the authentication and policy errors
// are safe to show to end users. Returned errors wrap these sentinels with
// an oops code, so match them with errors.Is.
var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrDuplicateEmail is returned by Register when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("Invalid username and/or password")

	// ErrAccountLocked is returned while a lockout is in effect.
	ErrAccountLocked = errors.New("Account temporarily locked. Please try again later.")

	ErrPasswordTooRecent    = errors.New("Password was changed too recently.")
	ErrWrongCurrentPassword = errors.New("Current password is incorrect.")
	ErrPasswordReused       = errors.New("Cannot reuse a previous password.")

	// ErrInvalidRole is returned for a role outside the fixed taxonomy.
	ErrInvalidRole = errors.New("invalid role")
)
