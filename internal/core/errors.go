// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package core

import "errors"

// Engine errors.
var (
	// ErrUnauthenticated means the request carried no live session.
	ErrUnauthenticated = errors.New("Authentication required")

	// ErrRegistrationFailed hides whether a registration collided with an
	// existing account.
	ErrRegistrationFailed = errors.New("Unable to register with those details.")
)
