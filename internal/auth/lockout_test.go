// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderdesk/orderdesk/internal/auth"
)

func TestLockoutPolicy_ComputeLockoutTime(t *testing.T) {
	policy := auth.DefaultLockoutPolicy()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, policy.ComputeLockoutTime(0, now))
	assert.Nil(t, policy.ComputeLockoutTime(auth.DefaultLockoutThreshold-1, now))

	lockout := policy.ComputeLockoutTime(auth.DefaultLockoutThreshold, now)
	require.NotNil(t, lockout)
	assert.Equal(t, now.Add(10*time.Minute), *lockout)

	// Every failure past the threshold re-locks from now.
	later := now.Add(time.Hour)
	lockout = policy.ComputeLockoutTime(auth.DefaultLockoutThreshold+3, later)
	require.NotNil(t, lockout)
	assert.Equal(t, later.Add(10*time.Minute), *lockout)
}

func TestIsLockedOut(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, auth.IsLockedOut(nil, now))
	assert.True(t, auth.IsLockedOut(&future, now))
	assert.False(t, auth.IsLockedOut(&past, now))
	assert.False(t, auth.IsLockedOut(&now, now), "lock ends at its expiry instant")
}

func TestLockoutRemaining(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(90 * time.Second)

	assert.Equal(t, 90*time.Second, auth.LockoutRemaining(&until, now))
	assert.Zero(t, auth.LockoutRemaining(&until, until.Add(time.Second)))
	assert.Zero(t, auth.LockoutRemaining(nil, now))
}
