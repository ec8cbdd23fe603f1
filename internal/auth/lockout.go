// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package auth

import "time"

// Lockout defaults.
const (
	// DefaultLockoutThreshold is the number of consecutive failures that
	// triggers a lockout.
	DefaultLockoutThreshold = 5

	// DefaultLockoutDuration is how long a lockout lasts.
	DefaultLockoutDuration = 10 * time.Minute
)

// LockoutPolicy decides when repeated failures lock an account.
//
// Lock expiry does not reset the failure counter. Only a successful login
// does, so the first failure after an expired lock re-locks the account
// immediately.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy returns the default threshold and duration.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: DefaultLockoutThreshold, Duration: DefaultLockoutDuration}
}

// ComputeLockoutTime returns the lockout expiry for the given failure count,
// or nil if failures is below the threshold.
func (p LockoutPolicy) ComputeLockoutTime(failures int, now time.Time) *time.Time {
	if failures < p.Threshold {
		return nil
	}
	lockout := now.Add(p.Duration)
	return &lockout
}

// IsLockedOut returns true if the lockout time is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && now.Before(*lockedUntil)
}

// LockoutRemaining returns the time left on a lockout, or zero.
func LockoutRemaining(lockedUntil *time.Time, now time.Time) time.Duration {
	if !IsLockedOut(lockedUntil, now) {
		return 0
	}
	return lockedUntil.Sub(now)
}
