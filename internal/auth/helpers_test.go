// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package auth_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/auth"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// cheapHasher keeps scrypt fast enough for table tests.
func cheapHasher(t *testing.T) *auth.ScryptHasher {
	t.Helper()
	h, err := auth.NewScryptHasher(auth.ScryptParams{LogN: 4, R: 8, P: 1})
	require.NoError(t, err)
	return h
}

type storeFixture struct {
	store *auth.Store
	log   *audit.Log
	clock *fakeClock
}

func newStoreFixture(t *testing.T) storeFixture {
	t.Helper()
	clock := newFakeClock()
	log := audit.NewLog(audit.WithClock(clock.Now))
	store, err := auth.NewStore(cheapHasher(t), log, auth.WithClock(clock))
	require.NoError(t, err)
	return storeFixture{store: store, log: log, clock: clock}
}

// loginEntries returns auth.login entries, newest first.
func (f storeFixture) loginEntries() []audit.Entry {
	var out []audit.Entry
	for _, e := range f.log.List(audit.DefaultCapacity) {
		if e.Action == audit.ActionLogin {
			out = append(out, e)
		}
	}
	return out
}

func (f storeFixture) register(t *testing.T, email, password string) auth.User {
	t.Helper()
	user, err := f.store.Register(t.Context(), auth.RegisterParams{
		Email:    email,
		Name:     "Test User",
		Password: password,
	})
	require.NoError(t, err)
	return user
}
