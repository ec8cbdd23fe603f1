// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package auth_test

import (
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/pkg/errutil"
)

func newSessionFixture(t *testing.T) (storeFixture, *auth.SessionManager) {
	t.Helper()
	f := newStoreFixture(t)
	sessions, err := auth.NewSessionManager(f.store, auth.WithSessionClock(f.clock))
	require.NoError(t, err)
	return f, sessions
}

func TestGenerateSessionToken(t *testing.T) {
	token, hash, err := auth.GenerateSessionToken()
	require.NoError(t, err)

	assert.Len(t, token, auth.SessionTokenBytes*2)
	_, err = hex.DecodeString(token)
	assert.NoError(t, err)
	assert.Equal(t, auth.HashSessionToken(token), hash)
	assert.NotEqual(t, token, hash)

	other, _, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestNewSessionManager_RequiresLookup(t *testing.T) {
	_, err := auth.NewSessionManager(nil)
	errutil.AssertErrorCode(t, err, "SESSION_INVALID_CONFIG")
}

func TestSessionManager_CreateAndResolve(t *testing.T) {
	f, sessions := newSessionFixture(t)
	user := f.register(t, "alice@example.com", alicePassword)

	session, err := sessions.Create(t.Context(), user)
	require.NoError(t, err)
	assert.Len(t, session.Token, 64)
	assert.Equal(t, user.ID, session.UserID)
	assert.Equal(t, f.clock.Now(), session.CreatedAt)
	assert.Equal(t, session.CreatedAt, session.LastSeenAt)
	assert.Equal(t, 1, sessions.Count())

	f.clock.Advance(5 * time.Minute)
	resolved, owner, ok := sessions.Resolve(t.Context(), session.Token)
	require.True(t, ok)
	assert.Equal(t, user.ID, owner.ID)
	assert.Equal(t, "alice@example.com", owner.Email)
	assert.Equal(t, session.Token, resolved.Token)
	assert.Equal(t, session.CreatedAt, resolved.CreatedAt)
	assert.Equal(t, f.clock.Now(), resolved.LastSeenAt, "resolve refreshes last seen")
}

func TestSessionManager_CreateRejectsZeroUser(t *testing.T) {
	_, sessions := newSessionFixture(t)
	_, err := sessions.Create(t.Context(), auth.User{})
	errutil.AssertErrorCode(t, err, "SESSION_INVALID_USER")
}

func TestSessionManager_ResolveUnknownAndEmpty(t *testing.T) {
	_, sessions := newSessionFixture(t)

	_, _, ok := sessions.Resolve(t.Context(), "")
	assert.False(t, ok)

	token, _, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	_, _, ok = sessions.Resolve(t.Context(), token)
	assert.False(t, ok)
}

func TestSessionManager_DestroyThenResolve(t *testing.T) {
	f, sessions := newSessionFixture(t)
	user := f.register(t, "alice@example.com", alicePassword)

	session, err := sessions.Create(t.Context(), user)
	require.NoError(t, err)

	sessions.Destroy(t.Context(), session.Token)
	_, _, ok := sessions.Resolve(t.Context(), session.Token)
	assert.False(t, ok)
	assert.Zero(t, sessions.Count())

	// Idempotent, including for unknown and empty tokens.
	sessions.Destroy(t.Context(), session.Token)
	sessions.Destroy(t.Context(), "")
	sessions.Destroy(t.Context(), "deadbeef")
}

func TestSessionManager_ResolvePurgesRemovedUser(t *testing.T) {
	f, sessions := newSessionFixture(t)
	user := f.register(t, "alice@example.com", alicePassword)

	session, err := sessions.Create(t.Context(), user)
	require.NoError(t, err)
	require.NoError(t, f.store.Remove(t.Context(), user.ID))

	assert.Equal(t, 1, sessions.Count(), "no eager sweep")
	_, _, ok := sessions.Resolve(t.Context(), session.Token)
	assert.False(t, ok)
	assert.Zero(t, sessions.Count(), "session purged on resolve")
}

func TestSessionManager_TokensAreIndependent(t *testing.T) {
	f, sessions := newSessionFixture(t)
	user := f.register(t, "alice@example.com", alicePassword)

	first, err := sessions.Create(t.Context(), user)
	require.NoError(t, err)
	second, err := sessions.Create(t.Context(), user)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	sessions.Destroy(t.Context(), first.Token)
	_, _, ok := sessions.Resolve(t.Context(), second.Token)
	assert.True(t, ok)
}

func TestSessionManager_DestroyForUser(t *testing.T) {
	f, sessions := newSessionFixture(t)
	alice := f.register(t, "alice@example.com", alicePassword)
	bob := f.register(t, "bob@example.com", alicePassword)

	for range 3 {
		_, err := sessions.Create(t.Context(), alice)
		require.NoError(t, err)
	}
	bobSession, err := sessions.Create(t.Context(), bob)
	require.NoError(t, err)

	assert.Equal(t, 3, sessions.DestroyForUser(t.Context(), alice.ID))
	assert.Zero(t, sessions.DestroyForUser(t.Context(), ulid.Make()))
	assert.Equal(t, 1, sessions.Count())

	_, _, ok := sessions.Resolve(t.Context(), bobSession.Token)
	assert.True(t, ok)
}

func TestSessionManager_ConcurrentResolveAndDestroy(t *testing.T) {
	f, sessions := newSessionFixture(t)
	user := f.register(t, "alice@example.com", alicePassword)

	session, err := sessions.Create(t.Context(), user)
	require.NoError(t, err)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, owner, ok := sessions.Resolve(t.Context(), session.Token); ok {
				assert.Equal(t, user.ID, owner.ID)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		sessions.Destroy(t.Context(), session.Token)
	}()
	close(start)
	wg.Wait()

	_, _, ok := sessions.Resolve(t.Context(), session.Token)
	assert.False(t, ok)
	assert.Zero(t, sessions.Count())
}
