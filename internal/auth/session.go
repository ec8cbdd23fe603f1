// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionTokenBytes is the entropy of a session token; tokens are hex
// encoded, so 32 bytes give 64 characters.
const SessionTokenBytes = 32

// Session is an authenticated session. Token is only populated on the value
// returned by Create; the manager itself keeps only the token's digest.
type Session struct {
	Token      string
	UserID     ulid.ULID
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// UserLookup resolves the owner of a session.
type UserLookup interface {
	GetByID(ctx context.Context, id ulid.ULID) (User, error)
}

// SessionManager issues and resolves session tokens. It is safe for
// concurrent use.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session // keyed by token hash
	users    UserLookup
	clock    Clock
	logger   *slog.Logger
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithSessionClock sets the time source.
func WithSessionClock(clock Clock) SessionOption {
	return func(m *SessionManager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithSessionLogger sets the logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewSessionManager creates a SessionManager resolving owners through users.
func NewSessionManager(users UserLookup, opts ...SessionOption) (*SessionManager, error) {
	if users == nil {
		return nil, oops.Code("SESSION_INVALID_CONFIG").Errorf("user lookup is required")
	}
	m := &SessionManager{
		sessions: make(map[string]*Session),
		users:    users,
		clock:    SystemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// Create starts a session for user.
func (m *SessionManager) Create(ctx context.Context, user User) (Session, error) {
	if user.ID.Compare(ulid.ULID{}) == 0 {
		return Session{}, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}

	token, hash, err := GenerateSessionToken()
	if err != nil {
		return Session{}, err
	}

	now := m.clock.Now()
	stored := &Session{UserID: user.ID, CreatedAt: now, LastSeenAt: now}

	m.mu.Lock()
	m.sessions[hash] = stored
	sessionsGauge.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "session created", "user_id", user.ID.String())

	out := *stored
	out.Token = token
	return out, nil
}

// Resolve returns the session for token and its owner. It reports false for
// an empty or unknown token, and for a session whose owner no longer exists;
// such a session is purged. A successful resolve refreshes LastSeenAt.
func (m *SessionManager) Resolve(ctx context.Context, token string) (Session, User, bool) {
	if token == "" {
		return Session{}, User{}, false
	}
	hash := HashSessionToken(token)

	m.mu.RLock()
	stored, ok := m.sessions[hash]
	var userID ulid.ULID
	if ok {
		userID = stored.UserID
	}
	m.mu.RUnlock()
	if !ok {
		return Session{}, User{}, false
	}

	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		m.mu.Lock()
		if m.sessions[hash] == stored {
			delete(m.sessions, hash)
			sessionsGauge.Set(float64(len(m.sessions)))
		}
		m.mu.Unlock()
		m.logger.InfoContext(ctx, "purged session for missing user", "user_id", userID.String())
		return Session{}, User{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent Destroy wins over this resolve.
	if m.sessions[hash] != stored {
		return Session{}, User{}, false
	}
	stored.LastSeenAt = m.clock.Now()
	out := *stored
	out.Token = token
	return out, user, true
}

// Destroy ends the session for token. Unknown and empty tokens are ignored.
func (m *SessionManager) Destroy(ctx context.Context, token string) {
	if token == "" {
		return
	}
	hash := HashSessionToken(token)

	m.mu.Lock()
	_, ok := m.sessions[hash]
	delete(m.sessions, hash)
	sessionsGauge.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	if ok {
		m.logger.DebugContext(ctx, "session destroyed")
	}
}

// DestroyForUser ends every session owned by userID and returns how many
// were removed.
func (m *SessionManager) DestroyForUser(ctx context.Context, userID ulid.ULID) int {
	m.mu.Lock()
	removed := 0
	for hash, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, hash)
			removed++
		}
	}
	sessionsGauge.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	if removed > 0 {
		m.logger.InfoContext(ctx, "sessions destroyed for user", "user_id", userID.String(), "count", removed)
	}
	return removed
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
