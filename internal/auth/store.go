// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/idgen"
)

// Credential policy defaults.
const (
	DefaultMinPasswordAge = 24 * time.Hour
	DefaultHistoryLimit   = 3
)

// A snapshot-then-apply operation is retried this many times when the
// record changes between the snapshot and the apply.
const (
	maxApplyRetries = 3
	applyRetryDelay = time.Millisecond
)

// dummyPassword is hashed once and verified against when an unknown email
// is presented, so unknown accounts cost the same as known ones.
const dummyPassword = "orderdesk-timing-parity"

// errStaleSnapshot signals that the record changed while hashing off-lock.
var errStaleSnapshot = errors.New("user record changed during operation")

// RegisterParams holds registration input. An empty Role registers a
// customer.
type RegisterParams struct {
	Email    string
	Name     string
	Password string
	Role     Role
}

// Store is the in-memory credential store. Users are keyed by normalized
// email with a secondary index by ID; both maps change together under mu.
type Store struct {
	mu        sync.RWMutex
	users     map[string]*User
	emailByID map[ulid.ULID]string

	hasher         PasswordHasher
	recorder       audit.Recorder
	clock          Clock
	lockout        LockoutPolicy
	minPasswordAge time.Duration
	historyLimit   int
	logger         *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the time source.
func WithClock(clock Clock) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLockoutPolicy overrides the lockout threshold and duration.
func WithLockoutPolicy(policy LockoutPolicy) StoreOption {
	return func(s *Store) {
		if policy.Threshold > 0 && policy.Duration > 0 {
			s.lockout = policy
		}
	}
}

// WithMinPasswordAge sets how long a password must be kept before it can be
// changed again.
func WithMinPasswordAge(d time.Duration) StoreOption {
	return func(s *Store) {
		if d >= 0 {
			s.minPasswordAge = d
		}
	}
}

// WithHistoryLimit sets how many password hashes are retained.
func WithHistoryLimit(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an empty Store.
func NewStore(hasher PasswordHasher, recorder audit.Recorder, opts ...StoreOption) (*Store, error) {
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if recorder == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("audit recorder is required")
	}

	s := &Store{
		users:          make(map[string]*User),
		emailByID:      make(map[ulid.ULID]string),
		hasher:         hasher,
		recorder:       recorder,
		clock:          SystemClock{},
		lockout:        DefaultLockoutPolicy(),
		minPasswordAge: DefaultMinPasswordAge,
		historyLimit:   DefaultHistoryLimit,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates a new user. The password is expected to have passed
// policy validation already.
func (s *Store) Register(ctx context.Context, p RegisterParams) (User, error) {
	email := NormalizeEmail(p.Email)
	if email == "" {
		return User{}, oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	role := p.Role
	if role == "" {
		role = RoleCustomer
	}
	if !role.Valid() {
		return User{}, oops.Code("AUTH_INVALID_ROLE").With("role", role).Wrap(ErrInvalidRole)
	}

	s.mu.RLock()
	_, exists := s.users[email]
	s.mu.RUnlock()
	if exists {
		return User{}, oops.Code("AUTH_DUPLICATE_EMAIL").With("email", email).Wrap(ErrDuplicateEmail)
	}

	hash, err := s.hash(p.Password)
	if err != nil {
		return User{}, err
	}

	now := s.clock.Now()
	user := &User{
		ID:                idgen.At(now),
		Email:             email,
		Name:              strings.TrimSpace(p.Name),
		Role:              role,
		PasswordHash:      hash,
		PasswordHistory:   []PasswordHistoryEntry{{Hash: hash, ChangedAt: now}},
		PasswordChangedAt: now,
		CreatedAt:         now,
	}

	s.mu.Lock()
	if _, exists := s.users[email]; exists {
		s.mu.Unlock()
		return User{}, oops.Code("AUTH_DUPLICATE_EMAIL").With("email", email).Wrap(ErrDuplicateEmail)
	}
	s.users[email] = user
	s.emailByID[user.ID] = email
	out := user.clone()
	s.mu.Unlock()

	s.recorder.Record(ctx, audit.Event{
		Action:  audit.ActionUserRegister,
		Outcome: audit.OutcomeSuccess,
		UserID:  out.ID,
		Detail:  "Registered " + email,
	})
	s.logger.InfoContext(ctx, "user registered", "user_id", out.ID.String(), "role", string(out.Role))
	return out, nil
}

type loginOutcome int

const (
	loginUnknown loginOutcome = iota
	loginLocked
	loginFailed
	loginSucceeded
)

// Authenticate checks email and password. It fails with ErrAccountLocked
// while a lockout is in effect (without counting the attempt) and with
// ErrInvalidCredentials for an unknown email or a wrong password. Every call
// records exactly one auth.login audit entry.
func (s *Store) Authenticate(ctx context.Context, email, password, origin string) (User, error) {
	email = NormalizeEmail(email)

	var (
		outcome loginOutcome
		user    User
	)
	err := retry.Do(context.WithoutCancel(ctx), applyBackoff(), func(_ context.Context) error {
		var stale bool
		outcome, user, stale = s.tryAuthenticate(email, password)
		if stale {
			return retry.RetryableError(errStaleSnapshot)
		}
		return nil
	})

	event := audit.Event{Action: audit.ActionLogin, Outcome: audit.OutcomeFailure, UserID: user.ID, Origin: origin}
	if err != nil {
		event.Detail = "Concurrent update"
		s.recorder.Record(ctx, event)
		loginCounter.WithLabelValues("conflict").Inc()
		s.logger.WarnContext(ctx, "authentication abandoned after repeated conflicts", "user_id", user.ID.String())
		return User{}, oops.Code("AUTH_INVALID_CREDENTIALS").With("user_id", user.ID.String()).Wrap(ErrInvalidCredentials)
	}

	switch outcome {
	case loginUnknown:
		event.Detail = "Unknown account"
		s.recorder.Record(ctx, event)
		loginCounter.WithLabelValues("invalid_credentials").Inc()
		return User{}, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)

	case loginLocked:
		event.Detail = "Locked"
		s.recorder.Record(ctx, event)
		loginCounter.WithLabelValues("locked").Inc()
		return User{}, oops.Code("AUTH_ACCOUNT_LOCKED").With("user_id", user.ID.String()).Wrap(ErrAccountLocked)

	case loginFailed:
		event.Detail = fmt.Sprintf("Failed attempts: %d", user.FailedAttempts)
		s.recorder.Record(ctx, event)
		loginCounter.WithLabelValues("invalid_credentials").Inc()
		if user.FailedAttempts >= s.lockout.Threshold {
			lockoutsCounter.Inc()
			s.logger.WarnContext(ctx, "account locked",
				"user_id", user.ID.String(),
				"failed_attempts", user.FailedAttempts,
				"locked_until", user.LockedUntil,
			)
		}
		return User{}, oops.Code("AUTH_INVALID_CREDENTIALS").With("user_id", user.ID.String()).Wrap(ErrInvalidCredentials)
	}

	event.Outcome = audit.OutcomeSuccess
	s.recorder.Record(ctx, event)
	loginCounter.WithLabelValues("success").Inc()
	s.maybeRehash(ctx, user, password)
	return user, nil
}

// tryAuthenticate verifies against a snapshot off-lock and applies the
// outcome under the lock. stale is true when the record changed in between.
func (s *Store) tryAuthenticate(email, password string) (outcome loginOutcome, user User, stale bool) {
	snap, ok := s.snapshotByEmail(email)
	if !ok {
		s.hasher.Verify(password, s.dummy())
		return loginUnknown, User{}, false
	}
	if snap.IsLockedAt(s.clock.Now()) {
		return loginLocked, snap, false
	}

	match := s.hasher.Verify(password, snap.PasswordHash)

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok || u.ID != snap.ID || u.PasswordHash != snap.PasswordHash {
		return loginUnknown, snap, true
	}
	now := s.clock.Now()
	if u.IsLockedAt(now) {
		return loginLocked, u.clone(), false
	}
	if match {
		u.RecordSuccess(now)
		return loginSucceeded, u.clone(), false
	}
	u.RecordFailure(now, s.lockout)
	return loginFailed, u.clone(), false
}

// maybeRehash upgrades the stored hash after a successful login when the
// hasher's parameters have changed since it was produced.
func (s *Store) maybeRehash(ctx context.Context, user User, password string) {
	rh, ok := s.hasher.(interface{ NeedsRehash(encoded string) bool })
	if !ok || !rh.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := s.hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "user_id", user.ID.String(), "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.byIDLocked(user.ID)
	if u == nil || u.PasswordHash != user.PasswordHash {
		return
	}
	u.PasswordHash = hash
	if len(u.PasswordHistory) > 0 && u.PasswordHistory[0].Hash == user.PasswordHash {
		u.PasswordHistory[0].Hash = hash
	}
	s.logger.InfoContext(ctx, "password hash upgraded", "user_id", user.ID.String())
}

// ChangePassword rotates a user's password. Checks run in order: minimum
// age, current password, reuse against every retained history entry. The
// new password is expected to have passed policy validation already.
func (s *Store) ChangePassword(ctx context.Context, userID ulid.ULID, current, next string) error {
	err := retry.Do(context.WithoutCancel(ctx), applyBackoff(), func(_ context.Context) error {
		return s.tryChangePassword(userID, current, next)
	})

	event := audit.Event{Action: audit.ActionPasswordChange, UserID: userID}
	if err != nil {
		if errors.Is(err, errStaleSnapshot) {
			err = oops.Code("AUTH_CONFLICT").Wrap(err)
		}
		event.Outcome = audit.OutcomeFailure
		event.Detail = err.Error()
		s.recorder.Record(ctx, event)
		passwordChangeCounter.WithLabelValues(changeResult(err)).Inc()
		return oops.With("user_id", userID.String()).Wrap(err)
	}

	event.Outcome = audit.OutcomeSuccess
	s.recorder.Record(ctx, event)
	passwordChangeCounter.WithLabelValues("success").Inc()
	s.logger.InfoContext(ctx, "password changed", "user_id", userID.String())
	return nil
}

func (s *Store) tryChangePassword(userID ulid.ULID, current, next string) error {
	snap, ok := s.snapshotByID(userID)
	if !ok {
		return oops.Code("AUTH_NOT_FOUND").Wrap(ErrNotFound)
	}
	if s.clock.Now().Sub(snap.PasswordChangedAt) < s.minPasswordAge {
		return oops.Code("AUTH_PASSWORD_TOO_RECENT").Wrap(ErrPasswordTooRecent)
	}
	if !s.hasher.Verify(current, snap.PasswordHash) {
		return oops.Code("AUTH_WRONG_CURRENT_PASSWORD").Wrap(ErrWrongCurrentPassword)
	}
	for _, prev := range snap.PasswordHistory {
		if s.hasher.Verify(next, prev.Hash) {
			return oops.Code("AUTH_PASSWORD_REUSED").Wrap(ErrPasswordReused)
		}
	}
	hash, err := s.hash(next)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.byIDLocked(userID)
	if u == nil {
		return oops.Code("AUTH_NOT_FOUND").Wrap(ErrNotFound)
	}
	if u.PasswordHash != snap.PasswordHash || !u.PasswordChangedAt.Equal(snap.PasswordChangedAt) {
		return retry.RetryableError(errStaleSnapshot)
	}
	u.SetPassword(hash, s.clock.Now(), s.historyLimit)
	return nil
}

func changeResult(err error) string {
	switch {
	case errors.Is(err, ErrPasswordTooRecent):
		return "too_recent"
	case errors.Is(err, ErrWrongCurrentPassword):
		return "wrong_current"
	case errors.Is(err, ErrPasswordReused):
		return "reused"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// GetByID returns a copy of the user with the given ID.
func (s *Store) GetByID(_ context.Context, id ulid.ULID) (User, error) {
	u, ok := s.snapshotByID(id)
	if !ok {
		return User{}, oops.Code("AUTH_NOT_FOUND").With("user_id", id.String()).Wrap(ErrNotFound)
	}
	return u, nil
}

// GetByEmail returns a copy of the user with the given email.
func (s *Store) GetByEmail(_ context.Context, email string) (User, error) {
	u, ok := s.snapshotByEmail(NormalizeEmail(email))
	if !ok {
		return User{}, oops.Code("AUTH_NOT_FOUND").With("email", email).Wrap(ErrNotFound)
	}
	return u, nil
}

// Remove deletes a user. Sessions owned by the user are purged lazily on
// their next resolve.
func (s *Store) Remove(ctx context.Context, id ulid.ULID) error {
	s.mu.Lock()
	email, ok := s.emailByID[id]
	if ok {
		delete(s.users, email)
		delete(s.emailByID, id)
	}
	s.mu.Unlock()

	if !ok {
		return oops.Code("AUTH_NOT_FOUND").With("user_id", id.String()).Wrap(ErrNotFound)
	}
	s.recorder.Record(ctx, audit.Event{
		Action:  audit.ActionUserRemove,
		Outcome: audit.OutcomeSuccess,
		UserID:  id,
		Detail:  "Removed " + email,
	})
	s.logger.InfoContext(ctx, "user removed", "user_id", id.String())
	return nil
}

// Count returns the number of registered users.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *Store) snapshotByEmail(email string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return User{}, false
	}
	return u.clone(), true
}

func (s *Store) snapshotByID(id ulid.ULID) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u := s.byIDLocked(id)
	if u == nil {
		return User{}, false
	}
	return u.clone(), true
}

// byIDLocked must be called with mu held.
func (s *Store) byIDLocked(id ulid.ULID) *User {
	email, ok := s.emailByID[id]
	if !ok {
		return nil
	}
	return s.users[email]
}

func (s *Store) hash(password string) (string, error) {
	start := time.Now()
	hash, err := s.hasher.Hash(password)
	hashDuration.Observe(time.Since(start).Seconds())
	return hash, err
}

func (s *Store) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Warn("failed to prepare timing-parity hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func applyBackoff() retry.Backoff {
	return retry.WithMaxRetries(maxApplyRetries, retry.NewConstant(applyRetryDelay))
}
