// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package core

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/orderdesk/orderdesk/internal/access"
	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/orders"
	"github.com/orderdesk/orderdesk/internal/validate"
)

var tracer = otel.Tracer("github.com/orderdesk/orderdesk/internal/core")

// AuditTrailOperation is the operation that guards the audit trail.
const AuditTrailOperation = "/admin/logs"

const registrationFailureDetail = "Duplicate or invalid data"

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Hasher         auth.PasswordHasher
	Clock          auth.Clock
	Lockout        auth.LockoutPolicy
	MinPasswordAge time.Duration
	HistoryLimit   int
	Routes         *access.RouteGate
	Audit          *audit.Log
	Logger         *slog.Logger
}

// Engine is the security core of the orders application.
type Engine struct {
	users    *auth.Store
	sessions *auth.SessionManager
	access   *access.Engine
	orders   *orders.Service
	audit    *audit.Log
	logger   *slog.Logger
	ready    atomic.Bool
}

// NewEngine builds an Engine. The audit log passed in Options is owned by the
// Engine from then on and is closed by Close.
func NewEngine(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = auth.SystemClock{}
	}
	hasher := opts.Hasher
	if hasher == nil {
		h, err := auth.NewScryptHasher(auth.DefaultScryptParams())
		if err != nil {
			return nil, err
		}
		hasher = h
	}
	log := opts.Audit
	if log == nil {
		log = audit.NewLog(audit.WithClock(clock.Now), audit.WithLogger(logger))
	}

	storeOpts := []auth.StoreOption{
		auth.WithClock(clock),
		auth.WithLockoutPolicy(opts.Lockout),
		auth.WithHistoryLimit(opts.HistoryLimit),
		auth.WithLogger(logger),
	}
	if opts.MinPasswordAge > 0 {
		storeOpts = append(storeOpts, auth.WithMinPasswordAge(opts.MinPasswordAge))
	}
	users, err := auth.NewStore(hasher, log, storeOpts...)
	if err != nil {
		return nil, oops.In("core").Wrap(err)
	}
	sessions, err := auth.NewSessionManager(users, auth.WithSessionClock(clock), auth.WithSessionLogger(logger))
	if err != nil {
		return nil, oops.In("core").Wrap(err)
	}
	authz := access.NewEngine(opts.Routes, logger)
	svc, err := orders.NewService(authz, log, orders.WithClock(clock.Now), orders.WithLogger(logger))
	if err != nil {
		return nil, oops.In("core").Wrap(err)
	}

	e := &Engine{
		users:    users,
		sessions: sessions,
		access:   authz,
		orders:   svc,
		audit:    log,
		logger:   logger,
	}
	e.ready.Store(true)
	return e, nil
}

// Users returns the credential store.
func (e *Engine) Users() *auth.Store { return e.users }

// Orders returns the order service.
func (e *Engine) Orders() *orders.Service { return e.orders }

// Access returns the authorization engine.
func (e *Engine) Access() *access.Engine { return e.access }

// Ready reports whether the engine accepts requests.
func (e *Engine) Ready() bool { return e.ready.Load() }

// Stats is a point-in-time count of the engine's state.
type Stats struct {
	Users        int
	Sessions     int
	Orders       int
	AuditEntries int
}

// Stats counts registered users, live sessions, orders, and retained audit
// entries.
func (e *Engine) Stats() Stats {
	return Stats{
		Users:        e.users.Count(),
		Sessions:     e.sessions.Count(),
		Orders:       e.orders.Count(),
		AuditEntries: e.audit.Len(),
	}
}

// Close stops accepting requests and flushes the audit mirror.
func (e *Engine) Close() error {
	e.ready.Store(false)
	if err := e.audit.Close(); err != nil {
		return oops.In("core").Wrap(err)
	}
	return nil
}

// Register validates a registration form and creates a customer account.
// A policy violation returns the validation error; a duplicate email returns
// ErrRegistrationFailed.
func (e *Engine) Register(ctx context.Context, email, name, password, confirm string) (auth.User, error) {
	ctx, span := tracer.Start(ctx, "core.register")
	defer span.End()

	if err := validate.Registration(email, name, password, confirm); err != nil {
		detail := validate.Message(err)
		var verr *validate.Error
		if errors.As(err, &verr) && verr.Field == "confirm" {
			detail = validate.MsgPasswordMismatchAudit
		}
		e.audit.Record(ctx, audit.Event{
			Action:  audit.ActionRegisterValidation,
			Outcome: audit.OutcomeFailure,
			Detail:  detail,
		})
		endSpan(span, err)
		return auth.User{}, err
	}

	user, err := e.users.Register(ctx, auth.RegisterParams{
		Email:    email,
		Name:     name,
		Password: password,
		Role:     auth.RoleCustomer,
	})
	if err != nil {
		e.audit.Record(ctx, audit.Event{
			Action:  audit.ActionUserRegister,
			Outcome: audit.OutcomeFailure,
			Detail:  registrationFailureDetail,
		})
		endSpan(span, err)
		if errors.Is(err, auth.ErrDuplicateEmail) {
			return auth.User{}, oops.Code("REGISTRATION_FAILED").Wrap(ErrRegistrationFailed)
		}
		return auth.User{}, oops.Wrap(err)
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	return user, nil
}

// Authenticate checks credentials. See auth.Store.Authenticate.
func (e *Engine) Authenticate(ctx context.Context, email, password, origin string) (auth.User, error) {
	ctx, span := tracer.Start(ctx, "core.authenticate")
	defer span.End()

	user, err := e.users.Authenticate(ctx, email, password, origin)
	if err != nil {
		endSpan(span, err)
		return auth.User{}, err
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	return user, nil
}

// Login authenticates and opens a session.
func (e *Engine) Login(ctx context.Context, email, password, origin string) (auth.Session, auth.User, error) {
	user, err := e.Authenticate(ctx, email, password, origin)
	if err != nil {
		return auth.Session{}, auth.User{}, err
	}
	sess, err := e.CreateSession(ctx, user)
	if err != nil {
		return auth.Session{}, auth.User{}, err
	}
	return sess, user, nil
}

// Logout destroys the session behind token. Unknown tokens are ignored.
func (e *Engine) Logout(ctx context.Context, token string) {
	sess, _, ok := e.sessions.Resolve(ctx, token)
	e.sessions.Destroy(ctx, token)
	if !ok {
		return
	}
	e.audit.Record(ctx, audit.Event{
		Action:  audit.ActionLogout,
		Outcome: audit.OutcomeSuccess,
		UserID:  sess.UserID,
	})
}

// ChangePassword checks the new password against the policy and its
// confirmation, then rotates it. See auth.Store.ChangePassword for the
// rotation rules.
func (e *Engine) ChangePassword(ctx context.Context, userID ulid.ULID, current, next, confirm string) error {
	ctx, span := tracer.Start(ctx, "core.change_password",
		trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	err := validate.Password(next)
	if err == nil {
		err = validate.Confirmation(next, confirm)
	}
	if err != nil {
		e.audit.Record(ctx, audit.Event{
			Action:  audit.ActionPasswordChange,
			Outcome: audit.OutcomeFailure,
			UserID:  userID,
			Detail:  validate.Message(err),
		})
		endSpan(span, err)
		return err
	}

	if err := e.users.ChangePassword(ctx, userID, current, next); err != nil {
		endSpan(span, err)
		return err
	}
	return nil
}

// CreateSession opens a session for an authenticated user.
func (e *Engine) CreateSession(ctx context.Context, user auth.User) (auth.Session, error) {
	sess, err := e.sessions.Create(ctx, user)
	if err != nil {
		return auth.Session{}, oops.In("core").Wrap(err)
	}
	return sess, nil
}

// ResolveSession returns the live session and current user for token.
func (e *Engine) ResolveSession(ctx context.Context, token string) (auth.Session, auth.User, bool) {
	return e.sessions.Resolve(ctx, token)
}

// DestroySession invalidates token. It is idempotent.
func (e *Engine) DestroySession(ctx context.Context, token string) {
	e.sessions.Destroy(ctx, token)
}

// RemoveUser deletes an account and every session it holds.
func (e *Engine) RemoveUser(ctx context.Context, userID ulid.ULID) error {
	if err := e.users.Remove(ctx, userID); err != nil {
		return err
	}
	e.sessions.DestroyForUser(ctx, userID)
	return nil
}

// AuthorizeList returns the orders actor may see.
func (e *Engine) AuthorizeList(ctx context.Context, actor access.Actor) []orders.Order {
	return e.orders.List(ctx, actor)
}

// AuthorizeMutate reports whether actor may update or delete order.
func (e *Engine) AuthorizeMutate(actor access.Actor, order orders.Order) bool {
	return e.access.Authorize(actor, orders.Operation, order.OwnerID).Allowed()
}

// RecordAuditEvent appends an entry to the audit log.
func (e *Engine) RecordAuditEvent(ctx context.Context, ev audit.Event) audit.Entry {
	return e.audit.Record(ctx, ev)
}

// ListAuditEvents returns up to limit entries, newest first. A limit of zero
// or less selects audit.DefaultListLimit.
func (e *Engine) ListAuditEvents(limit int) []audit.Entry {
	return e.audit.List(limit)
}

// AuditTrail is ListAuditEvents behind the route gate for the audit page.
func (e *Engine) AuditTrail(ctx context.Context, actor access.Actor, limit int) ([]audit.Entry, error) {
	if r := e.access.AuthorizeRoute(actor, AuditTrailOperation); !r.Allowed() {
		e.audit.Record(ctx, audit.Event{
			Action:  audit.ActionForbidden,
			Outcome: audit.OutcomeFailure,
			UserID:  actor.ID,
			Detail:  AuditTrailOperation,
		})
		return nil, oops.Code("ACCESS_FORBIDDEN").With("rule", r.Rule).Wrap(access.ErrForbidden)
	}
	return e.audit.List(limit), nil
}

func endSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
