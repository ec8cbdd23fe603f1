// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package core

import (
	"context"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/orderdesk/orderdesk/internal/access"
	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/auth"
)

// Principal is the caller behind a request. It is zero for an anonymous
// caller of a public route.
type Principal struct {
	Session auth.Session
	User    auth.User
}

// Authenticated reports whether the principal carries a session.
func (p Principal) Authenticated() bool { return !p.User.ID.IsZero() }

// Actor returns the principal as an authorization actor.
func (p Principal) Actor() access.Actor { return access.ActorFor(p.User) }

// Guard admits a request for operation. Public routes are admitted without
// a session, though a live one is still resolved. Otherwise a missing or
// expired session is audited as access.unauthenticated and fails with
// ErrUnauthenticated, and a route-gate denial is audited as access.forbidden
// and fails with access.ErrForbidden.
func (e *Engine) Guard(ctx context.Context, token, operation, origin string) (Principal, error) {
	ctx, span := tracer.Start(ctx, "core.guard",
		trace.WithAttributes(attribute.String("operation", operation)))
	defer span.End()

	var p Principal
	sess, user, ok := e.sessions.Resolve(ctx, token)
	if ok {
		p = Principal{Session: sess, User: user}
	}

	if e.access.Routes().IsPublic(operation) {
		return p, nil
	}

	if !ok {
		e.audit.Record(ctx, audit.Event{
			Action:  audit.ActionUnauthenticated,
			Outcome: audit.OutcomeFailure,
			Detail:  operation,
			Origin:  origin,
		})
		endSpan(span, ErrUnauthenticated)
		return Principal{}, oops.Code("UNAUTHENTICATED").With("operation", operation).Wrap(ErrUnauthenticated)
	}

	if r := e.access.AuthorizeRoute(p.Actor(), operation); !r.Allowed() {
		e.audit.Record(ctx, audit.Event{
			Action:  audit.ActionForbidden,
			Outcome: audit.OutcomeFailure,
			UserID:  user.ID,
			Detail:  operation,
			Origin:  origin,
		})
		endSpan(span, access.ErrForbidden)
		return Principal{}, oops.Code("ACCESS_FORBIDDEN").With("operation", operation).With("rule", r.Rule).Wrap(access.ErrForbidden)
	}

	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	return p, nil
}
