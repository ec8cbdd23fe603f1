// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

// Package access provides role-based authorization for OrderDesk.
//
// Decisions are made in two independent layers, evaluated in order:
//   - the route gate: a static mapping from operation patterns (such as
//     "/admin/logs") to the roles permitted to invoke them;
//   - the ownership gate: admins and managers may view and mutate every
//     order, customers only the orders they own.
//
// A route-gate denial is final; the ownership gate is consulted only for
// operations that pass the route gate. All decision functions are pure and
// total: they never fail and never log on the caller's behalf, so callers
// decide what to audit.
package access

import (
	"errors"

	"github.com/oklog/ulid/v2"

	"github.com/orderdesk/orderdesk/internal/auth"
)

// ErrForbidden is returned by callers that surface a Deny as an error.
var ErrForbidden = errors.New("Forbidden")

// Actor is the authenticated principal a decision is made for.
type Actor struct {
	ID   ulid.ULID
	Role auth.Role
}

// ActorFor returns the actor for an authenticated user.
func ActorFor(user auth.User) Actor {
	return Actor{ID: user.ID, Role: user.Role}
}

// Decision is the outcome of an authorization check.
type Decision int

// Decisions. The zero value denies.
const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Allowed reports whether d is Allow.
func (d Decision) Allowed() bool { return d == Allow }

// Layer names the gate that produced a decision.
type Layer string

// Decision layers.
const (
	LayerRoute     Layer = "route"
	LayerOwnership Layer = "ownership"
)

// Result is a decision together with the layer that made it. Rule is the
// route pattern responsible for a route-layer denial.
type Result struct {
	Decision Decision
	Layer    Layer
	Rule     string
}

// Allowed reports whether the result permits the operation.
func (r Result) Allowed() bool { return r.Decision.Allowed() }
