// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package access

import (
	"log/slog"

	"github.com/oklog/ulid/v2"
)

// Engine combines the route gate and the ownership gate.
type Engine struct {
	routes *RouteGate
	logger *slog.Logger
}

// NewEngine creates an Engine. A nil gate uses the built-in rules.
func NewEngine(routes *RouteGate, logger *slog.Logger) *Engine {
	if routes == nil {
		routes = NewDefaultRouteGate()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{routes: routes, logger: logger}
}

// Routes returns the engine's route gate.
func (e *Engine) Routes() *RouteGate {
	return e.routes
}

// AuthorizeRoute evaluates only the route gate.
func (e *Engine) AuthorizeRoute(actor Actor, operation string) Result {
	decision, rule := e.routes.Check(actor.Role, operation)
	r := Result{Decision: decision, Layer: LayerRoute, Rule: rule}
	recordDecision(r)
	if !r.Allowed() {
		e.logger.Debug("route denied",
			"actor", actor.ID.String(),
			"role", string(actor.Role),
			"operation", operation,
			"rule", rule)
	}
	return r
}

// Authorize decides whether actor may mutate a resource owned by ownerID
// through operation. The route gate is consulted first; the ownership gate
// only if the route gate allows.
func (e *Engine) Authorize(actor Actor, operation string, ownerID ulid.ULID) Result {
	if r := e.AuthorizeRoute(actor, operation); !r.Allowed() {
		return r
	}
	r := Result{Decision: CanMutate(actor, ownerID), Layer: LayerOwnership}
	recordDecision(r)
	return r
}

// AuthorizeView is Authorize with the visibility rule in place of the
// mutation rule.
func (e *Engine) AuthorizeView(actor Actor, operation string, ownerID ulid.ULID) Result {
	if r := e.AuthorizeRoute(actor, operation); !r.Allowed() {
		return r
	}
	decision := Deny
	if CanView(actor, ownerID) {
		decision = Allow
	}
	r := Result{Decision: decision, Layer: LayerOwnership}
	recordDecision(r)
	return r
}
