// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package access

import (
	"maps"
	"slices"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/orderdesk/orderdesk/internal/auth"
)

// DefaultRestrictions returns the built-in route restrictions: the audit log
// is admin only.
func DefaultRestrictions() map[string][]auth.Role {
	return map[string][]auth.Role{
		"/admin/logs": {auth.RoleAdmin},
	}
}

// DefaultPublicRoutes returns the operations reachable without a session.
func DefaultPublicRoutes() []string {
	return []string{"/", "/login", "/login/**", "/register", "/register/**"}
}

// compiledRule holds a route pattern, its compiled glob and permitted roles.
type compiledRule struct {
	pattern string
	glob    glob.Glob
	roles   []auth.Role
}

// RouteGate maps operation patterns to the roles allowed to invoke them.
// Patterns are globs with '/' as separator, so "/admin/*" matches one path
// segment and "/admin/**" any number.
//
// Thread-safety: rules and public are replaced wholesale by Reload under mu.
type RouteGate struct {
	mu     sync.RWMutex
	rules  []compiledRule
	public []compiledRule
}

// NewRouteGate compiles restrictions and public patterns.
// Returns error if any pattern fails to compile or names an unknown role.
func NewRouteGate(restrictions map[string][]auth.Role, public []string) (*RouteGate, error) {
	g := &RouteGate{}
	if err := g.Reload(restrictions, public); err != nil {
		return nil, err
	}
	return g, nil
}

// NewDefaultRouteGate creates a RouteGate with the built-in rules.
//
// Panics if the defaults fail to compile (a code bug).
func NewDefaultRouteGate() *RouteGate {
	g, err := NewRouteGate(DefaultRestrictions(), DefaultPublicRoutes())
	if err != nil {
		panic("invalid default route rule: " + err.Error())
	}
	return g
}

// Reload atomically replaces the rule set. On error the previous rules stay
// in effect.
func (g *RouteGate) Reload(restrictions map[string][]auth.Role, public []string) error {
	rules := make([]compiledRule, 0, len(restrictions))
	for _, pattern := range slices.Sorted(maps.Keys(restrictions)) {
		roles := restrictions[pattern]
		for _, r := range roles {
			if !r.Valid() {
				return oops.In("access").
					Code("INVALID_ROUTE_ROLE").
					With("pattern", pattern).
					With("role", r).
					Errorf("unknown role %q", r)
			}
		}
		compiled, err := compileRoute(pattern)
		if err != nil {
			return err
		}
		compiled.roles = slices.Clone(roles)
		rules = append(rules, compiled)
	}

	publicRules := make([]compiledRule, 0, len(public))
	for _, pattern := range public {
		compiled, err := compileRoute(pattern)
		if err != nil {
			return err
		}
		publicRules = append(publicRules, compiled)
	}

	g.mu.Lock()
	g.rules = rules
	g.public = publicRules
	g.mu.Unlock()
	return nil
}

func compileRoute(pattern string) (compiledRule, error) {
	gl, err := glob.Compile(pattern, '/')
	if err != nil {
		return compiledRule{}, oops.In("access").
			Code("INVALID_ROUTE_PATTERN").
			With("pattern", pattern).
			Wrap(err)
	}
	return compiledRule{pattern: pattern, glob: gl}, nil
}

// Check decides whether role may invoke operation. An operation matched by
// no rule is allowed; otherwise every matching rule must list the role.
// On Deny, the returned rule is the first pattern that excluded the role.
func (g *RouteGate) Check(role auth.Role, operation string) (Decision, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, rule := range g.rules {
		if !rule.glob.Match(operation) {
			continue
		}
		if !slices.Contains(rule.roles, role) {
			return Deny, rule.pattern
		}
	}
	return Allow, ""
}

// RequiredRoles returns the roles accepted by every rule matching operation,
// or nil when the operation is unrestricted.
func (g *RouteGate) RequiredRoles(operation string) []auth.Role {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var allowed []auth.Role
	matched := false
	for _, rule := range g.rules {
		if !rule.glob.Match(operation) {
			continue
		}
		if !matched {
			allowed = slices.Clone(rule.roles)
			matched = true
			continue
		}
		allowed = slices.DeleteFunc(allowed, func(r auth.Role) bool {
			return !slices.Contains(rule.roles, r)
		})
	}
	if matched && allowed == nil {
		return []auth.Role{}
	}
	return allowed
}

// IsPublic reports whether operation may be invoked without a session.
func (g *RouteGate) IsPublic(operation string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, rule := range g.public {
		if rule.glob.Match(operation) {
			return true
		}
	}
	return false
}

// Patterns returns the restricted patterns in sorted order.
func (g *RouteGate) Patterns() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.rules))
	for _, rule := range g.rules {
		out = append(out, rule.pattern)
	}
	return out
}

// Roles returns the roles listed by the rule with the given pattern, or nil
// if there is no such rule.
func (g *RouteGate) Roles(pattern string) []auth.Role {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, rule := range g.rules {
		if rule.pattern == pattern {
			return slices.Clone(rule.roles)
		}
	}
	return nil
}

// PublicPatterns returns the public route patterns in configured order.
func (g *RouteGate) PublicPatterns() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.public))
	for _, rule := range g.public {
		out = append(out, rule.pattern)
	}
	return out
}
