// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package access

import (
	"github.com/oklog/ulid/v2"

	"github.com/orderdesk/orderdesk/internal/auth"
)

// managesAll reports whether role may see and change every order.
func managesAll(role auth.Role) bool {
	return role == auth.RoleAdmin || role == auth.RoleManager
}

// owns reports whether actor owns a resource. The zero ID owns nothing.
func owns(actor Actor, ownerID ulid.ULID) bool {
	return actor.ID.Compare(ulid.ULID{}) != 0 && actor.ID == ownerID
}

// CanView reports whether actor may see a resource owned by ownerID.
func CanView(actor Actor, ownerID ulid.ULID) bool {
	return managesAll(actor.Role) || owns(actor, ownerID)
}

// CanMutate decides whether actor may update or delete a resource owned by
// ownerID: admins and managers always, anyone else only their own.
func CanMutate(actor Actor, ownerID ulid.ULID) Decision {
	if managesAll(actor.Role) || owns(actor, ownerID) {
		return Allow
	}
	return Deny
}

// FilterVisible returns the items actor may see, preserving order.
func FilterVisible[T any](actor Actor, items []T, owner func(T) ulid.ULID) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if CanView(actor, owner(item)) {
			out = append(out, item)
		}
	}
	return out
}
