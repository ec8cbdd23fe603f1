// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package audit

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Outcome is the result recorded with an audit entry.
type Outcome string

// Audit outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Action tags emitted by the core.
const (
	ActionUserRegister       = "user.register"
	ActionLogin              = "auth.login"
	ActionLogout             = "auth.logout"
	ActionPasswordChange     = "user.password.change"
	ActionUserRemove         = "user.remove"
	ActionOrderCreate        = "order.create"
	ActionOrderUpdate        = "order.update"
	ActionOrderDelete        = "order.delete"
	ActionUnauthenticated    = "access.unauthenticated"
	ActionForbidden          = "access.forbidden"
	ActionOrderUpdateDenied  = "access.order.update"
	ActionOrderDeleteDenied  = "access.order.delete"
	ActionRegisterValidation = "validation.register"
	ActionOrderValidation    = "validation.order"
)

// Event is what callers hand to Record. UserID is the zero ULID when no
// acting user is known.
type Event struct {
	Action  string
	Outcome Outcome
	UserID  ulid.ULID
	Detail  string
	Origin  string
}

// Entry is a recorded, immutable audit event.
type Entry struct {
	ID        ulid.ULID `json:"id"`
	UserID    ulid.ULID `json:"user_id,omitzero"`
	Action    string    `json:"action"`
	Outcome   Outcome   `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HasUser reports whether the entry names an acting user.
func (e Entry) HasUser() bool {
	return e.UserID.Compare(ulid.ULID{}) != 0
}
