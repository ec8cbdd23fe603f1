// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

// Package orders stores customer orders and enforces who may see and change
// them.
package orders

import (
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/orderdesk/orderdesk/internal/validate"
)

// Status is an order's processing state. Any status may follow any other.
type Status string

// Order statuses.
const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCancelled Status = "cancelled"
)

// MsgInvalidStatus is shown for an unknown status.
const MsgInvalidStatus = "Invalid order status."

// ParseStatus parses a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusApproved, StatusCancelled:
		return st, nil
	default:
		return "", validate.New("status", MsgInvalidStatus)
	}
}

// Order is a customer order.
type Order struct {
	ID          ulid.ULID
	OwnerID     ulid.ULID
	Description string
	Quantity    int
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Input is the user-supplied part of a new order. Quantity is a float so
// that non-integral and non-finite input can be rejected rather than
// truncated.
type Input struct {
	Description string
	Quantity    float64
}

// Update replaces an order's description, quantity and status. An empty
// Status resets the order to pending.
type Update struct {
	Description string
	Quantity    float64
	Status      Status
}

// Order errors.
var (
	ErrNotFound  = errors.New("order not found")
	ErrForbidden = errors.New("Not allowed to modify this order")
)

func normalizeInput(description string, quantity float64) (string, error) {
	description = strings.TrimSpace(description)
	if err := validate.OrderInput(description, quantity); err != nil {
		return "", err
	}
	return description, nil
}
