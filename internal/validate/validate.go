// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

// Package validate checks user-supplied input against the account and order
// policies. Every check is a pure function; a non-nil error carries a
// message that is safe to show to the user verbatim.
package validate

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Policy limits.
const (
	MinPasswordLength    = 10
	MinNameLength        = 2
	MinDescriptionLength = 3
	MaxDescriptionLength = 100
	MinQuantity          = 1
	MaxQuantity          = 1000
)

// PasswordRuleDescription summarizes the password policy for display.
const PasswordRuleDescription = "Min 10 chars with uppercase, lowercase, number, and special character"

// User-facing messages.
const (
	MsgPasswordTooShort      = "Password must be at least 10 characters long."
	MsgPasswordComplexity    = "Password must include uppercase, lowercase, digit, and special character."
	MsgInvalidEmail          = "Invalid email address."
	MsgNameTooShort          = "Name must be at least 2 characters."
	MsgNameInvalid           = "Name contains invalid characters."
	MsgDescriptionLength     = "Description must be 3-100 characters."
	MsgDescriptionInvalid    = "Description contains invalid characters."
	MsgQuantityRange         = "Quantity must be between 1 and 1000."
	MsgPasswordMismatch      = "Passwords do not match."
	MsgPasswordMismatchAudit = "Password mismatch"
)

// ErrInvalid is the sentinel wrapped by every validation failure.
var ErrInvalid = errors.New("validation failed")

var (
	emailPattern       = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	namePattern        = regexp.MustCompile(`^[a-zA-Z\s'.-]+$`)
	descriptionPattern = regexp.MustCompile(`^[\w\s.,'-]+$`)
)

// Error is a validation failure on a single field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap lets errors.Is match ErrInvalid.
func (e *Error) Unwrap() error { return ErrInvalid }

// New returns a validation error for field carrying a user-facing message.
func New(field, message string) error {
	return oops.Code("VALIDATION_FAILED").With("field", field).Wrap(&Error{Field: field, Message: message})
}

// Message returns the user-facing message carried by a validation error, or
// err.Error() for anything else.
func Message(err error) string {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Message
	}
	return err.Error()
}

// Password enforces length and character-class complexity.
func Password(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return New("password", MsgPasswordTooShort)
	}

	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}
	if !lower || !upper || !digit || !special {
		return New("password", MsgPasswordComplexity)
	}
	return nil
}

// Email checks the basic local@domain.tld shape.
func Email(email string) error {
	if !emailPattern.MatchString(email) {
		return New("email", MsgInvalidEmail)
	}
	return nil
}

// Name checks a display name.
func Name(name string) error {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < MinNameLength {
		return New("name", MsgNameTooShort)
	}
	if !namePattern.MatchString(name) {
		return New("name", MsgNameInvalid)
	}
	return nil
}

// OrderInput checks an order description and quantity. Quantity must be a
// finite whole number in [MinQuantity, MaxQuantity].
func OrderInput(description string, quantity float64) error {
	n := utf8.RuneCountInString(description)
	if n < MinDescriptionLength || n > MaxDescriptionLength {
		return New("description", MsgDescriptionLength)
	}
	if !descriptionPattern.MatchString(description) {
		return New("description", MsgDescriptionInvalid)
	}
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) ||
		quantity < MinQuantity || quantity > MaxQuantity || quantity != math.Trunc(quantity) {
		return New("quantity", MsgQuantityRange)
	}
	return nil
}

// Registration runs the registration checks in order and returns the first
// failure: email, name, password, then confirmation.
func Registration(email, name, password, confirm string) error {
	if err := Email(email); err != nil {
		return err
	}
	if err := Name(name); err != nil {
		return err
	}
	if err := Password(password); err != nil {
		return err
	}
	return Confirmation(password, confirm)
}

// Confirmation checks that a password was typed the same way twice.
func Confirmation(password, confirm string) error {
	if password != confirm {
		return New("confirm", MsgPasswordMismatch)
	}
	return nil
}
