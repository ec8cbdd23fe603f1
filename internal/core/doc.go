// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

// Package core wires the credential store, session manager, authorization
// engine, order service and audit log into a single Engine.
//
// The Engine is the surface the HTTP layer talks to: every method that
// refuses a caller records exactly one audit entry before it returns, and
// errors that reach the user carry messages that reveal nothing about which
// accounts exist.
package core
