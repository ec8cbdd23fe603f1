// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

// Package auth provides credential storage, brute-force lockout, password
// rotation, and session tokens for OrderDesk.
//
// # Credentials
//
// Store owns every User. It is the only writer of lockout counters and
// password history, and it never holds its lock while hashing: the expensive
// PasswordHasher call runs against a snapshot, and the result is applied
// under the lock only if the record has not changed in the meantime.
//
// # Sessions
//
// SessionManager issues opaque tokens and keeps only their SHA-256 digests.
// Sessions have no built-in expiry; the transport decides how long a token
// is carried. A session whose user has been removed is purged the next time
// it is resolved.
//
// # Auditing
//
// Every registration, authentication attempt and password change is
// reported to an audit.Recorder before the call returns.
package auth
