// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

// Package audit provides the bounded, append-only ledger of security events.
//
// A Log keeps the most recent entries in memory, newest first, evicting the
// oldest once its capacity is reached. Entries are immutable once recorded.
// A Log may optionally mirror every entry to a Sink (such as FileSink) through
// a buffered asynchronous consumer; the in-memory copy is authoritative and
// the mirror is never read back by the Log.
package audit
