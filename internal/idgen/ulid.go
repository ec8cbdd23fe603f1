// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

// Package idgen generates the ULIDs that identify users, orders and audit
// entries.
package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// New generates a ULID stamped with the current wall time.
func New() ulid.ULID {
	return At(time.Now())
}

// At generates a ULID stamped with t. IDs generated within the same
// millisecond are strictly increasing.
func At(t time.Time) ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy)
}

// Parse parses a ULID string.
func Parse(s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_ID").With("id", s).Wrap(err)
	}
	return id, nil
}

// IsZero reports whether id is the zero ULID.
func IsZero(id ulid.ULID) bool {
	return id.Compare(ulid.ULID{}) == 0
}
