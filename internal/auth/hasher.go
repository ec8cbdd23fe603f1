// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/scrypt"
)

// Default scrypt parameters: N=2^14, r=8, p=1 with a 16-byte salt and a
// 64-byte derived key.
const (
	scryptLogN    = 14
	scryptR       = 8
	scryptP       = 1
	scryptSaltLen = 16
	scryptKeyLen  = 64
)

// Bounds applied to configured parameters and to parameters read back from a
// stored hash. scrypt needs 128*r*N bytes; maxScryptMemory caps that so a
// tampered hash cannot force a huge allocation on Verify.
const (
	maxScryptLogN   = 20
	maxScryptR      = 16
	maxScryptP      = 4
	maxScryptMemory = 256 << 20
	minScryptKeyLen = 16
	maxScryptKeyLen = 128
)

const scryptPrefix = "$scrypt$"

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = errors.New("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted, self-describing hash of the password.
	Hash(password string) (string, error)

	// Verify reports whether password matches the encoded hash. A malformed
	// hash never matches.
	Verify(password, encoded string) bool
}

// ScryptParams are the scrypt cost parameters.
type ScryptParams struct {
	LogN uint8 // N = 2^LogN
	R    int
	P    int
}

// DefaultScryptParams returns the production cost parameters.
func DefaultScryptParams() ScryptParams {
	return ScryptParams{LogN: scryptLogN, R: scryptR, P: scryptP}
}

// Validate checks the parameters are within the accepted bounds.
func (p ScryptParams) Validate() error {
	if p.LogN < 1 || p.LogN > maxScryptLogN {
		return oops.Code("AUTH_INVALID_HASH_PARAMS").With("log_n", p.LogN).Errorf("log_n must be between 1 and %d", maxScryptLogN)
	}
	if p.R < 1 || p.R > maxScryptR {
		return oops.Code("AUTH_INVALID_HASH_PARAMS").With("r", p.R).Errorf("r must be between 1 and %d", maxScryptR)
	}
	if p.P < 1 || p.P > maxScryptP {
		return oops.Code("AUTH_INVALID_HASH_PARAMS").With("p", p.P).Errorf("p must be between 1 and %d", maxScryptP)
	}
	if mem := p.memory(); mem > maxScryptMemory {
		return oops.Code("AUTH_INVALID_HASH_PARAMS").
			With("log_n", p.LogN).
			With("r", p.R).
			Errorf("parameters need %d MiB, limit is %d MiB", mem>>20, maxScryptMemory>>20)
	}
	return nil
}

// memory is the working set scrypt allocates for p, in bytes.
func (p ScryptParams) memory() int64 {
	return 128 * int64(p.R) * (int64(1) << p.LogN)
}

// ScryptHasher implements PasswordHasher using scrypt. Hashes are encoded as
// $scrypt$ln=14,r=8,p=1$<salt>$<key> with unpadded standard base64.
type ScryptHasher struct {
	params ScryptParams
}

// NewScryptHasher creates a ScryptHasher with the given parameters.
func NewScryptHasher(params ScryptParams) (*ScryptHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &ScryptHasher{params: params}, nil
}

// Params returns the parameters new hashes are produced with.
func (h *ScryptHasher) Params() ScryptParams {
	return h.params
}

// Hash produces a scrypt hash of the password.
func (h *ScryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", oops.Code("AUTH_EMPTY_PASSWORD").Wrap(ErrEmptyPassword)
	}

	salt := make([]byte, scryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key, err := scrypt.Key([]byte(password), salt, 1<<h.params.LogN, h.params.R, h.params.P, scryptKeyLen)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}

	return fmt.Sprintf(
		"%sln=%d,r=%d,p=%d$%s$%s",
		scryptPrefix,
		h.params.LogN,
		h.params.R,
		h.params.P,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the encoded hash. The comparison is
// constant time; any parse failure reports false.
func (h *ScryptHasher) Verify(password, encoded string) bool {
	params, salt, expected, err := parseScryptHash(encoded)
	if err != nil {
		return false
	}

	computed, err := scrypt.Key([]byte(password), salt, 1<<params.LogN, params.R, params.P, len(expected))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// NeedsRehash reports whether encoded was produced with parameters other than
// the hasher's current ones.
func (h *ScryptHasher) NeedsRehash(encoded string) bool {
	params, _, _, err := parseScryptHash(encoded)
	return err != nil || params != h.params
}

func parseScryptHash(encoded string) (ScryptParams, []byte, []byte, error) {
	var params ScryptParams

	// "", "scrypt", params, salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "scrypt" {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var logN int
	if _, err := fmt.Sscanf(parts[2], "ln=%d,r=%d,p=%d", &logN, &params.R, &params.P); err != nil {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if logN < 1 || logN > maxScryptLogN {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("log_n %d out of range", logN)
	}
	params.LogN = uint8(logN)
	if err := params.Validate(); err != nil {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(salt) == 0 {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid salt encoding")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid key encoding")
	}
	if len(key) < minScryptKeyLen || len(key) > maxScryptKeyLen {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid key length: %d", len(key))
	}

	return params, salt, key, nil
}
