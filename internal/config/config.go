// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

// Package config loads OrderDesk configuration.
//
// Values are layered: built-in defaults, then a YAML file, then command-line
// flags the user set explicitly.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/orderdesk/orderdesk/internal/access"
	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/core"
	"github.com/orderdesk/orderdesk/internal/xdg"
)

// Config is the full service configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"      json:"log,omitempty"`
	Metrics  MetricsConfig  `koanf:"metrics"  json:"metrics,omitempty"`
	Security SecurityConfig `koanf:"security" json:"security,omitempty"`
	Audit    AuditConfig    `koanf:"audit"    json:"audit,omitempty"`
	Access   AccessConfig   `koanf:"access"   json:"access,omitempty"`
	Seed     []SeedAccount  `koanf:"seed"     json:"seed,omitempty"`
}

// LogConfig selects the log format and level.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level"  json:"level,omitempty"  jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// SecurityConfig holds the account policy.
type SecurityConfig struct {
	LockoutThreshold int           `koanf:"lockout_threshold" json:"lockout_threshold,omitempty" jsonschema:"minimum=1"`
	LockoutDuration  time.Duration `koanf:"lockout_duration"  json:"lockout_duration,omitempty"`
	MinPasswordAge   time.Duration `koanf:"min_password_age"  json:"min_password_age,omitempty"`
	PasswordHistory  int           `koanf:"password_history"  json:"password_history,omitempty"  jsonschema:"minimum=1"`
	Scrypt           ScryptConfig  `koanf:"scrypt"            json:"scrypt,omitempty"`
}

// ScryptConfig holds the password hashing cost parameters.
type ScryptConfig struct {
	LogN int `koanf:"log_n" json:"log_n,omitempty" jsonschema:"minimum=1,maximum=20"`
	R    int `koanf:"r"     json:"r,omitempty"     jsonschema:"minimum=1"`
	P    int `koanf:"p"     json:"p,omitempty"     jsonschema:"minimum=1"`
}

// AuditConfig sizes the audit ring and configures the optional JSONL mirror.
type AuditConfig struct {
	Capacity    int    `koanf:"capacity"     json:"capacity,omitempty"     jsonschema:"minimum=1"`
	Mirror      bool   `koanf:"mirror"       json:"mirror,omitempty"`
	MirrorPath  string `koanf:"mirror_path"  json:"mirror_path,omitempty"`
	MirrorQueue int    `koanf:"mirror_queue" json:"mirror_queue,omitempty" jsonschema:"minimum=1"`
}

// AccessConfig overrides the route gate. Nil fields keep the built-in rules.
type AccessConfig struct {
	Restrictions map[string][]string `koanf:"restrictions" json:"restrictions,omitempty"`
	Public       []string            `koanf:"public"       json:"public,omitempty"`
}

// SeedAccount is an account created on startup when missing.
type SeedAccount struct {
	Email    string `koanf:"email"    json:"email"`
	Name     string `koanf:"name"     json:"name"`
	Password string `koanf:"password" json:"password"`
	Role     string `koanf:"role"     json:"role" jsonschema:"enum=admin,enum=manager,enum=customer"`
}

// Default returns the built-in configuration.
func Default() Config {
	lockout := auth.DefaultLockoutPolicy()
	scrypt := auth.DefaultScryptParams()
	return Config{
		Log: LogConfig{Format: "json", Level: "info"},
		Security: SecurityConfig{
			LockoutThreshold: lockout.Threshold,
			LockoutDuration:  lockout.Duration,
			MinPasswordAge:   auth.DefaultMinPasswordAge,
			PasswordHistory:  auth.DefaultHistoryLimit,
			Scrypt:           ScryptConfig{LogN: int(scrypt.LogN), R: scrypt.R, P: scrypt.P},
		},
		Audit: AuditConfig{
			Capacity:    audit.DefaultCapacity,
			MirrorQueue: audit.DefaultMirrorQueue,
		},
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-format":   "log.format",
	"log-level":    "log.level",
	"metrics-addr": "metrics.addr",
	"audit-mirror": "audit.mirror",
}

// Load reads configuration from path and flags. An empty path selects the
// default file under the XDG config directory, which may be absent; an
// explicit path must exist. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		p, err := xdg.DefaultConfigFile()
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_PARSE_FAILED").With("path", path).Wrap(err)
		}
	} else if explicit || !errors.Is(err, fs.ErrNotExist) {
		return Config{}, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return flagKeys[f.Name], posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code("CONFIG_DECODE_FAILED").With("path", path).Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the schema cannot express.
func (c Config) Validate() error {
	if _, err := c.ScryptParams(); err != nil {
		return err
	}
	if c.Security.LockoutThreshold < 1 || c.Security.LockoutDuration <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("lockout_threshold", c.Security.LockoutThreshold).
			With("lockout_duration", c.Security.LockoutDuration).
			Errorf("lockout threshold and duration must be positive")
	}
	if c.Security.MinPasswordAge < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("min_password_age cannot be negative")
	}
	if _, err := c.RouteGate(); err != nil {
		return err
	}
	if _, err := c.SeedAccounts(); err != nil {
		return err
	}
	return nil
}

// ScryptParams returns the validated hashing parameters.
func (c Config) ScryptParams() (auth.ScryptParams, error) {
	s := c.Security.Scrypt
	if s.LogN < 1 || s.LogN > 255 {
		return auth.ScryptParams{}, oops.Code("CONFIG_INVALID").With("log_n", s.LogN).Errorf("scrypt log_n out of range")
	}
	p := auth.ScryptParams{LogN: uint8(s.LogN), R: s.R, P: s.P}
	if err := p.Validate(); err != nil {
		return auth.ScryptParams{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return p, nil
}

// LockoutPolicy returns the configured lockout policy.
func (c Config) LockoutPolicy() auth.LockoutPolicy {
	return auth.LockoutPolicy{Threshold: c.Security.LockoutThreshold, Duration: c.Security.LockoutDuration}
}

// RouteGate compiles the configured route rules.
func (c Config) RouteGate() (*access.RouteGate, error) {
	restrictions := access.DefaultRestrictions()
	if c.Access.Restrictions != nil {
		restrictions = make(map[string][]auth.Role, len(c.Access.Restrictions))
		for pattern, roles := range c.Access.Restrictions {
			for _, r := range roles {
				restrictions[pattern] = append(restrictions[pattern], auth.Role(r))
			}
		}
	}
	public := access.DefaultPublicRoutes()
	if c.Access.Public != nil {
		public = c.Access.Public
	}
	g, err := access.NewRouteGate(restrictions, public)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return g, nil
}

// SeedAccounts returns the accounts to create on startup. With none
// configured the built-in administrator is used.
func (c Config) SeedAccounts() ([]core.SeedAccount, error) {
	if c.Seed == nil {
		return core.DefaultSeedAccounts(), nil
	}
	out := make([]core.SeedAccount, 0, len(c.Seed))
	for _, s := range c.Seed {
		role, err := auth.ParseRole(s.Role)
		if err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("email", s.Email).Wrap(err)
		}
		out = append(out, core.SeedAccount{Email: s.Email, Name: s.Name, Password: s.Password, Role: role})
	}
	return out, nil
}
