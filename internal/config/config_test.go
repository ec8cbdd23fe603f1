// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderdesk/orderdesk/internal/access"
	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/config"
	"github.com/orderdesk/orderdesk/internal/core"
	"github.com/orderdesk/orderdesk/pkg/errutil"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	def := config.Default()
	fs.String("config", "", "config file")
	fs.String("log-format", def.Log.Format, "log format")
	fs.String("log-level", def.Log.Level, "log level")
	fs.String("metrics-addr", def.Metrics.Addr, "metrics address")
	fs.Bool("audit-mirror", def.Audit.Mirror, "mirror audit entries")
	return fs
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, 5, cfg.Security.LockoutThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Security.LockoutDuration)
	assert.Equal(t, 24*time.Hour, cfg.Security.MinPasswordAge)
	assert.Equal(t, 3, cfg.Security.PasswordHistory)
	assert.Equal(t, 5000, cfg.Audit.Capacity)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
security:
  lockout_threshold: 3
  lockout_duration: 15m
audit:
  capacity: 100
`)
	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format, "unset keys keep defaults")
	assert.Equal(t, auth.LockoutPolicy{Threshold: 3, Duration: 15 * time.Minute}, cfg.LockoutPolicy())
	assert.Equal(t, 100, cfg.Audit.Capacity)
	assert.Equal(t, 24*time.Hour, cfg.Security.MinPasswordAge)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeFile(t, "log:\n  level: debug\n  format: text\n")
	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--log-level", "warn"}))

	cfg, err := config.Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level, "explicit flag wins")
	assert.Equal(t, "text", cfg.Log.Format, "unset flag does not clobber the file")
}

func TestLoad_FlagsKeepTheirTypes(t *testing.T) {
	fs := newFlags()
	require.NoError(t, fs.Parse([]string{
		"--config", "ignored.yaml",
		"--audit-mirror",
		"--metrics-addr", "127.0.0.1:9999",
	}))

	cfg, err := config.Load(writeFile(t, "audit:\n  capacity: 100\n"), fs)
	require.NoError(t, err)
	assert.True(t, cfg.Audit.Mirror)
	assert.Equal(t, 100, cfg.Audit.Capacity)
	assert.Equal(t, "127.0.0.1:9999", cfg.Metrics.Addr)
}

func TestLoad_InvalidValues(t *testing.T) {
	// Codes come from the innermost error, so wrapped causes keep theirs.
	tests := []struct {
		name string
		yaml string
		code string
	}{
		{"zero lockout threshold", "security:\n  lockout_threshold: 0\n", "CONFIG_INVALID"},
		{"bad scrypt", "security:\n  scrypt:\n    log_n: 40\n", "AUTH_INVALID_HASH_PARAMS"},
		{"unknown role in restriction", "access:\n  restrictions:\n    /admin/**: [root]\n", "INVALID_ROUTE_ROLE"},
		{"unknown seed role", "seed:\n  - email: a@example.com\n    name: A\n    password: x\n    role: root\n", "AUTH_INVALID_ROLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, tt.yaml), nil)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestRouteGate_DefaultsAndOverrides(t *testing.T) {
	g, err := config.Default().RouteGate()
	require.NoError(t, err)
	d, _ := g.Check(auth.RoleManager, "/admin/logs")
	assert.Equal(t, access.Deny, d)

	cfg := config.Default()
	cfg.Access.Restrictions = map[string][]string{"/reports/**": {"admin", "manager"}}
	g, err = cfg.RouteGate()
	require.NoError(t, err)
	d, _ = g.Check(auth.RoleManager, "/reports/daily")
	assert.Equal(t, access.Allow, d)
	d, _ = g.Check(auth.RoleCustomer, "/reports/daily")
	assert.Equal(t, access.Deny, d)
	d, _ = g.Check(auth.RoleManager, "/admin/logs")
	assert.Equal(t, access.Allow, d, "configured restrictions replace the built-in ones")
}

func TestSeedAccounts(t *testing.T) {
	accounts, err := config.Default().SeedAccounts()
	require.NoError(t, err)
	assert.Equal(t, core.DefaultSeedAccounts(), accounts)

	cfg := config.Default()
	cfg.Seed = []config.SeedAccount{{Email: "ops@example.com", Name: "Ops", Password: "pw", Role: "Manager"}}
	accounts, err = cfg.SeedAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, auth.RoleManager, accounts[0].Role)
}

func TestGenerateSchema(t *testing.T) {
	data, err := config.GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, config.SchemaID, schema["$id"])
	assert.Contains(t, schema["properties"], "security")
}

func TestValidateYAML(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"empty", "", false},
		{"valid", "log:\n  level: info\nsecurity:\n  lockout_duration: 10m\n  password_history: 3\n", false},
		{"unknown top-level key", "colour: blue\n", true},
		{"unknown nested key", "log:\n  colour: blue\n", true},
		{"bad enum", "log:\n  format: xml\n", true},
		{"bad duration", "security:\n  lockout_duration: soon\n", true},
		{"wrong type", "audit:\n  capacity: lots\n", true},
		{"seed missing password", "seed:\n  - email: a@example.com\n    name: A\n    role: admin\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.ValidateYAML([]byte(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateFile(t *testing.T) {
	require.NoError(t, config.ValidateFile(writeFile(t, "metrics:\n  addr: 127.0.0.1:9100\n")))

	err := config.ValidateFile(filepath.Join(t.TempDir(), "nope.yaml"))
	errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
}
