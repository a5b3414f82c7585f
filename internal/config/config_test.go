// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cyberwhale/cyberwhale/internal/auth"
	"github.com/cyberwhale/cyberwhale/pkg/errutil"
)

// isolate points XDG and the override variables away from the developer's
// environment.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvJWTSecret, "")
}

func writeYAML(t *testing.T, doc map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, 15*time.Minute, cfg.Auth.CodeTTL)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, auth.DefaultProductName, cfg.Mail.ProductName)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	isolate(t)
	path := writeYAML(t, map[string]any{
		"storage": map[string]any{
			"backend":      "postgres",
			"database_url": "postgres://cw@localhost/cw",
		},
		"auth": map[string]any{"code_ttl": "10m"},
	})

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Auth.CodeTTL)
	assert.Equal(t, auth.DefaultSessionTTL, cfg.Auth.SessionTTL, "unset keys keep defaults")
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
}

func TestLoad_XDGFileUsedWhenNoPath(t *testing.T) {
	isolate(t)
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "cyberwhale")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("mail:\n  product_name: Acme\n"), 0o600))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme", cfg.Mail.ProductName)
}

func TestLoad_ChangedFlagsOverrideFile(t *testing.T) {
	isolate(t)
	path := writeYAML(t, map[string]any{
		"server": map[string]any{"http_addr": ":7000", "metrics_addr": ":7001"},
	})

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--http-addr=:9000", "--code-ttl=5m"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.HTTPAddr)
	assert.Equal(t, ":7001", cfg.Server.MetricsAddr, "unchanged flag must not clobber the file")
	assert.Equal(t, 5*time.Minute, cfg.Auth.CodeTTL)
}

func TestLoad_TLSFlags(t *testing.T) {
	isolate(t)
	path := writeYAML(t, map[string]any{
		"server": map[string]any{"tls": map[string]any{"hosts": []string{"api.example.test"}}},
	})

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--tls", "--tls-cert=/etc/cw/server.crt", "--tls-key=/etc/cw/server.key"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.True(t, cfg.Server.TLS.Enabled)
	assert.Equal(t, "/etc/cw/server.crt", cfg.Server.TLS.CertFile)
	assert.Equal(t, "/etc/cw/server.key", cfg.Server.TLS.KeyFile)
	assert.Equal(t, []string{"api.example.test"}, cfg.Server.TLS.Hosts)
}

func TestLoad_EnvOverridesEverything(t *testing.T) {
	isolate(t)
	path := writeYAML(t, map[string]any{
		"storage": map[string]any{"backend": "postgres", "database_url": "postgres://file"},
	})
	t.Setenv(EnvDatabaseURL, "postgres://env")
	t.Setenv(EnvJWTSecret, "s3cret")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.Storage.DatabaseURL)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoad_MissingFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"postgres without url", func(c *Config) { c.Storage.Backend = BackendPostgres }, "storage.database_url"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"zero code ttl", func(c *Config) { c.Auth.CodeTTL = 0 }, "auth.code_ttl"},
		{"negative session ttl", func(c *Config) { c.Auth.SessionTTL = -time.Second }, "auth.session_ttl"},
		{"negative sweep", func(c *Config) { c.Auth.SweepInterval = -time.Second }, "auth.sweep_interval"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"no http addr", func(c *Config) { c.Server.HTTPAddr = "" }, "server.http_addr"},
		{"tls cert without key", func(c *Config) { c.Server.TLS.CertFile = "server.crt" }, "server.tls"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			assert.Contains(t, err.Error(), tt.key)
		})
	}

	t.Run("default is valid", func(t *testing.T) {
		cfg := Default()
		assert.NoError(t, cfg.Validate())
	})
}

func TestWriteFile_RoundTripsThroughLoad(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	want := Default()
	want.Auth.JWTSecret = "must-not-be-written"
	require.NoError(t, WriteFile(want, path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "must-not-be-written")
	assert.Contains(t, string(data), "code_ttl: 15m0s")

	got, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *got)

	err = WriteFile(want, path, false)
	errutil.AssertErrorCode(t, err, "CONFIG_EXISTS")
	require.NoError(t, WriteFile(want, path, true))
}
