// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

// Package config loads server configuration from defaults, a YAML file,
// command-line flags and a few environment variables, in that order.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/cyberwhale/cyberwhale/internal/auth"
	"github.com/cyberwhale/cyberwhale/internal/xdg"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Environment variables that override file and flag values.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvJWTSecret   = "CYBERWHALE_JWT_SECRET" //nolint:gosec // G101: variable name, not a secret
)

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Auth    AuthConfig    `koanf:"auth"`
	Mail    MailConfig    `koanf:"mail"`
	Log     LogConfig     `koanf:"log"`
}

// ServerConfig holds listener addresses. An empty MetricsAddr disables the
// observability server.
type ServerConfig struct {
	HTTPAddr    string    `koanf:"http_addr"`
	MetricsAddr string    `koanf:"metrics_addr"`
	TLS         TLSConfig `koanf:"tls"`
}

// TLSConfig switches the HTTP API to HTTPS. Without CertFile and KeyFile a
// development certificate is generated once under CertDir.
type TLSConfig struct {
	Enabled  bool     `koanf:"enabled"`
	CertFile string   `koanf:"cert_file"`
	KeyFile  string   `koanf:"key_file"`
	CertDir  string   `koanf:"cert_dir"`
	Hosts    []string `koanf:"hosts"`
}

// StorageConfig selects the durable record store.
type StorageConfig struct {
	Backend        string        `koanf:"backend"`
	DatabaseURL    string        `koanf:"database_url"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// AuthConfig tunes codes and sessions. An empty JWTSecret gets a random
// per-process key, which invalidates tokens on restart.
type AuthConfig struct {
	CodeTTL       time.Duration `koanf:"code_ttl"`
	SessionTTL    time.Duration `koanf:"session_ttl"`
	JWTSecret     string        `koanf:"jwt_secret"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// MailConfig controls outgoing message text.
type MailConfig struct {
	ProductName string `koanf:"product_name"`
}

// LogConfig selects the log output format: "json" or "text".
type LogConfig struct {
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddr:    ":8080",
			MetricsAddr: ":9100",
		},
		Storage: StorageConfig{
			Backend:        BackendMemory,
			ConnectTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			CodeTTL:       auth.DefaultCodeTTL,
			SessionTTL:    auth.DefaultSessionTTL,
			SweepInterval: time.Minute,
		},
		Mail: MailConfig{ProductName: auth.DefaultProductName},
		Log:  LogConfig{Format: "json"},
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"http-addr":       "server.http_addr",
	"metrics-addr":    "server.metrics_addr",
	"tls":             "server.tls.enabled",
	"tls-cert":        "server.tls.cert_file",
	"tls-key":         "server.tls.key_file",
	"storage":         "storage.backend",
	"database-url":    "storage.database_url",
	"connect-timeout": "storage.connect_timeout",
	"code-ttl":        "auth.code_ttl",
	"session-ttl":     "auth.session_ttl",
	"sweep-interval":  "auth.sweep_interval",
	"log-format":      "log.format",
}

// RegisterFlags adds the serve flags to fs with defaults from Default.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.Server.HTTPAddr, "HTTP API listen address")
	fs.String("metrics-addr", d.Server.MetricsAddr, "metrics/health listen address (empty to disable)")
	fs.Bool("tls", false, "serve the HTTP API over TLS")
	fs.String("tls-cert", "", "PEM certificate file (generated under the state dir when empty)")
	fs.String("tls-key", "", "PEM private key file")
	fs.String("storage", d.Storage.Backend, "durable store backend (postgres or memory)")
	fs.String("database-url", "", "PostgreSQL connection string (or set "+EnvDatabaseURL+")")
	fs.Duration("connect-timeout", d.Storage.ConnectTimeout, "how long to wait for the database")
	fs.Duration("code-ttl", d.Auth.CodeTTL, "lifetime of verification and reset codes")
	fs.Duration("session-ttl", d.Auth.SessionTTL, "lifetime of bearer tokens")
	fs.Duration("sweep-interval", d.Auth.SweepInterval, "interval between expiry sweeps (0 to disable)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
}

// Load builds a Config. path names a YAML file; when empty the XDG config
// file is read if it exists. fs may be nil. Changed flags override the
// file; the environment overrides both.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		if _, err := os.Stat(xdg.ConfigFile()); err == nil {
			path = xdg.ConfigFile()
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "decode").Wrap(err)
	}

	if v, ok := os.LookupEnv(EnvDatabaseURL); ok && v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v, ok := os.LookupEnv(EnvJWTSecret); ok && v != "" {
		cfg.Auth.JWTSecret = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(key, reason string) {
		errs = append(errs, oops.With("key", key).Errorf("%s %s", key, reason))
	}

	if c.Server.HTTPAddr == "" {
		invalid("server.http_addr", "is required")
	}
	if (c.Server.TLS.CertFile == "") != (c.Server.TLS.KeyFile == "") {
		invalid("server.tls", "needs both cert_file and key_file or neither")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			invalid("storage.database_url", "is required for the postgres backend")
		}
	default:
		invalid("storage.backend", "must be postgres or memory")
	}
	if c.Auth.CodeTTL <= 0 {
		invalid("auth.code_ttl", "must be positive")
	}
	if c.Auth.SessionTTL <= 0 {
		invalid("auth.session_ttl", "must be positive")
	}
	if c.Auth.SweepInterval < 0 {
		invalid("auth.sweep_interval", "must not be negative")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		invalid("log.format", "must be json or text")
	}

	if len(errs) == 0 {
		return nil
	}
	return oops.Code("CONFIG_INVALID").Wrap(errors.Join(errs...))
}
