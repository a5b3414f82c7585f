// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package config

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// MarshalYAML renders durations as strings so the output loads back
// through Load unchanged. The JWT secret is never written.
func (c Config) MarshalYAML() (any, error) {
	tls := map[string]any{
		"enabled":   c.Server.TLS.Enabled,
		"cert_file": c.Server.TLS.CertFile,
		"key_file":  c.Server.TLS.KeyFile,
		"cert_dir":  c.Server.TLS.CertDir,
	}
	if len(c.Server.TLS.Hosts) > 0 {
		tls["hosts"] = c.Server.TLS.Hosts
	}
	return map[string]any{
		"server": map[string]any{
			"http_addr":    c.Server.HTTPAddr,
			"metrics_addr": c.Server.MetricsAddr,
			"tls":          tls,
		},
		"storage": map[string]any{
			"backend":         c.Storage.Backend,
			"database_url":    c.Storage.DatabaseURL,
			"connect_timeout": c.Storage.ConnectTimeout.String(),
		},
		"auth": map[string]any{
			"code_ttl":       c.Auth.CodeTTL.String(),
			"session_ttl":    c.Auth.SessionTTL.String(),
			"sweep_interval": c.Auth.SweepInterval.String(),
		},
		"mail": map[string]any{
			"product_name": c.Mail.ProductName,
		},
		"log": map[string]any{
			"format": c.Log.Format,
		},
	}, nil
}

// WriteFile writes c to path as YAML. An existing file is left alone
// unless overwrite is set.
func WriteFile(c Config, path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return oops.Code("CONFIG_EXISTS").With("path", path).Errorf("config file already exists")
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return oops.Code("CONFIG_ENCODE_FAILED").Wrap(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
