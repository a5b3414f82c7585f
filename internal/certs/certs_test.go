// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package certs

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberwhale/cyberwhale/pkg/errutil"
)

func TestGenerateCA(t *testing.T) {
	ca, err := GenerateCA()
	require.NoError(t, err)

	assert.True(t, ca.Certificate.IsCA)
	assert.Equal(t, "CyberWhale Development CA", ca.Certificate.Subject.CommonName)
	assert.True(t, ca.Certificate.NotAfter.After(time.Now().Add(9*365*24*time.Hour)))
}

func TestGenerateServerCert(t *testing.T) {
	ca, err := GenerateCA()
	require.NoError(t, err)

	t.Run("default hosts", func(t *testing.T) {
		server, err := GenerateServerCert(ca, nil)
		require.NoError(t, err)

		assert.Equal(t, []string{"localhost"}, server.Certificate.DNSNames)
		require.Len(t, server.Certificate.IPAddresses, 2)
		assert.True(t, server.Certificate.IPAddresses[0].Equal(net.ParseIP("127.0.0.1")))
		assert.Equal(t, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}, server.Certificate.ExtKeyUsage)
	})

	t.Run("chains to the CA", func(t *testing.T) {
		server, err := GenerateServerCert(ca, []string{"api.example.test", "10.0.0.5"})
		require.NoError(t, err)

		roots := x509.NewCertPool()
		roots.AddCert(ca.Certificate)
		_, err = server.Certificate.Verify(x509.VerifyOptions{Roots: roots, DNSName: "api.example.test"})
		assert.NoError(t, err)
		_, err = server.Certificate.Verify(x509.VerifyOptions{Roots: roots, DNSName: "other.example.test"})
		assert.Error(t, err)
	})

	t.Run("nil ca", func(t *testing.T) {
		_, err := GenerateServerCert(nil, nil)
		errutil.AssertErrorCode(t, err, "CERT_CREATE_FAILED")
	})
}

func TestSaveAndLoadCA(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	ca, err := GenerateCA()
	require.NoError(t, err)
	server, err := GenerateServerCert(ca, nil)
	require.NoError(t, err)

	require.NoError(t, Save(dir, ca, server))

	for _, name := range []string{CAFile, CAKeyFile, ServerCertFile, ServerKeyFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), name)
	}

	loaded, err := LoadCA(dir)
	require.NoError(t, err)
	assert.True(t, loaded.Certificate.Equal(ca.Certificate))
	assert.True(t, loaded.PrivateKey.Equal(ca.PrivateKey))

	_, err = tls.LoadX509KeyPair(filepath.Join(dir, ServerCertFile), filepath.Join(dir, ServerKeyFile))
	assert.NoError(t, err)
}

func TestLoadCA_Errors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := LoadCA(t.TempDir())
		errutil.AssertErrorCode(t, err, "CERT_LOAD_FAILED")
		errutil.AssertErrorContext(t, err, "file", CAFile)
	})

	t.Run("not pem", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, CAFile), []byte("garbage"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, CAKeyFile), []byte("garbage"), 0o600))
		_, err := LoadCA(dir)
		assert.ErrorContains(t, err, "no PEM block")
	})
}

func TestEnsureServerCert(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")

	first, err := EnsureServerCert(dir, []string{"localhost"})
	require.NoError(t, err)
	require.NotEmpty(t, first.Certificate)

	second, err := EnsureServerCert(dir, []string{"ignored.example.test"})
	require.NoError(t, err)
	assert.Equal(t, first.Certificate[0], second.Certificate[0], "existing pair is reused")
}

func TestEnsureServerCert_ReusesCA(t *testing.T) {
	dir := t.TempDir()
	ca, err := GenerateCA()
	require.NoError(t, err)
	require.NoError(t, Save(dir, ca, nil))

	pair, err := EnsureServerCert(dir, nil)
	require.NoError(t, err)

	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)
	roots := x509.NewCertPool()
	roots.AddCert(ca.Certificate)
	_, err = leaf.Verify(x509.VerifyOptions{Roots: roots, DNSName: "localhost"})
	assert.NoError(t, err)
}

func TestLoadKeyPair_Missing(t *testing.T) {
	_, err := LoadKeyPair("/nonexistent/server.crt", "/nonexistent/server.key")
	errutil.AssertErrorCode(t, err, "CERT_LOAD_FAILED")
}
