// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

// Package certs generates and loads the development CA and server
// certificate used when the HTTP API serves TLS without operator-supplied
// key material.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"io/fs"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
)

// File names inside a certificate directory.
const (
	CAFile         = "root-ca.crt"
	CAKeyFile      = "root-ca.key"
	ServerCertFile = "server.crt"
	ServerKeyFile  = "server.key"
)

// Validity periods.
const (
	CAValidity     = 10 * 365 * 24 * time.Hour
	ServerValidity = 365 * 24 * time.Hour
)

// DefaultHosts are the names a generated server certificate covers when
// none are configured.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// CA holds a certificate authority certificate and private key.
type CA struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// ServerCert holds a server certificate and private key.
type ServerCert struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// GenerateCA creates a self-signed root CA.
func GenerateCA() (*CA, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Code("CERT_KEY_FAILED").With("cert", "ca").Wrap(err)
	}
	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"CyberWhale"},
			CommonName:   "CyberWhale Development CA",
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(CAValidity),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, oops.Code("CERT_CREATE_FAILED").With("cert", "ca").Wrap(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, oops.Code("CERT_CREATE_FAILED").With("cert", "ca").Wrap(err)
	}
	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// GenerateServerCert creates a server certificate signed by ca. Each host
// becomes an IP SAN when it parses as an address and a DNS SAN otherwise.
func GenerateServerCert(ca *CA, hosts []string) (*ServerCert, error) {
	if ca == nil {
		return nil, oops.Code("CERT_CREATE_FAILED").Errorf("ca is required")
	}
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Code("CERT_KEY_FAILED").With("cert", "server").Wrap(err)
	}
	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"CyberWhale"},
			CommonName:   hosts[0],
		},
		NotBefore:   now.Add(-time.Minute),
		NotAfter:    now.Add(ServerValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, ca.Certificate, &key.PublicKey, ca.PrivateKey)
	if err != nil {
		return nil, oops.Code("CERT_CREATE_FAILED").With("cert", "server").Wrap(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, oops.Code("CERT_CREATE_FAILED").With("cert", "server").Wrap(err)
	}
	return &ServerCert{Certificate: cert, PrivateKey: key}, nil
}

// Save writes the CA and, when non-nil, the server certificate into dir.
func Save(dir string, ca *CA, server *ServerCert) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.Code("CERT_SAVE_FAILED").With("dir", dir).Wrap(err)
	}
	if err := saveCert(filepath.Join(dir, CAFile), ca.Certificate); err != nil {
		return err
	}
	if err := saveKey(filepath.Join(dir, CAKeyFile), ca.PrivateKey); err != nil {
		return err
	}
	if server == nil {
		return nil
	}
	if err := saveCert(filepath.Join(dir, ServerCertFile), server.Certificate); err != nil {
		return err
	}
	return saveKey(filepath.Join(dir, ServerKeyFile), server.PrivateKey)
}

// LoadCA reads the CA saved in dir.
func LoadCA(dir string) (*CA, error) {
	certPEM, err := os.ReadFile(filepath.Clean(filepath.Join(dir, CAFile)))
	if err != nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("file", CAFile).Wrap(err)
	}
	keyPEM, err := os.ReadFile(filepath.Clean(filepath.Join(dir, CAKeyFile)))
	if err != nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("file", CAKeyFile).Wrap(err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("file", CAFile).Errorf("no PEM block")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("file", CAFile).Wrap(err)
	}

	block, _ = pem.Decode(keyPEM)
	if block == nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("file", CAKeyFile).Errorf("no PEM block")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("file", CAKeyFile).Wrap(err)
	}
	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// EnsureServerCert returns the server key pair in dir, creating it (and the
// CA, if missing) on first use. An existing pair is reused as-is.
func EnsureServerCert(dir string, hosts []string) (tls.Certificate, error) {
	certPath := filepath.Join(dir, ServerCertFile)
	keyPath := filepath.Join(dir, ServerKeyFile)
	if fileExists(certPath) && fileExists(keyPath) {
		return loadKeyPair(certPath, keyPath)
	}

	ca, err := LoadCA(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return tls.Certificate{}, err
		}
		if ca, err = GenerateCA(); err != nil {
			return tls.Certificate{}, err
		}
	}
	server, err := GenerateServerCert(ca, hosts)
	if err != nil {
		return tls.Certificate{}, err
	}
	if err := Save(dir, ca, server); err != nil {
		return tls.Certificate{}, err
	}
	return loadKeyPair(certPath, keyPath)
}

// LoadKeyPair loads operator-supplied PEM files.
func LoadKeyPair(certFile, keyFile string) (tls.Certificate, error) {
	return loadKeyPair(certFile, keyFile)
}

func loadKeyPair(certFile, keyFile string) (tls.Certificate, error) {
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, oops.Code("CERT_LOAD_FAILED").
			With("cert_file", certFile).
			With("key_file", keyFile).
			Wrap(err)
	}
	return pair, nil
}

func newSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, oops.Code("CERT_SERIAL_FAILED").Wrap(err)
	}
	return serial, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func saveCert(path string, cert *x509.Certificate) error {
	return writePEM(path, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

func saveKey(path string, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return oops.Code("CERT_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return writePEM(path, &pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

func writePEM(path string, block *pem.Block) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return oops.Code("CERT_SAVE_FAILED").With("path", path).Wrap(err)
	}
	if err := pem.Encode(f, block); err != nil {
		_ = f.Close()
		return oops.Code("CERT_SAVE_FAILED").With("path", path).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return oops.Code("CERT_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
