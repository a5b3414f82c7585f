// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package client

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/cyberwhale/cyberwhale/internal/xdg"
)

// TokenStore persists the bearer token between runs. Load returns "" with
// a nil error when no token is stored.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// MemoryTokenStore keeps the token for the life of the process.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryTokenStore creates an empty MemoryTokenStore.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Load implements TokenStore.
func (s *MemoryTokenStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

// Save implements TokenStore.
func (s *MemoryTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Clear implements TokenStore.
func (s *MemoryTokenStore) Clear() error {
	return s.Save("")
}

// FileTokenStore keeps the token in a single 0600 file.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore creates a FileTokenStore at path. An empty path means
// xdg.TokenFile().
func NewFileTokenStore(path string) *FileTokenStore {
	if path == "" {
		path = xdg.TokenFile()
	}
	return &FileTokenStore{path: path}
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load implements TokenStore.
func (s *FileTokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", oops.Code("TOKEN_READ_FAILED").With("path", s.path).Wrap(err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save implements TokenStore. The parent directory is created if needed.
func (s *FileTokenStore) Save(token string) error {
	if err := xdg.EnsureDir(filepath.Dir(s.path)); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0o600); err != nil {
		return oops.Code("TOKEN_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	return nil
}

// Clear implements TokenStore. Clearing a missing file succeeds.
func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.Code("TOKEN_CLEAR_FAILED").With("path", s.path).Wrap(err)
	}
	return nil
}
