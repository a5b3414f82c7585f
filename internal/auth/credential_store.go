// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth

import (
	"crypto/subtle"
	"sync"
	"time"
)

// Purpose separates code namespaces so a subject can hold one verification
// code and one reset code at the same time.
type Purpose string

// Code purposes.
const (
	PurposeVerification Purpose = "verification"
	PurposeReset        Purpose = "reset"
)

// CredentialKey identifies one outstanding code.
type CredentialKey struct {
	Purpose Purpose
	Subject string
}

// Credential is an issued one-time code.
type Credential struct {
	Code      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// expiredAt reports whether the credential is no longer valid at t.
// A credential is still valid at exactly ExpiresAt.
func (c Credential) expiredAt(t time.Time) bool {
	return t.After(c.ExpiresAt)
}

// CredentialStore holds outstanding one-time codes in memory.
// Each key holds at most one code; Validate consumes it on success.
// The whole table is guarded by one mutex and no I/O happens under it.
type CredentialStore struct {
	mu      sync.Mutex
	records map[CredentialKey]Credential
	now     func() time.Time
}

// CredentialStoreOption configures a CredentialStore.
type CredentialStoreOption func(*CredentialStore)

// WithClock replaces time.Now, for tests that walk across expiry.
func WithClock(now func() time.Time) CredentialStoreOption {
	return func(s *CredentialStore) {
		s.now = now
	}
}

// NewCredentialStore creates an empty store.
func NewCredentialStore(opts ...CredentialStoreOption) *CredentialStore {
	s := &CredentialStore{
		records: make(map[CredentialKey]Credential),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores code under key for ttl, replacing any earlier code for that
// key.
func (s *CredentialStore) Put(key CredentialKey, code string, ttl time.Duration) {
	s.PutUntil(key, code, s.now().Add(ttl))
}

// PutUntil stores code under key with a fixed deadline, so a copy kept
// elsewhere can expire at the same instant.
func (s *CredentialStore) PutUntil(key CredentialKey, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = Credential{
		Code:      code,
		IssuedAt:  s.now(),
		ExpiresAt: expiresAt,
	}
}

// Validate reports whether candidate is the live code for key and removes
// it if so. An expired record is dropped; any other failure leaves the
// table untouched.
func (s *CredentialStore) Validate(key CredentialKey, candidate string) bool {
	return s.ValidateAt(key, candidate, s.now())
}

// ValidateAt is Validate judged at now instead of the store's clock.
func (s *CredentialStore) ValidateAt(key CredentialKey, candidate string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return false
	}
	if rec.expiredAt(now) {
		delete(s.records, key)
		return false
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(candidate)) != 1 {
		return false
	}
	delete(s.records, key)
	return true
}

// Sweep removes every expired record and returns how many were removed.
func (s *CredentialStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, rec := range s.records {
		if rec.expiredAt(now) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of records currently held, expired or not.
func (s *CredentialStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
