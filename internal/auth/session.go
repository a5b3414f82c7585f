// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultSessionTTL is how long a bearer token stays valid.
const DefaultSessionTTL = 24 * time.Hour

// SessionRecord is the server-side half of a bearer token. Deleting it
// revokes the token even before the token's own expiry.
type SessionRecord struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	UserAgent string
	IPAddress string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewSessionRecord creates a validated SessionRecord.
// UserAgent and IPAddress are optional.
func NewSessionRecord(id, userID ulid.ULID, tokenHash, userAgent, ipAddress string, expiresAt time.Time) (*SessionRecord, error) {
	if id.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_ID").Errorf("session ID cannot be zero")
	}
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &SessionRecord{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// IsExpiredAt reports whether the session is expired at t.
func (s *SessionRecord) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// HashToken returns the hex SHA-256 of a bearer token. Only the hash is
// stored server-side.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// MatchesToken compares token against the stored hash in constant time.
func (s *SessionRecord) MatchesToken(token string) bool {
	if token == "" || s.TokenHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(s.TokenHash)) == 1
}

// SessionRepository persists session records.
type SessionRepository interface {
	// Create stores a new session record.
	Create(ctx context.Context, session *SessionRecord) error

	// GetByID retrieves a session by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*SessionRecord, error)

	// Delete removes a session. Deleting a missing session returns an
	// error wrapping ErrNotFound.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteExpired removes sessions expired at now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
