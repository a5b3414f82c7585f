// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth

import (
	"crypto/rand"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

const tokenIssuer = "cyberwhale"

// TokenClaims are the claims carried by a bearer token. Subject is the
// user ID and ID (jti) is the session record ID.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and parses HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenIssuerOption configures a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithTokenClock replaces time.Now for issuing and expiry checks.
func WithTokenClock(now func() time.Time) TokenIssuerOption {
	return func(i *TokenIssuer) {
		i.now = now
	}
}

// NewTokenIssuer creates an issuer. An empty secret is replaced by 32
// random bytes, which invalidates tokens on every restart.
func NewTokenIssuer(secret string, ttl time.Duration, opts ...TokenIssuerOption) (*TokenIssuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, oops.Code("TOKEN_KEY_FAILED").Wrap(err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	issuer := &TokenIssuer{secret: key, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}

// TTL returns the lifetime of issued tokens.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for userID bound to sessionID.
func (i *TokenIssuer) Issue(userID, sessionID ulid.ULID) (token string, expiresAt time.Time, err error) {
	now := i.now()
	expiresAt = now.Add(i.ttl)
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID.String(),
			ID:        sessionID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return token, expiresAt, nil
}

// Parse verifies token and returns the user and session IDs it carries.
// Any malformed, foreign, or expired token is an error.
func (i *TokenIssuer) Parse(token string) (userID, sessionID ulid.ULID, err error) {
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return ulid.ULID{}, ulid.ULID{}, oops.Code("TOKEN_INVALID").Wrap(err)
	}
	if !parsed.Valid {
		return ulid.ULID{}, ulid.ULID{}, oops.Code("TOKEN_INVALID").Errorf("token is not valid")
	}

	userID, err = ulid.Parse(claims.Subject)
	if err != nil {
		return ulid.ULID{}, ulid.ULID{}, oops.Code("TOKEN_INVALID").With("claim", "sub").Wrap(err)
	}
	sessionID, err = ulid.Parse(claims.ID)
	if err != nil {
		return ulid.ULID{}, ulid.ULID{}, oops.Code("TOKEN_INVALID").With("claim", "jti").Wrap(err)
	}
	return userID, sessionID, nil
}
