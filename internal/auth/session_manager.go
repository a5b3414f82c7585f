// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cyberwhale/cyberwhale/pkg/errutil"
)

// dummyPasswordHash is verified against when the account does not exist so
// that unknown and known logins take the same time. It matches nothing.
//
//nolint:gosec // G101: not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Credentials identify a login attempt. Login is a username or an email.
type Credentials struct {
	Login     string
	Password  string
	UserAgent string
	IPAddress string
}

// Registration is the profile submitted at sign-up.
type Registration struct {
	Username  string
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// Session is the result of a successful login or registration.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// SessionManager mints, restores and revokes bearer tokens.
type SessionManager struct {
	users    UserRepository
	sessions SessionRepository
	hasher   PasswordHasher
	tokens   *TokenIssuer
	opts     serviceOptions
}

// NewSessionManager creates a SessionManager. All collaborators are required.
func NewSessionManager(
	users UserRepository,
	sessions SessionRepository,
	hasher PasswordHasher,
	tokens *TokenIssuer,
	opts ...ServiceOption,
) (*SessionManager, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	return &SessionManager{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		opts:     applyServiceOptions(opts),
	}, nil
}

// Login checks credentials and mints a session. A wrong password and an
// unknown account both return AUTH_INVALID_CREDENTIALS and mint nothing.
func (m *SessionManager) Login(ctx context.Context, creds Credentials) (*Session, error) {
	user, lookupErr := m.lookupLogin(ctx, creds.Login)

	var targetHash string
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = dummyPasswordHash
	default:
		m.opts.observer.LoginAttempt(OutcomeError)
		return nil, storeFault("get user for login", lookupErr)
	}

	// Verify even for unknown accounts to keep timing uniform.
	valid, verifyErr := m.hasher.Verify(creds.Password, targetHash)
	if verifyErr != nil && exists {
		m.opts.observer.LoginAttempt(OutcomeError)
		return nil, wrapCause(oops.Code("AUTH_LOGIN_FAILED").With("operation", "verify password"), verifyErr)
	}
	if !exists || !valid {
		m.opts.observer.LoginAttempt(OutcomeFailure)
		return nil, invalidCredentials()
	}

	if m.hasher.NeedsUpgrade(user.PasswordHash) {
		m.upgradeHash(ctx, user, creds.Password)
	}

	session, err := m.mint(ctx, user, creds.UserAgent, creds.IPAddress)
	if err != nil {
		m.opts.observer.LoginAttempt(OutcomeError)
		return nil, err
	}
	m.opts.observer.LoginAttempt(OutcomeSuccess)
	return session, nil
}

// Register creates an account and mints a session for it. A taken
// username or email returns AUTH_DUPLICATE_IDENTITY.
func (m *SessionManager) Register(ctx context.Context, reg Registration) (*Session, error) {
	if err := ValidateUsername(reg.Username); err != nil {
		return nil, err
	}
	email, err := NormalizeEmail(reg.Email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(reg.Password); err != nil {
		return nil, err
	}

	if err := m.ensureUnique(ctx, reg.Username, email, ulid.ULID{}); err != nil {
		return nil, err
	}

	passwordHash, err := m.hasher.Hash(reg.Password)
	if err != nil {
		return nil, wrapCause(oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password"), err)
	}

	user, err := NewUser(reg.Username, email, passwordHash)
	if err != nil {
		return nil, err
	}
	if err := m.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			return nil, duplicateIdentity("username_or_email", reg.Username)
		}
		return nil, storeFault("create user", err)
	}

	return m.mint(ctx, user, reg.UserAgent, reg.IPAddress)
}

// Restore resolves a previously issued token to its user. A malformed,
// expired, revoked or orphaned token yields (nil, nil) and the caller
// should discard it. Only store faults return an error.
func (m *SessionManager) Restore(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, nil
	}

	userID, sessionID, err := m.tokens.Parse(token)
	if err != nil {
		m.opts.logger.Debug("discarding unparseable session token", "error", err)
		return nil, nil
	}

	record, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, storeFault("get session", err)
	}
	if record.UserID != userID || !record.MatchesToken(token) || record.IsExpiredAt(m.opts.now()) {
		return nil, nil
	}

	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, storeFault("get user by id", err)
	}
	return user, nil
}

// Logout revokes the session behind token. It never fails: an unknown
// token is already logged out and store errors are logged.
func (m *SessionManager) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	_, sessionID, err := m.tokens.Parse(token)
	if err != nil {
		// Expired or foreign tokens have nothing left to revoke.
		return
	}
	if err := m.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrNotFound) {
		errutil.LogBestEffort(m.opts.logger, "revoke_session",
			oops.With("session_id", sessionID.String()).Wrap(err))
	}
}

// UpdateProfile applies a partial profile update. Changing the email clears
// its verified flag. Tokens stay valid.
func (m *SessionManager) UpdateProfile(ctx context.Context, userID ulid.ULID, update ProfileUpdate) (*User, error) {
	user, _, err := m.updateProfile(ctx, userID, update)
	return user, err
}

// updateProfile is UpdateProfile that also reports whether the email
// address changed.
func (m *SessionManager) updateProfile(ctx context.Context, userID ulid.ULID, update ProfileUpdate) (*User, bool, error) {
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, wrapCause(oops.Code("AUTH_USER_NOT_FOUND").With("user_id", userID.String()), err)
		}
		return nil, false, storeFault("get user by id", err)
	}
	if update.IsEmpty() {
		return user, false, nil
	}

	var newUsername, newEmail string
	if update.Username != nil && !strings.EqualFold(*update.Username, user.Username) {
		if err := ValidateUsername(*update.Username); err != nil {
			return nil, false, err
		}
		newUsername = *update.Username
	}
	if update.Email != nil {
		email, err := NormalizeEmail(*update.Email)
		if err != nil {
			return nil, false, err
		}
		if email != user.Email {
			newEmail = email
		}
	}
	if err := m.ensureUnique(ctx, newUsername, newEmail, user.ID); err != nil {
		return nil, false, err
	}

	if update.Username != nil {
		user.Username = *update.Username
	}
	if newEmail != "" {
		user.Email = newEmail
		user.EmailVerified = false
		user.VerificationCode = nil
		user.VerificationExpires = nil
	}
	if update.Avatar != nil {
		if *update.Avatar == "" {
			user.Avatar = nil
		} else {
			avatar := *update.Avatar
			user.Avatar = &avatar
		}
	}
	user.UpdatedAt = m.opts.now()

	if err := m.users.Update(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			return nil, false, duplicateIdentity("username_or_email", user.Username)
		}
		return nil, false, storeFault("update user", err)
	}
	return user, newEmail != "", nil
}

// lookupLogin resolves a login name, treating anything with "@" as email.
func (m *SessionManager) lookupLogin(ctx context.Context, login string) (*User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, ErrNotFound
	}
	if strings.Contains(login, "@") {
		return m.users.GetByEmail(ctx, strings.ToLower(login))
	}
	return m.users.GetByUsername(ctx, login)
}

// ensureUnique checks that username and email are not taken by an account
// other than self. Empty values are skipped.
func (m *SessionManager) ensureUnique(ctx context.Context, username, email string, self ulid.ULID) error {
	if username != "" {
		existing, err := m.users.GetByUsername(ctx, username)
		switch {
		case err == nil && existing.ID != self:
			return duplicateIdentity("username", username)
		case err != nil && !errors.Is(err, ErrNotFound):
			return storeFault("get user by username", err)
		}
	}
	if email != "" {
		existing, err := m.users.GetByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != self:
			return duplicateIdentity("email", email)
		case err != nil && !errors.Is(err, ErrNotFound):
			return storeFault("get user by email", err)
		}
	}
	return nil
}

func (m *SessionManager) mint(ctx context.Context, user *User, userAgent, ipAddress string) (*Session, error) {
	sessionID := ulid.Make()
	token, expiresAt, err := m.tokens.Issue(user.ID, sessionID)
	if err != nil {
		return nil, err
	}

	record, err := NewSessionRecord(sessionID, user.ID, HashToken(token), userAgent, ipAddress, expiresAt)
	if err != nil {
		return nil, wrapCause(oops.Code("AUTH_SESSION_CREATE_FAILED").With("operation", "build session record"), err)
	}
	if err := m.sessions.Create(ctx, record); err != nil {
		return nil, storeFault("persist session", err)
	}

	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// upgradeHash rewrites a legacy hash after a successful login. Login
// succeeds whether or not the rewrite does.
func (m *SessionManager) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := m.hasher.Hash(password)
	if err != nil {
		errutil.LogBestEffort(m.opts.logger, "upgrade_password_hash", err)
		return
	}
	if err := m.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
		errutil.LogBestEffort(m.opts.logger, "upgrade_password_hash",
			oops.With("user_id", user.ID.String()).Wrap(err))
		return
	}
	user.PasswordHash = newHash
}

func duplicateIdentity(field, value string) error {
	return oops.Code(CodeDuplicateIdentity).
		With("field", field).
		With("value", value).
		Wrap(ErrDuplicateIdentity)
}
