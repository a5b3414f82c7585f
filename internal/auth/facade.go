// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cyberwhale/cyberwhale/pkg/errutil"
)

// Facade is the entry point used by transports and the CLI. It composes
// the session manager and the verification service.
type Facade struct {
	sessions     *SessionManager
	verification *VerificationService
	logger       *slog.Logger
}

// NewFacade creates a Facade.
func NewFacade(sessions *SessionManager, verification *VerificationService, logger *slog.Logger) (*Facade, error) {
	if sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	if verification == nil {
		return nil, oops.Errorf("verification service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{sessions: sessions, verification: verification, logger: logger}, nil
}

// Login authenticates and returns a new session.
func (f *Facade) Login(ctx context.Context, creds Credentials) (*Session, error) {
	return f.sessions.Login(ctx, creds)
}

// Register creates an account, returns its session, and sends the first
// verification code. A failed code issue does not fail registration; the
// user can request a new code.
func (f *Facade) Register(ctx context.Context, reg Registration) (*Session, error) {
	session, err := f.sessions.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	if _, err := f.verification.IssueVerificationCode(ctx, session.User.Email); err != nil {
		errutil.LogBestEffort(f.logger, "issue_verification_code", err)
	}
	return session, nil
}

// Logout revokes token. It always succeeds.
func (f *Facade) Logout(ctx context.Context, token string) {
	f.sessions.Logout(ctx, token)
}

// CheckSession returns the user behind token, or nil when the token should
// be discarded.
func (f *Facade) CheckSession(ctx context.Context, token string) (*User, error) {
	return f.sessions.Restore(ctx, token)
}

// UpdateProfile applies update to userID. A changed email address gets a
// fresh verification code; resubmitting the current one sends nothing.
func (f *Facade) UpdateProfile(ctx context.Context, userID ulid.ULID, update ProfileUpdate) (*User, error) {
	user, emailChanged, err := f.sessions.updateProfile(ctx, userID, update)
	if err != nil {
		return nil, err
	}
	if emailChanged {
		if _, err := f.verification.IssueVerificationCode(ctx, user.Email); err != nil {
			errutil.LogBestEffort(f.logger, "issue_verification_code", err)
		}
	}
	return user, nil
}

// RequestVerification issues a new verification code for email.
func (f *Facade) RequestVerification(ctx context.Context, email string) error {
	_, err := f.verification.IssueVerificationCode(ctx, email)
	return err
}

// VerifyEmail consumes a verification code for email.
func (f *Facade) VerifyEmail(ctx context.Context, email, code string) (*User, error) {
	return f.verification.Verify(ctx, email, code)
}

// VerifyEmailByCode consumes a verification code without the email.
func (f *Facade) VerifyEmailByCode(ctx context.Context, code string) (*User, error) {
	return f.verification.VerifyByCode(ctx, code)
}

// RequestPasswordReset issues a reset code. An unknown email is reported
// as success so the endpoint does not reveal which addresses exist.
func (f *Facade) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := f.verification.IssueResetCode(ctx, email)
	if errors.Is(err, ErrSubjectNotFound) {
		f.logger.Info("password reset requested for unknown email")
		return nil
	}
	return err
}

// CheckResetCode reports whether code is a live reset code.
func (f *Facade) CheckResetCode(ctx context.Context, code string) (*User, error) {
	return f.verification.CheckResetCode(ctx, code)
}

// ResetPassword consumes a reset code and sets newPassword.
func (f *Facade) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	return f.verification.ConsumeResetCode(ctx, email, code, newPassword)
}
