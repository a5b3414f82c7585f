// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/cyberwhale/cyberwhale/pkg/errutil"
)

// DefaultCodeTTL is the lifetime of verification and reset codes.
const DefaultCodeTTL = 15 * time.Minute

// VerificationConfig holds the tunables of VerificationService.
type VerificationConfig struct {
	// CodeTTL applies to both verification and reset codes.
	CodeTTL time.Duration
	// ProductName prefixes message subjects.
	ProductName string
}

// VerificationService issues and checks email verification and password
// reset codes. The durable user record is written before the in-memory
// store, and delivery happens last and never fails issuance.
type VerificationService struct {
	users    UserRepository
	codes    *CredentialStore
	notifier Notifier
	hasher   PasswordHasher
	cfg      VerificationConfig
	opts     serviceOptions
}

// NewVerificationService creates a VerificationService. All collaborators
// are required.
func NewVerificationService(
	users UserRepository,
	codes *CredentialStore,
	notifier Notifier,
	hasher PasswordHasher,
	cfg VerificationConfig,
	opts ...ServiceOption,
) (*VerificationService, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if codes == nil {
		return nil, oops.Errorf("credential store is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = DefaultCodeTTL
	}
	if cfg.ProductName == "" {
		cfg.ProductName = DefaultProductName
	}
	return &VerificationService{
		users:    users,
		codes:    codes,
		notifier: notifier,
		hasher:   hasher,
		cfg:      cfg,
		opts:     applyServiceOptions(opts),
	}, nil
}

// CodeTTL returns the configured code lifetime.
func (s *VerificationService) CodeTTL() time.Duration {
	return s.cfg.CodeTTL
}

// IssueVerificationCode issues a verification code for the account with
// email and sends it there.
func (s *VerificationService) IssueVerificationCode(ctx context.Context, email string) (string, error) {
	subject, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}

	user, err := s.users.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", subjectNotFound(PurposeVerification, subject)
		}
		return "", storeFault("get user by email", err)
	}

	code, err := s.opts.generator()
	if err != nil {
		return "", err
	}

	expires := s.instant().Add(s.cfg.CodeTTL)
	if err := s.users.SetVerificationCode(ctx, user.ID, code, expires); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", subjectNotFound(PurposeVerification, subject)
		}
		return "", storeFault("set verification code", err)
	}

	s.codes.PutUntil(CredentialKey{Purpose: PurposeVerification, Subject: subject}, code, expires)
	s.opts.observer.CodeIssued(PurposeVerification)
	s.deliver(ctx, PurposeVerification, subject, code)

	return code, nil
}

// IssueResetCode issues a password reset code for email and sends it there.
func (s *VerificationService) IssueResetCode(ctx context.Context, email string) (string, error) {
	subject, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}

	code, err := s.opts.generator()
	if err != nil {
		return "", err
	}

	expires := s.instant().Add(s.cfg.CodeTTL)
	if err := s.users.SetResetPasswordCode(ctx, subject, code, expires); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", subjectNotFound(PurposeReset, subject)
		}
		return "", storeFault("set reset password code", err)
	}

	s.codes.PutUntil(CredentialKey{Purpose: PurposeReset, Subject: subject}, code, expires)
	s.opts.observer.CodeIssued(PurposeReset)
	s.deliver(ctx, PurposeReset, subject, code)

	return code, nil
}

// Verify consumes a verification code and marks the email verified.
// Failures carry CODE_NOT_FOUND, CODE_EXPIRED or CODE_MISMATCH.
func (s *VerificationService) Verify(ctx context.Context, email, candidate string) (*User, error) {
	subject, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	// One instant judges both copies of the code.
	now := s.instant()
	hit := s.codes.ValidateAt(CredentialKey{Purpose: PurposeVerification, Subject: subject}, candidate, now)

	user, err := s.users.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.opts.observer.CodeChecked(PurposeVerification, KindCodeNotFound.String())
			return nil, codeNotFound(PurposeVerification, subject)
		}
		s.opts.observer.CodeChecked(PurposeVerification, OutcomeError)
		return nil, storeFault("get user by email", err)
	}

	if !hit {
		// The in-memory store is only a cache; the durable record tells a
		// wrong code apart from an expired or missing one, and still holds
		// codes issued before a restart.
		if err := classifyMiss(PurposeVerification, subject, user.VerificationCode, user.VerificationExpires, candidate, now); err != nil {
			s.opts.observer.CodeChecked(PurposeVerification, KindOf(err).String())
			return nil, err
		}
	}

	confirmed, err := s.users.ConfirmEmail(ctx, user.ID, candidate, now)
	if err != nil {
		s.opts.observer.CodeChecked(PurposeVerification, OutcomeError)
		return nil, storeFault("confirm email", err)
	}
	if !confirmed {
		s.opts.observer.CodeChecked(PurposeVerification, KindCodeNotFound.String())
		return nil, codeNotFound(PurposeVerification, subject)
	}

	user.EmailVerified = true
	user.VerificationCode = nil
	user.VerificationExpires = nil
	s.opts.observer.CodeChecked(PurposeVerification, OutcomeSuccess)
	return user, nil
}

// VerifyByCode verifies using only the code, resolving the account from
// the durable record.
func (s *VerificationService) VerifyByCode(ctx context.Context, code string) (*User, error) {
	user, err := s.users.GetByVerificationCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.opts.observer.CodeChecked(PurposeVerification, KindCodeNotFound.String())
			return nil, codeNotFound(PurposeVerification, "")
		}
		return nil, storeFault("get user by verification code", err)
	}
	return s.Verify(ctx, user.Email, code)
}

// CheckResetCode returns the account holding a live reset code without
// consuming it.
func (s *VerificationService) CheckResetCode(ctx context.Context, code string) (*User, error) {
	user, err := s.users.GetByResetCode(ctx, code, s.instant())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, codeNotFound(PurposeReset, "")
		}
		return nil, storeFault("get user by reset code", err)
	}
	return user, nil
}

// ConsumeResetCode checks a reset code and, on success, replaces the
// account password and invalidates the code. The password is untouched on
// any failure.
func (s *VerificationService) ConsumeResetCode(ctx context.Context, email, candidate, newPassword string) error {
	subject, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	// Validate and hash before touching the code so a rejected password
	// does not burn it.
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return wrapCause(oops.Code("RESET_HASH_FAILED").With("operation", "hash password"), err)
	}

	now := s.instant()
	hit := s.codes.ValidateAt(CredentialKey{Purpose: PurposeReset, Subject: subject}, candidate, now)

	user, err := s.users.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.opts.observer.CodeChecked(PurposeReset, KindCodeNotFound.String())
			return codeNotFound(PurposeReset, subject)
		}
		s.opts.observer.CodeChecked(PurposeReset, OutcomeError)
		return storeFault("get user by email", err)
	}

	if !hit {
		if err := classifyMiss(PurposeReset, subject, user.ResetPasswordCode, user.ResetPasswordExpires, candidate, now); err != nil {
			s.opts.observer.CodeChecked(PurposeReset, KindOf(err).String())
			return err
		}
	}

	consumed, err := s.users.ConsumeResetCode(ctx, user.ID, candidate, passwordHash, now)
	if err != nil {
		s.opts.observer.CodeChecked(PurposeReset, OutcomeError)
		return storeFault("consume reset code", err)
	}
	if !consumed {
		s.opts.observer.CodeChecked(PurposeReset, KindCodeNotFound.String())
		return codeNotFound(PurposeReset, subject)
	}

	s.opts.observer.CodeChecked(PurposeReset, OutcomeSuccess)
	return nil
}

// instant reads the clock at the precision the durable store keeps, so
// deadlines and checks compare the same way in memory and in postgres.
func (s *VerificationService) instant() time.Time {
	return s.opts.now().Truncate(time.Microsecond)
}

// deliver sends the code message. Failures are logged and counted only.
func (s *VerificationService) deliver(ctx context.Context, purpose Purpose, to, code string) {
	msg, err := ComposeCodeMessage(s.cfg.ProductName, purpose, to, code, s.cfg.CodeTTL)
	if err == nil {
		err = s.notifier.Send(ctx, msg)
	}
	if err != nil {
		s.opts.observer.DeliveryFailed(purpose)
		errutil.LogBestEffort(s.opts.logger, "send_"+string(purpose)+"_code",
			wrapCause(oops.Code(CodeDeliveryFailed).
				With("purpose", string(purpose)).
				With("to", to), err, ErrDeliveryFailed))
	}
}

// classifyMiss explains a cache miss from the durable copy of the code.
// A nil result means the durable record still holds candidate as a live
// code.
func classifyMiss(purpose Purpose, subject string, stored *string, expires *time.Time, candidate string, now time.Time) error {
	if stored == nil || expires == nil {
		return codeNotFound(purpose, subject)
	}
	if now.After(*expires) {
		return oops.Code(CodeExpired).
			With("purpose", string(purpose)).
			With("subject", subject).
			With("expired_at", *expires).
			Wrap(ErrCodeExpired)
	}
	if subtle.ConstantTimeCompare([]byte(*stored), []byte(candidate)) != 1 {
		return oops.Code(CodeMismatch).
			With("purpose", string(purpose)).
			With("subject", subject).
			Wrap(ErrCodeMismatch)
	}
	return nil
}

func codeNotFound(purpose Purpose, subject string) error {
	return oops.Code(CodeNotFound).
		With("purpose", string(purpose)).
		With("subject", subject).
		Wrap(ErrCodeNotFound)
}

func subjectNotFound(purpose Purpose, subject string) error {
	return oops.Code(CodeSubjectNotFound).
		With("purpose", string(purpose)).
		With("subject", subject).
		Wrap(ErrSubjectNotFound)
}
