// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Default values for new accounts.
const (
	DefaultRole  = "user"
	DefaultLevel = 1
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 6
)

// usernameRegex: a letter followed by letters, digits or underscores.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// User is the durable account record. The verification and reset code
// fields mirror the in-memory credential store so codes survive restarts
// and can be looked up by value.
type User struct {
	ID                   ulid.ULID
	Username             string
	Email                string
	PasswordHash         string
	Role                 string
	Points               int
	Level                int
	Avatar               *string
	EmailVerified        bool
	VerificationCode     *string
	VerificationExpires  *time.Time
	ResetPasswordCode    *string
	ResetPasswordExpires *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewUser creates a validated User with a fresh ID and default role.
func NewUser(username, email, passwordHash string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, invalidInput("password_hash", "cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		Email:        normalized,
		PasswordHash: passwordHash,
		Role:         DefaultRole,
		Level:        DefaultLevel,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateUsername checks length and character set.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return invalidInput("username", "is too short")
	}
	if len(username) > MaxUsernameLength {
		return invalidInput("username", "is too long")
	}
	if !usernameRegex.MatchString(username) {
		return invalidInput("username", "must start with a letter and contain only letters, digits and underscores")
	}
	return nil
}

// ValidatePassword checks the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalidInput("password", "is too short")
	}
	return nil
}

// NormalizeEmail trims and lowercases an address after checking its syntax.
// Emails are compared in this form everywhere, including as code subjects.
func NormalizeEmail(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", invalidInput("email", "cannot be empty")
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", invalidInput("email", "is not a valid address")
	}
	return strings.ToLower(trimmed), nil
}

// ProfileUpdate is a partial update; nil fields are left unchanged.
type ProfileUpdate struct {
	Username *string
	Email    *string
	Avatar   *string
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Username == nil && u.Email == nil && u.Avatar == nil
}

// UserRepository is the durable record store for accounts.
type UserRepository interface {
	// Create stores a new user. A taken username or email returns an error
	// wrapping ErrDuplicateIdentity.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update writes the profile fields of user (username, email, avatar,
	// email_verified, role, points, level). Changing the email clears the
	// stored verification code.
	Update(ctx context.Context, user *User) error

	// UpdatePassword replaces the password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// SetVerificationCode stores the outstanding verification code.
	SetVerificationCode(ctx context.Context, id ulid.ULID, code string, expires time.Time) error

	// GetByVerificationCode finds the user holding code.
	GetByVerificationCode(ctx context.Context, code string) (*User, error)

	// ConfirmEmail marks the email verified and clears the verification
	// code, only if code is still stored and live at now. Returns false
	// when another caller consumed it first.
	ConfirmEmail(ctx context.Context, id ulid.ULID, code string, now time.Time) (bool, error)

	// SetResetPasswordCode stores the outstanding reset code for email.
	SetResetPasswordCode(ctx context.Context, email, code string, expires time.Time) error

	// GetByResetCode finds the user holding a reset code live at now.
	GetByResetCode(ctx context.Context, code string, now time.Time) (*User, error)

	// ConsumeResetCode swaps in passwordHash and clears the reset code in one
	// step, only if code is still stored and live at now.
	ConsumeResetCode(ctx context.Context, id ulid.ULID, code, passwordHash string, now time.Time) (bool, error)
}
