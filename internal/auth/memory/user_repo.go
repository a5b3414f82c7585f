// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

// Package memory provides in-process implementations of the auth
// repositories for development and tests. Data is lost on exit.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cyberwhale/cyberwhale/internal/auth"
)

// UserRepository implements auth.UserRepository with a mutex-guarded map.
type UserRepository struct {
	mu    sync.Mutex
	users map[ulid.ULID]auth.User
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[ulid.ULID]auth.User)}
}

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; exists {
		return oops.Code(auth.CodeDuplicateIdentity).With("id", user.ID.String()).Wrap(auth.ErrDuplicateIdentity)
	}
	if err := r.checkUniqueLocked(user); err != nil {
		return err
	}
	r.users[user.ID] = cloneUser(*user)
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, notFound("id", id.String())
	}
	return ptr(cloneUser(u)), nil
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.findLocked(func(u auth.User) bool { return strings.EqualFold(u.Username, username) })
	if !ok {
		return nil, notFound("username", username)
	}
	return ptr(cloneUser(u)), nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.findLocked(func(u auth.User) bool { return strings.EqualFold(u.Email, email) })
	if !ok {
		return nil, notFound("email", email)
	}
	return ptr(cloneUser(u)), nil
}

// Update writes the profile fields of user. Code fields are managed by
// their own methods and only cleared here when the email changes.
func (r *UserRepository) Update(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.ID]
	if !ok {
		return notFound("id", user.ID.String())
	}
	if err := r.checkUniqueLocked(user); err != nil {
		return err
	}

	if !strings.EqualFold(stored.Email, user.Email) {
		// A code sent to the old address must not verify the new one.
		stored.VerificationCode = nil
		stored.VerificationExpires = nil
	}
	stored.Username = user.Username
	stored.Email = user.Email
	stored.Avatar = copyPtr(user.Avatar)
	stored.EmailVerified = user.EmailVerified
	stored.Role = user.Role
	stored.Points = user.Points
	stored.Level = user.Level
	stored.UpdatedAt = user.UpdatedAt
	r.users[user.ID] = stored
	return nil
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok {
		return notFound("id", id.String())
	}
	stored.PasswordHash = passwordHash
	stored.UpdatedAt = time.Now()
	r.users[id] = stored
	return nil
}

// SetVerificationCode stores the outstanding verification code.
func (r *UserRepository) SetVerificationCode(_ context.Context, id ulid.ULID, code string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok {
		return notFound("id", id.String())
	}
	stored.VerificationCode = &code
	stored.VerificationExpires = &expires
	r.users[id] = stored
	return nil
}

// GetByVerificationCode finds the user holding code.
func (r *UserRepository) GetByVerificationCode(_ context.Context, code string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.findLocked(func(u auth.User) bool {
		return u.VerificationCode != nil && *u.VerificationCode == code
	})
	if !ok {
		return nil, notFound("verification_code", "")
	}
	return ptr(cloneUser(u)), nil
}

// ConfirmEmail marks the email verified if code is still live at now.
func (r *UserRepository) ConfirmEmail(_ context.Context, id ulid.ULID, code string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok || !liveCode(stored.VerificationCode, stored.VerificationExpires, code, now) {
		return false, nil
	}
	stored.EmailVerified = true
	stored.VerificationCode = nil
	stored.VerificationExpires = nil
	stored.UpdatedAt = now
	r.users[id] = stored
	return true, nil
}

// SetResetPasswordCode stores the outstanding reset code for email.
func (r *UserRepository) SetResetPasswordCode(_ context.Context, email, code string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.findLocked(func(u auth.User) bool { return strings.EqualFold(u.Email, email) })
	if !ok {
		return notFound("email", email)
	}
	u.ResetPasswordCode = &code
	u.ResetPasswordExpires = &expires
	r.users[u.ID] = u
	return nil
}

// GetByResetCode finds the user holding a reset code live at now.
func (r *UserRepository) GetByResetCode(_ context.Context, code string, now time.Time) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.findLocked(func(u auth.User) bool {
		return liveCode(u.ResetPasswordCode, u.ResetPasswordExpires, code, now)
	})
	if !ok {
		return nil, notFound("reset_code", "")
	}
	return ptr(cloneUser(u)), nil
}

// ConsumeResetCode swaps the password and clears the code if it is live.
func (r *UserRepository) ConsumeResetCode(_ context.Context, id ulid.ULID, code, passwordHash string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok || !liveCode(stored.ResetPasswordCode, stored.ResetPasswordExpires, code, now) {
		return false, nil
	}
	stored.PasswordHash = passwordHash
	stored.ResetPasswordCode = nil
	stored.ResetPasswordExpires = nil
	stored.UpdatedAt = now
	r.users[id] = stored
	return true, nil
}

func (r *UserRepository) findLocked(match func(auth.User) bool) (auth.User, bool) {
	for _, u := range r.users {
		if match(u) {
			return u, true
		}
	}
	return auth.User{}, false
}

func (r *UserRepository) checkUniqueLocked(user *auth.User) error {
	for id, u := range r.users {
		if id == user.ID {
			continue
		}
		if strings.EqualFold(u.Username, user.Username) {
			return oops.Code(auth.CodeDuplicateIdentity).With("username", user.Username).Wrap(auth.ErrDuplicateIdentity)
		}
		if strings.EqualFold(u.Email, user.Email) {
			return oops.Code(auth.CodeDuplicateIdentity).With("email", user.Email).Wrap(auth.ErrDuplicateIdentity)
		}
	}
	return nil
}

func liveCode(stored *string, expires *time.Time, code string, now time.Time) bool {
	return stored != nil && expires != nil && *stored == code && !now.After(*expires)
}

func notFound(key, value string) error {
	return oops.Code("USER_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
}

func cloneUser(u auth.User) auth.User {
	u.Avatar = copyPtr(u.Avatar)
	u.VerificationCode = copyPtr(u.VerificationCode)
	u.VerificationExpires = copyPtr(u.VerificationExpires)
	u.ResetPasswordCode = copyPtr(u.ResetPasswordCode)
	u.ResetPasswordExpires = copyPtr(u.ResetPasswordExpires)
	return u
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptr[T any](v T) *T {
	return &v
}

var _ auth.UserRepository = (*UserRepository)(nil)
