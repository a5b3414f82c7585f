// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cyberwhale/cyberwhale/internal/auth"
)

const userColumns = `id, username, email, password_hash, role, points, level, avatar,
		       email_verified, verification_code, verification_expires,
		       reset_password_code, reset_password_expires, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository. pool is usually a
// *pgxpool.Pool.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (
			id, username, email, password_hash, role, points, level, avatar,
			email_verified, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		user.ID.String(),
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Points,
		user.Level,
		user.Avatar,
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := isUniqueViolation(err); ok {
			return oops.Code(auth.CodeDuplicateIdentity).
				With("constraint", constraint).
				With("username", user.Username).
				Wrap(errors.Join(auth.ErrDuplicateIdentity, err))
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())
	return r.getOne(row, "id", id.String())
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
	return r.getOne(row, "username", username)
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return r.getOne(row, "email", email)
}

// Update writes the profile fields of user. A changed email drops the
// stored verification code.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET
			username = $2,
			email = $3,
			avatar = $4,
			email_verified = $5,
			role = $6,
			points = $7,
			level = $8,
			updated_at = $9,
			verification_code = CASE WHEN LOWER(email) = LOWER($3) THEN verification_code END,
			verification_expires = CASE WHEN LOWER(email) = LOWER($3) THEN verification_expires END
		WHERE id = $1
	`,
		user.ID.String(),
		user.Username,
		user.Email,
		user.Avatar,
		user.EmailVerified,
		user.Role,
		user.Points,
		user.Level,
		user.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := isUniqueViolation(err); ok {
			return oops.Code(auth.CodeDuplicateIdentity).
				With("constraint", constraint).
				With("id", user.ID.String()).
				Wrap(errors.Join(auth.ErrDuplicateIdentity, err))
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return userNotFound("id", user.ID.String())
	}
	return nil
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return userNotFound("id", id.String())
	}
	return nil
}

// SetVerificationCode stores the outstanding verification code.
func (r *UserRepository) SetVerificationCode(ctx context.Context, id ulid.ULID, code string, expires time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET verification_code = $2, verification_expires = $3
		WHERE id = $1
	`, id.String(), code, expires)
	if err != nil {
		return oops.Code("USER_SET_VERIFICATION_CODE_FAILED").
			With("operation", "set verification code").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return userNotFound("id", id.String())
	}
	return nil
}

// GetByVerificationCode finds the user holding code.
func (r *UserRepository) GetByVerificationCode(ctx context.Context, code string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE verification_code = $1
		ORDER BY verification_expires DESC
		LIMIT 1
	`, code)
	return r.getOne(row, "verification_code", "")
}

// ConfirmEmail marks the email verified if code is still live at now.
func (r *UserRepository) ConfirmEmail(ctx context.Context, id ulid.ULID, code string, now time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET
			email_verified = TRUE,
			verification_code = NULL,
			verification_expires = NULL,
			updated_at = $3
		WHERE id = $1 AND verification_code = $2 AND verification_expires >= $3
	`, id.String(), code, now)
	if err != nil {
		return false, oops.Code("USER_CONFIRM_EMAIL_FAILED").
			With("operation", "confirm email").
			With("id", id.String()).
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

// SetResetPasswordCode stores the outstanding reset code for email.
func (r *UserRepository) SetResetPasswordCode(ctx context.Context, email, code string, expires time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET reset_password_code = $2, reset_password_expires = $3
		WHERE LOWER(email) = LOWER($1)
	`, email, code, expires)
	if err != nil {
		return oops.Code("USER_SET_RESET_CODE_FAILED").
			With("operation", "set reset password code").
			With("email", email).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return userNotFound("email", email)
	}
	return nil
}

// GetByResetCode finds the user holding a reset code live at now.
func (r *UserRepository) GetByResetCode(ctx context.Context, code string, now time.Time) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE reset_password_code = $1 AND reset_password_expires >= $2
		ORDER BY reset_password_expires DESC
		LIMIT 1
	`, code, now)
	return r.getOne(row, "reset_code", "")
}

// ConsumeResetCode swaps the password and clears the code if it is live.
func (r *UserRepository) ConsumeResetCode(ctx context.Context, id ulid.ULID, code, passwordHash string, now time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET
			password_hash = $3,
			reset_password_code = NULL,
			reset_password_expires = NULL,
			updated_at = $4
		WHERE id = $1 AND reset_password_code = $2 AND reset_password_expires >= $4
	`, id.String(), code, passwordHash, now)
	if err != nil {
		return false, oops.Code("USER_CONSUME_RESET_CODE_FAILED").
			With("operation", "consume reset code").
			With("id", id.String()).
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

func (r *UserRepository) getOne(row pgx.Row, key, value string) (*auth.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, userNotFound(key, value)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by "+key).
			With(key, value).
			Wrap(err)
	}
	return user, nil
}

// scanUser scans one row selected with userColumns.
// pgx.ErrNoRows is returned unchanged.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr string
		u     auth.User
	)
	err := row.Scan(
		&idStr,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Points,
		&u.Level,
		&u.Avatar,
		&u.EmailVerified,
		&u.VerificationCode,
		&u.VerificationExpires,
		&u.ResetPasswordCode,
		&u.ResetPasswordExpires,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers add context
		}
		return nil, oops.Code("USER_SCAN_FAILED").With("operation", "scan user").Wrap(err)
	}

	u.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	return &u, nil
}

func userNotFound(key, value string) error {
	return oops.Code("USER_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
