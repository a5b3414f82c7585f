// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth_test

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/cyberwhale/cyberwhale/internal/auth"
)

// mockUserRepository is a testify mock of auth.UserRepository.
type mockUserRepository struct {
	mock.Mock
}

func newMockUserRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *mockUserRepository {
	m := &mockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func userResult(args mock.Arguments) (*auth.User, error) {
	u, _ := args.Get(0).(*auth.User)
	return u, args.Error(1)
}

func (m *mockUserRepository) Create(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return userResult(m.Called(ctx, id))
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	return userResult(m.Called(ctx, username))
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return userResult(m.Called(ctx, email))
}

func (m *mockUserRepository) Update(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *mockUserRepository) SetVerificationCode(ctx context.Context, id ulid.ULID, code string, expires time.Time) error {
	return m.Called(ctx, id, code, expires).Error(0)
}

func (m *mockUserRepository) GetByVerificationCode(ctx context.Context, code string) (*auth.User, error) {
	return userResult(m.Called(ctx, code))
}

func (m *mockUserRepository) ConfirmEmail(ctx context.Context, id ulid.ULID, code string, now time.Time) (bool, error) {
	args := m.Called(ctx, id, code, now)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) SetResetPasswordCode(ctx context.Context, email, code string, expires time.Time) error {
	return m.Called(ctx, email, code, expires).Error(0)
}

func (m *mockUserRepository) GetByResetCode(ctx context.Context, code string, now time.Time) (*auth.User, error) {
	return userResult(m.Called(ctx, code, now))
}

func (m *mockUserRepository) ConsumeResetCode(ctx context.Context, id ulid.ULID, code, passwordHash string, now time.Time) (bool, error) {
	args := m.Called(ctx, id, code, passwordHash, now)
	return args.Bool(0), args.Error(1)
}

// mockSessionRepository is a testify mock of auth.SessionRepository.
type mockSessionRepository struct {
	mock.Mock
}

func newMockSessionRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *mockSessionRepository {
	m := &mockSessionRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockSessionRepository) Create(ctx context.Context, session *auth.SessionRecord) error {
	return m.Called(ctx, session).Error(0)
}

func (m *mockSessionRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.SessionRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*auth.SessionRecord)
	return rec, args.Error(1)
}

func (m *mockSessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

var (
	_ auth.UserRepository    = (*mockUserRepository)(nil)
	_ auth.SessionRepository = (*mockSessionRepository)(nil)
)
