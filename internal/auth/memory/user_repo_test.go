// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberwhale/cyberwhale/internal/auth"
	"github.com/cyberwhale/cyberwhale/internal/auth/memory"
)

func newUser(t *testing.T, username, email string) *auth.User {
	t.Helper()
	u, err := auth.NewUser(username, email, "hash")
	require.NoError(t, err)
	return u
}

func TestUserRepository_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	alice := newUser(t, "alice", "alice@example.com")
	require.NoError(t, repo.Create(ctx, alice))

	byID, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byName, err := repo.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	byEmail, err := repo.GetByEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	_, err = repo.GetByID(ctx, ulid.Make())
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = repo.GetByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestUserRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	alice := newUser(t, "alice", "alice@example.com")
	require.NoError(t, repo.Create(ctx, alice))

	got, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	got.Username = "mutated"

	again, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Username)
}

func TestUserRepository_Duplicates(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	require.NoError(t, repo.Create(ctx, newUser(t, "alice", "alice@example.com")))

	err := repo.Create(ctx, newUser(t, "Alice", "other@example.com"))
	assert.ErrorIs(t, err, auth.ErrDuplicateIdentity)
	err = repo.Create(ctx, newUser(t, "other", "ALICE@example.com"))
	assert.ErrorIs(t, err, auth.ErrDuplicateIdentity)

	bob := newUser(t, "bob", "bob@example.com")
	require.NoError(t, repo.Create(ctx, bob))
	bob.Email = "alice@example.com"
	assert.ErrorIs(t, repo.Update(ctx, bob), auth.ErrDuplicateIdentity)
}

func TestUserRepository_EmailChangeClearsVerificationCode(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	alice := newUser(t, "alice", "alice@example.com")
	require.NoError(t, repo.Create(ctx, alice))
	require.NoError(t, repo.SetVerificationCode(ctx, alice.ID, "123456", time.Now().Add(time.Hour)))

	alice.Email = "new@example.com"
	require.NoError(t, repo.Update(ctx, alice))

	stored, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.VerificationCode)
	_, err = repo.GetByVerificationCode(ctx, "123456")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestUserRepository_ConfirmEmail(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := memory.NewUserRepository()
	alice := newUser(t, "alice", "alice@example.com")
	require.NoError(t, repo.Create(ctx, alice))
	require.NoError(t, repo.SetVerificationCode(ctx, alice.ID, "123456", now.Add(15*time.Minute)))

	holder, err := repo.GetByVerificationCode(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, holder.ID)

	ok, err := repo.ConfirmEmail(ctx, alice.ID, "000000", now)
	require.NoError(t, err)
	assert.False(t, ok, "wrong code")

	ok, err = repo.ConfirmEmail(ctx, alice.ID, "123456", now.Add(16*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "expired code")

	ok, err = repo.ConfirmEmail(ctx, alice.ID, "123456", now.Add(15*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ConfirmEmail(ctx, alice.ID, "123456", now)
	require.NoError(t, err)
	assert.False(t, ok, "already consumed")

	stored, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
	assert.Nil(t, stored.VerificationExpires)
}

func TestUserRepository_ResetCode(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := memory.NewUserRepository()
	alice := newUser(t, "alice", "alice@example.com")
	require.NoError(t, repo.Create(ctx, alice))

	err := repo.SetResetPasswordCode(ctx, "ghost@example.com", "333333", now)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, repo.SetResetPasswordCode(ctx, "ALICE@example.com", "333333", now.Add(15*time.Minute)))

	holder, err := repo.GetByResetCode(ctx, "333333", now)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, holder.ID)
	_, err = repo.GetByResetCode(ctx, "333333", now.Add(time.Hour))
	assert.ErrorIs(t, err, auth.ErrNotFound)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ConsumeResetCode(ctx, alice.ID, "333333", "newhash", now)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	stored, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", stored.PasswordHash)
	assert.Nil(t, stored.ResetPasswordCode)
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	alice := newUser(t, "alice", "alice@example.com")
	require.NoError(t, repo.Create(ctx, alice))

	require.NoError(t, repo.UpdatePassword(ctx, alice.ID, "rehashed"))
	stored, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "rehashed", stored.PasswordHash)

	assert.ErrorIs(t, repo.UpdatePassword(ctx, ulid.Make(), "x"), auth.ErrNotFound)
}
