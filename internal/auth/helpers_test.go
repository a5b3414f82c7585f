// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cyberwhale/cyberwhale/internal/auth"
	"github.com/cyberwhale/cyberwhale/internal/auth/memory"
	"github.com/cyberwhale/cyberwhale/internal/notify"
)

// cheapParams keep argon2 fast in tests.
var cheapParams = auth.Argon2Params{Time: 1, Memory: 64, Threads: 1, SaltLen: 8, KeyLen: 16}

func cheapHasher() *auth.Argon2idHasher {
	return auth.NewArgon2idHasherWithParams(cheapParams)
}

// clock is a settable time source shared by the store and the services.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequentialCodes yields 100001, 100002, ...
func sequentialCodes() auth.CodeGenerator {
	var mu sync.Mutex
	next := auth.MinCode
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		next++
		return strconv.Itoa(next), nil
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// countingObserver records Observer calls.
type countingObserver struct {
	mu       sync.Mutex
	issued   map[auth.Purpose]int
	checked  map[string]int
	failed   map[auth.Purpose]int
	logins   map[string]int
	swept    int
	sessions int64
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		issued:  make(map[auth.Purpose]int),
		checked: make(map[string]int),
		failed:  make(map[auth.Purpose]int),
		logins:  make(map[string]int),
	}
}

func (o *countingObserver) CodeIssued(p auth.Purpose) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.issued[p]++
}

func (o *countingObserver) CodeChecked(p auth.Purpose, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.checked[string(p)+"/"+outcome]++
}

func (o *countingObserver) DeliveryFailed(p auth.Purpose) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed[p]++
}

func (o *countingObserver) LoginAttempt(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logins[outcome]++
}

func (o *countingObserver) SessionsSwept(codes int, sessions int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.swept += codes
	o.sessions += sessions
}

// env is a fully wired set of services over the memory repositories.
type env struct {
	clock        *clock
	users        *memory.UserRepository
	sessions     *memory.SessionRepository
	codes        *auth.CredentialStore
	mail         *notify.Recorder
	hasher       *auth.Argon2idHasher
	observer     *countingObserver
	logs         *syncBuffer
	verification *auth.VerificationService
	manager      *auth.SessionManager
	facade       *auth.Facade
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		clock:    newClock(),
		users:    memory.NewUserRepository(),
		sessions: memory.NewSessionRepository(),
		mail:     notify.NewRecorder(),
		hasher:   cheapHasher(),
		observer: newCountingObserver(),
		logs:     &syncBuffer{},
	}
	e.codes = auth.NewCredentialStore(auth.WithClock(e.clock.Now))
	logger := slog.New(slog.NewJSONHandler(e.logs, nil))
	opts := []auth.ServiceOption{
		auth.WithLogger(logger),
		auth.WithObserver(e.observer),
		auth.WithCodeGenerator(sequentialCodes()),
		auth.WithServiceClock(e.clock.Now),
	}

	var err error
	e.verification, err = auth.NewVerificationService(e.users, e.codes, e.mail, e.hasher,
		auth.VerificationConfig{CodeTTL: auth.DefaultCodeTTL, ProductName: "CyberWhale"}, opts...)
	require.NoError(t, err)

	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour, auth.WithTokenClock(e.clock.Now))
	require.NoError(t, err)
	e.manager, err = auth.NewSessionManager(e.users, e.sessions, e.hasher, tokens, opts...)
	require.NoError(t, err)

	e.facade, err = auth.NewFacade(e.manager, e.verification, logger)
	require.NoError(t, err)
	return e
}

// seedUser stores an account directly in the repository.
func (e *env) seedUser(t *testing.T, username, email, password string) *auth.User {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)
	user, err := auth.NewUser(username, email, hash)
	require.NoError(t, err)
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func jsonLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, nil))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
