// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/cyberwhale/cyberwhale/pkg/errutil"
)

// State is the login state of a Session.
type State int

// Session states.
const (
	StateAnonymous State = iota
	StateAuthenticated
)

func (s State) String() string {
	if s == StateAuthenticated {
		return "authenticated"
	}
	return "anonymous"
}

// ErrNotAuthenticated is returned by operations that need a logged-in
// session.
var ErrNotAuthenticated = errors.New("not logged in")

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger for best-effort failures.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session tracks whether this client is logged in and holds its token.
type Session struct {
	backend Backend
	tokens  TokenStore
	logger  *slog.Logger

	mu    sync.Mutex
	state State
	token string
	user  *User
}

// NewSession creates an Anonymous Session. Call Start to pick up a token
// kept from an earlier run.
func NewSession(backend Backend, tokens TokenStore, opts ...SessionOption) (*Session, error) {
	if backend == nil {
		return nil, oops.Errorf("backend is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token store is required")
	}
	s := &Session{backend: backend, tokens: tokens, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start restores the stored token once. A token the server rejects is
// cleared and the session stays Anonymous. Transport and server faults are
// returned and the token is kept for the next attempt.
func (s *Session) Start(ctx context.Context) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.tokens.Load()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	user, err := s.backend.Restore(ctx, token)
	if err != nil {
		return nil, oops.Code("CLIENT_RESTORE_FAILED").Wrap(err)
	}
	if user == nil {
		s.logger.Info("stored session is no longer valid; logged out")
		if err := s.tokens.Clear(); err != nil {
			errutil.LogBestEffort(s.logger, "clear_stale_token", err)
		}
		return nil, nil
	}

	s.authenticate(token, user)
	return user, nil
}

// Login authenticates and remembers the new token. On failure the state is
// unchanged.
func (s *Session) Login(ctx context.Context, login, password string) (*User, error) {
	token, user, err := s.backend.Login(ctx, login, password)
	if err != nil {
		return nil, err
	}
	return s.adopt(token, user)
}

// Register creates an account and logs in as it.
func (s *Session) Register(ctx context.Context, username, email, password string) (*User, error) {
	token, user, err := s.backend.Register(ctx, username, email, password)
	if err != nil {
		return nil, err
	}
	return s.adopt(token, user)
}

// Logout returns to Anonymous. Local state is always cleared; failing to
// revoke the token remotely is only logged.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	token := s.token
	s.state, s.token, s.user = StateAnonymous, "", nil
	s.mu.Unlock()

	if err := s.tokens.Clear(); err != nil {
		errutil.LogBestEffort(s.logger, "clear_token", err)
	}
	if token == "" {
		return
	}
	if err := s.backend.Logout(ctx, token); err != nil {
		errutil.LogBestEffort(s.logger, "remote_logout", err)
	}
}

// UpdateProfile changes the logged-in user's profile.
func (s *Session) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		return nil, oops.Code("CLIENT_NOT_AUTHENTICATED").Wrap(ErrNotAuthenticated)
	}

	user, err := s.backend.UpdateProfile(ctx, token, update)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.token == token {
		s.user = user
	}
	s.mu.Unlock()
	return user, nil
}

// State reports the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the logged-in user, or nil when Anonymous.
func (s *Session) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// adopt stores token and enters Authenticated. If the token cannot be
// persisted the session still works for this process.
func (s *Session) adopt(token string, user *User) (*User, error) {
	if token == "" || user == nil {
		return nil, oops.Code("CLIENT_BAD_RESPONSE").Errorf("server returned no session")
	}
	if err := s.tokens.Save(token); err != nil {
		errutil.LogBestEffort(s.logger, "save_token", err)
	}
	s.mu.Lock()
	s.authenticate(token, user)
	s.mu.Unlock()
	return user, nil
}

func (s *Session) authenticate(token string, user *User) {
	s.state, s.token, s.user = StateAuthenticated, token, user
}
