// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cyberwhale/cyberwhale/internal/auth"
)

// SessionRepository implements auth.SessionRepository with a map.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[ulid.ULID]auth.SessionRecord
}

// NewSessionRepository creates an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[ulid.ULID]auth.SessionRecord)}
}

// Create stores a new session record.
func (r *SessionRepository) Create(_ context.Context, session *auth.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return oops.Code("SESSION_CREATE_FAILED").With("id", session.ID.String()).Errorf("session already exists")
	}
	r.sessions[session.ID] = *session
	return nil
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return &s, nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.sessions, id)
	return nil
}

// DeleteExpired removes sessions expired at now.
func (r *SessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, s := range r.sessions {
		if s.IsExpiredAt(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions.
func (r *SessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
