// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/cyberwhale/cyberwhale/pkg/errutil"
)

// Sweeper periodically drops expired codes from the credential store and
// expired session records from the repository. Lazy expiry already keeps
// results correct; sweeping only bounds memory and table growth.
type Sweeper struct {
	codes    *CredentialStore
	sessions SessionRepository
	interval time.Duration
	opts     serviceOptions
}

// NewSweeper creates a Sweeper. sessions may be nil to sweep codes only.
func NewSweeper(codes *CredentialStore, sessions SessionRepository, interval time.Duration, opts ...ServiceOption) (*Sweeper, error) {
	if codes == nil {
		return nil, oops.Errorf("credential store is required")
	}
	if interval <= 0 {
		return nil, oops.With("interval", interval).Errorf("sweep interval must be positive")
	}
	return &Sweeper{
		codes:    codes,
		sessions: sessions,
		interval: interval,
		opts:     applyServiceOptions(opts),
	}, nil
}

// SweepOnce runs a single pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (codes int, sessions int64, err error) {
	codes = s.codes.Sweep()
	if s.sessions != nil {
		sessions, err = s.sessions.DeleteExpired(ctx, s.opts.now())
		if err != nil {
			err = wrapCause(oops.Code("SWEEP_SESSIONS_FAILED"), err)
		}
	}
	s.opts.observer.SessionsSwept(codes, sessions)
	return codes, sessions, err
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			codes, sessions, err := s.SweepOnce(ctx)
			if err != nil {
				errutil.LogBestEffort(s.opts.logger, "sweep_expired", err)
				continue
			}
			if codes > 0 || sessions > 0 {
				s.opts.logger.Debug("swept expired credentials",
					"codes", codes,
					"sessions", sessions)
			}
		}
	}
}
