// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package main

import (
	"context"
	"sync"

	"github.com/cyberwhale/cyberwhale/internal/observability"
)

// fakeMigrator records calls made through the Migrator interface.
type fakeMigrator struct {
	mu sync.Mutex

	version uint
	dirty   bool
	pending []uint

	upErr      error
	downErr    error
	versionErr error
	forceErr   error
	closeErr   error

	upCalled    bool
	downCalled  bool
	closeCalled bool
	forced      []int
}

func (m *fakeMigrator) Up() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upCalled = true
	if m.upErr == nil && len(m.pending) > 0 {
		m.version = m.pending[len(m.pending)-1]
		m.pending = nil
	}
	return m.upErr
}

func (m *fakeMigrator) Down() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downCalled = true
	return m.downErr
}

func (m *fakeMigrator) Version() (uint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version, m.dirty, m.versionErr
}

func (m *fakeMigrator) Force(version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced = append(m.forced, version)
	return m.forceErr
}

func (m *fakeMigrator) Pending() ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint(nil), m.pending...), m.versionErr
}

func (m *fakeMigrator) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalled = true
	return m.closeErr
}

// fakeObservabilityServer stands in for observability.Server.
type fakeObservabilityServer struct {
	startErr error
	ready    observability.ReadinessChecker
	errCh    chan error

	mu      sync.Mutex
	stopped bool
}

func (s *fakeObservabilityServer) Start() (<-chan error, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.errCh = make(chan error, 1)
	return s.errCh, nil
}

func (s *fakeObservabilityServer) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeObservabilityServer) Addr() string { return "127.0.0.1:0" }

func (s *fakeObservabilityServer) Metrics() *observability.Metrics { return nil }

func (s *fakeObservabilityServer) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
