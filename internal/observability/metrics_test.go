// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/cyberwhale/cyberwhale/internal/auth"
)

func TestMetrics_Observer(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	var obs auth.Observer = m

	obs.CodeIssued(auth.PurposeReset)
	obs.CodeIssued(auth.PurposeReset)
	obs.CodeChecked(auth.PurposeVerification, auth.OutcomeFailure)
	obs.DeliveryFailed(auth.PurposeVerification)
	obs.LoginAttempt(auth.OutcomeSuccess)
	obs.SessionsSwept(3, 2)
	obs.SessionsSwept(1, 0)

	assert.InDelta(t, 2, testutil.ToFloat64(m.CodesIssued.WithLabelValues("reset")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CodesChecked.WithLabelValues("verification", "failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveryFailures.WithLabelValues("verification")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("success")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.Swept.WithLabelValues("credentials")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Swept.WithLabelValues("sessions")), 0)
}

func TestMetrics_ObserveRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveRequest("POST /v1/auth/login", 401)
	m.ObserveRequest("POST /v1/auth/login", 401)

	assert.InDelta(t, 2, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST /v1/auth/login", "401")), 0)
}

func TestNewMetrics_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
