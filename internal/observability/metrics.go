// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cyberwhale/cyberwhale/internal/auth"
)

// Metrics holds the CyberWhale counters. It implements auth.Observer.
type Metrics struct {
	CodesIssued      *prometheus.CounterVec
	CodesChecked     *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
	LoginAttempts    *prometheus.CounterVec
	Swept            *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CodesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberwhale_codes_issued_total",
			Help: "One-time codes issued, by purpose",
		}, []string{"purpose"}),
		CodesChecked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberwhale_codes_checked_total",
			Help: "One-time code checks, by purpose and outcome",
		}, []string{"purpose", "outcome"}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberwhale_code_delivery_failures_total",
			Help: "Codes issued but not delivered, by purpose",
		}, []string{"purpose"}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberwhale_login_attempts_total",
			Help: "Login attempts, by outcome",
		}, []string{"outcome"}),
		Swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberwhale_swept_total",
			Help: "Expired records removed by the sweeper, by kind",
		}, []string{"kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberwhale_http_requests_total",
			Help: "API requests, by route and status code",
		}, []string{"route", "status"}),
	}

	reg.MustRegister(m.CodesIssued, m.CodesChecked, m.DeliveryFailures, m.LoginAttempts, m.Swept, m.HTTPRequests)
	return m
}

// CodeIssued implements auth.Observer.
func (m *Metrics) CodeIssued(purpose auth.Purpose) {
	m.CodesIssued.WithLabelValues(string(purpose)).Inc()
}

// CodeChecked implements auth.Observer.
func (m *Metrics) CodeChecked(purpose auth.Purpose, outcome string) {
	m.CodesChecked.WithLabelValues(string(purpose), outcome).Inc()
}

// DeliveryFailed implements auth.Observer.
func (m *Metrics) DeliveryFailed(purpose auth.Purpose) {
	m.DeliveryFailures.WithLabelValues(string(purpose)).Inc()
}

// LoginAttempt implements auth.Observer.
func (m *Metrics) LoginAttempt(outcome string) {
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

// SessionsSwept implements auth.Observer.
func (m *Metrics) SessionsSwept(credentials int, sessions int64) {
	m.Swept.WithLabelValues("credentials").Add(float64(credentials))
	m.Swept.WithLabelValues("sessions").Add(float64(sessions))
}

// ObserveRequest counts one API response.
func (m *Metrics) ObserveRequest(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

var _ auth.Observer = (*Metrics)(nil)
