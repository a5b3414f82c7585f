// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth

// Observer receives counts of credential and session events. The
// observability package implements it with Prometheus counters.
type Observer interface {
	CodeIssued(purpose Purpose)
	CodeChecked(purpose Purpose, outcome string)
	DeliveryFailed(purpose Purpose)
	LoginAttempt(outcome string)
	SessionsSwept(credentials int, sessions int64)
}

// Outcome labels passed to Observer.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

type nopObserver struct{}

func (nopObserver) CodeIssued(Purpose)          {}
func (nopObserver) CodeChecked(Purpose, string) {}
func (nopObserver) DeliveryFailed(Purpose)      {}
func (nopObserver) LoginAttempt(string)         {}
func (nopObserver) SessionsSwept(int, int64)    {}

// NopObserver discards every event.
var NopObserver Observer = nopObserver{}
