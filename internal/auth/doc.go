// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

// Package auth implements one-time codes and bearer sessions for CyberWhale.
//
// # Codes
//
// GenerateCode draws six-digit codes. CredentialStore keeps at most one
// outstanding code per (purpose, subject) in memory and consumes a code the
// first time it validates. VerificationService writes each code to the
// durable UserRepository before caching it, then hands it to a Notifier.
// The durable copy is authoritative: it distinguishes expired codes from
// wrong ones and keeps codes valid across restarts.
//
// # Sessions
//
// SessionManager mints HS256 bearer tokens through TokenIssuer. Every token
// names a SessionRecord, so Logout revokes it server-side. Restore never
// errors for a bad token; it returns a nil user and the caller drops the
// token.
//
// # Construction
//
// Services are created with New* constructors that reject nil
// collaborators. Facade composes them for transports.
package auth
