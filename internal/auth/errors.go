// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Sentinel causes for every failure kind. Returned errors wrap one of these
// under an oops code, so both errors.Is and errutil.AssertErrorCode work.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrDuplicateIdentity  = errors.New("username or email already registered")
	ErrInvalidInput       = errors.New("invalid input")
	ErrCodeNotFound       = errors.New("no outstanding code")
	ErrCodeExpired        = errors.New("code expired")
	ErrCodeMismatch       = errors.New("code does not match")
	ErrSubjectNotFound    = errors.New("no account for subject")
	ErrDeliveryFailed     = errors.New("delivery failed")
	ErrDurableStore       = errors.New("durable store fault")
)

// Error codes attached to returned errors.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeDuplicateIdentity  = "AUTH_DUPLICATE_IDENTITY"
	CodeInvalidInput       = "AUTH_INVALID_INPUT"
	CodeNotFound           = "CODE_NOT_FOUND"
	CodeExpired            = "CODE_EXPIRED"
	CodeMismatch           = "CODE_MISMATCH"
	CodeSubjectNotFound    = "CODE_SUBJECT_NOT_FOUND"
	CodeDeliveryFailed     = "DELIVERY_FAILED"
	CodeDurableStoreFault  = "DURABLE_STORE_FAULT"
)

// Kind classifies a failed operation for user-facing messaging.
type Kind int

// Failure kinds. KindUnknown covers everything without a dedicated kind.
const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindDuplicateIdentity
	KindInvalidInput
	KindCodeNotFound
	KindCodeExpired
	KindCodeMismatch
	KindSubjectNotFound
	KindDeliveryFailed
	KindDurableStoreFault
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindInvalidCredentials: "invalid_credentials",
	KindDuplicateIdentity:  "duplicate_identity",
	KindInvalidInput:       "invalid_input",
	KindCodeNotFound:       "code_not_found",
	KindCodeExpired:        "code_expired",
	KindCodeMismatch:       "code_mismatch",
	KindSubjectNotFound:    "subject_not_found",
	KindDeliveryFailed:     "delivery_failed",
	KindDurableStoreFault:  "durable_store_fault",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// kindOrder is checked in sequence; domain kinds come before the store
// fault so a fault wrapping a duplicate still reports the duplicate.
var kindOrder = []struct {
	sentinel error
	kind     Kind
}{
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrDuplicateIdentity, KindDuplicateIdentity},
	{ErrInvalidInput, KindInvalidInput},
	{ErrCodeNotFound, KindCodeNotFound},
	{ErrCodeExpired, KindCodeExpired},
	{ErrCodeMismatch, KindCodeMismatch},
	{ErrSubjectNotFound, KindSubjectNotFound},
	{ErrDeliveryFailed, KindDeliveryFailed},
	{ErrDurableStore, KindDurableStoreFault},
}

// KindOf reports the Kind of err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, entry := range kindOrder {
		if errors.Is(err, entry.sentinel) {
			return entry.kind
		}
	}
	return KindUnknown
}

// storeFault wraps a repository failure so callers see DURABLE_STORE_FAULT
// with the failing operation attached.
func storeFault(operation string, err error) error {
	return wrapCause(oops.Code(CodeDurableStoreFault).With("operation", operation), err, ErrDurableStore)
}

// wrapCause wraps a collaborator error under b. The code built into b is
// the one reported; the cause's own oops code is kept as cause_code.
func wrapCause(b oops.OopsErrorBuilder, err error, sentinels ...error) error {
	if inner, ok := oops.AsOops(err); ok {
		if code := inner.Code(); code != nil && code != "" {
			b = b.With("cause_code", code)
		}
	}
	if len(sentinels) == 0 {
		return b.Wrap(causeError{err: err})
	}
	return b.Wrap(errors.Join(append(sentinels, causeError{err: err})...))
}

// causeError answers errors.Is and errors.As for the error it holds but
// never yields an oops error, which would otherwise supply the code.
type causeError struct {
	err error
}

func (c causeError) Error() string { return c.err.Error() }

func (c causeError) Is(target error) bool { return errors.Is(c.err, target) }

func (c causeError) As(target any) bool {
	if _, ok := target.(*oops.OopsError); ok {
		return false
	}
	return errors.As(c.err, target)
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
}

func invalidInput(field, reason string) error {
	return oops.Code(CodeInvalidInput).
		With("field", field).
		Wrapf(ErrInvalidInput, "%s %s", field, reason)
}
