// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode fails t unless err is an oops error reporting code.
// The reported code is the deepest one in the chain.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr := requireOops(t, err, "code "+code)
	assert.Equal(t, code, oopsErr.Code(), "error code (error: %v)", err)
}

// AssertErrorContext fails t unless err is an oops error whose merged
// context holds key with value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr := requireOops(t, err, "context "+key)
	ctx := oopsErr.Context()
	require.Contains(t, ctx, key, "context keys of %v", err)
	assert.Equal(t, value, ctx[key], "context %q", key)
}

func requireOops(t *testing.T, err error, want string) oops.OopsError {
	t.Helper()
	require.Error(t, err, "expected an error carrying %s", want)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected an oops error carrying %s, got %T: %v", want, err, err)
	return oopsErr
}
