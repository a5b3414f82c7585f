// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package main

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberwhale/cyberwhale/internal/auth"
	"github.com/cyberwhale/cyberwhale/internal/notify"
)

func stubPassword(t *testing.T, password string, err error) {
	t.Helper()
	prev := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(password), err }
	t.Cleanup(func() { readPassword = prev })
}

func TestSessionCommands(t *testing.T) {
	isolateConfig(t)
	addr, stop := startServe(t, testServeConfig(), &ServeDeps{LogWriter: &syncBuffer{}, Notifier: notify.NewRecorder()})
	t.Cleanup(func() { _ = stop() })

	resp, err := http.Post("http://"+addr+"/v1/auth/register", "application/json",
		strings.NewReader(`{"username":"alice","email":"alice@example.com","password":"hunter22"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	server := "http://" + addr
	tokenFile := filepath.Join(t.TempDir(), "token")

	out, err := runCLI(t, "session", "whoami", "--server", server, "--token-file", tokenFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")

	stubPassword(t, "wrong-password", nil)
	_, err = runCLI(t, "session", "login", "alice", "--server", server, "--token-file", tokenFile)
	assert.Equal(t, auth.KindInvalidCredentials, auth.KindOf(err))
	_, statErr := os.Stat(tokenFile)
	assert.True(t, os.IsNotExist(statErr), "failed login stores nothing")

	stubPassword(t, "hunter22", nil)
	out, err = runCLI(t, "session", "login", "alice", "--server", server, "--token-file", tokenFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice")

	out, err = runCLI(t, "session", "whoami", "--server", server, "--token-file", tokenFile)
	require.NoError(t, err)
	assert.Contains(t, out, "alice <alice@example.com> (unverified)")

	out, err = runCLI(t, "session", "logout", "--server", server, "--token-file", tokenFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
	_, statErr = os.Stat(tokenFile)
	assert.True(t, os.IsNotExist(statErr))

	out, err = runCLI(t, "session", "whoami", "--server", server, "--token-file", tokenFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestSessionLogin_PasswordReadFailure(t *testing.T) {
	isolateConfig(t)
	stubPassword(t, "", errors.New("not a terminal"))

	_, err := runCLI(t, "session", "login", "alice", "--server", "http://127.0.0.1:1",
		"--token-file", filepath.Join(t.TempDir(), "token"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a terminal")
}

func TestSessionLogout_ServerUnreachableClearsToken(t *testing.T) {
	isolateConfig(t)
	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("stale\n"), 0o600))

	out, err := runCLI(t, "session", "logout", "--server", "http://127.0.0.1:1", "--token-file", tokenFile)
	require.NoError(t, err)
	assert.Contains(t, out, "forgetting token locally")
	_, statErr := os.Stat(tokenFile)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSessionCommand_BadServerURL(t *testing.T) {
	isolateConfig(t)
	_, err := runCLI(t, "session", "whoami", "--server", "localhost:8080")
	require.Error(t, err)
}
