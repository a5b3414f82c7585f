// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/cyberwhale/cyberwhale/internal/auth"
	"github.com/cyberwhale/cyberwhale/internal/httpapi"
)

// DefaultTimeout bounds each API call made by HTTPBackend.
const DefaultTimeout = 10 * time.Second

// User is the account as the API returns it.
type User = httpapi.UserView

// Backend is the remote half of a Session.
type Backend interface {
	Login(ctx context.Context, login, password string) (token string, user *User, err error)
	Register(ctx context.Context, username, email, password string) (token string, user *User, err error)
	// Restore returns a nil user when the server no longer accepts token.
	Restore(ctx context.Context, token string) (*User, error)
	Logout(ctx context.Context, token string) error
	UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*User, error)
}

// ProfileUpdate is a partial profile change; nil fields are left alone.
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

// remoteSentinels lets auth.KindOf classify errors returned by the API.
var remoteSentinels = map[string]error{
	auth.CodeInvalidCredentials: auth.ErrInvalidCredentials,
	auth.CodeDuplicateIdentity:  auth.ErrDuplicateIdentity,
	auth.CodeInvalidInput:       auth.ErrInvalidInput,
	auth.CodeNotFound:           auth.ErrCodeNotFound,
	auth.CodeExpired:            auth.ErrCodeExpired,
	auth.CodeMismatch:           auth.ErrCodeMismatch,
	auth.CodeSubjectNotFound:    auth.ErrSubjectNotFound,
	auth.CodeDurableStoreFault:  auth.ErrDurableStore,
}

// ErrRemote is wrapped by API errors that have no auth equivalent.
var ErrRemote = errors.New("remote error")

// HTTPBackend talks to the /v1/auth API.
type HTTPBackend struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPBackend creates an HTTPBackend for the server at baseURL. A nil
// httpClient uses one with DefaultTimeout.
func NewHTTPBackend(baseURL string, httpClient *http.Client) (*HTTPBackend, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, oops.Code("CLIENT_BAD_URL").With("url", baseURL).Errorf("server URL must be absolute")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPBackend{base: base, client: httpClient}, nil
}

// Login implements Backend.
func (b *HTTPBackend) Login(ctx context.Context, login, password string) (string, *User, error) {
	var view httpapi.SessionView
	body := map[string]string{"login": login, "password": password}
	if _, err := b.do(ctx, http.MethodPost, "/v1/auth/login", "", body, &view); err != nil {
		return "", nil, err
	}
	return view.Token, &view.User, nil
}

// Register implements Backend.
func (b *HTTPBackend) Register(ctx context.Context, username, email, password string) (string, *User, error) {
	var view httpapi.SessionView
	body := map[string]string{"username": username, "email": email, "password": password}
	if _, err := b.do(ctx, http.MethodPost, "/v1/auth/register", "", body, &view); err != nil {
		return "", nil, err
	}
	return view.Token, &view.User, nil
}

// Restore implements Backend.
func (b *HTTPBackend) Restore(ctx context.Context, token string) (*User, error) {
	var user User
	status, err := b.do(ctx, http.MethodGet, "/v1/auth/me", token, nil, &user)
	if status == http.StatusUnauthorized {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout implements Backend.
func (b *HTTPBackend) Logout(ctx context.Context, token string) error {
	_, err := b.do(ctx, http.MethodPost, "/v1/auth/logout", token, nil, nil)
	return err
}

// UpdateProfile implements Backend.
func (b *HTTPBackend) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*User, error) {
	var user User
	if _, err := b.do(ctx, http.MethodPatch, "/v1/auth/me", token, update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// do sends one request and decodes a 2xx body into out. The status is
// returned even when err is non-nil.
func (b *HTTPBackend) do(ctx context.Context, method, path, token string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, oops.Code("CLIENT_ENCODE_FAILED").With("path", path).Wrap(err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.base.JoinPath(path).String(), body)
	if err != nil {
		return 0, oops.Code("CLIENT_REQUEST_FAILED").With("path", path).Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, oops.Code("CLIENT_REQUEST_FAILED").
			With("method", method).
			With("path", path).
			Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, decodeProblem(resp, path)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, oops.Code("CLIENT_DECODE_FAILED").With("path", path).Wrap(err)
	}
	return resp.StatusCode, nil
}

// decodeProblem turns an error response into an oops error carrying the
// server's code and, when known, the matching auth sentinel.
func decodeProblem(resp *http.Response, path string) error {
	var body struct {
		Error httpapi.Problem `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Code == "" {
		body.Error = httpapi.Problem{Code: "HTTP_" + strconv.Itoa(resp.StatusCode), Message: resp.Status}
	}

	sentinel, ok := remoteSentinels[body.Error.Code]
	if !ok {
		sentinel = ErrRemote
	}
	return oops.Code(body.Error.Code).
		With("status", resp.StatusCode).
		With("path", path).
		Wrapf(sentinel, "%s", body.Error.Message)
}
