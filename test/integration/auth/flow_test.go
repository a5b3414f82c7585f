// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

//go:build integration

package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/cyberwhale/cyberwhale/internal/auth"
	"github.com/cyberwhale/cyberwhale/internal/auth/postgres"
	"github.com/cyberwhale/cyberwhale/internal/client"
	"github.com/cyberwhale/cyberwhale/internal/httpapi"
	"github.com/cyberwhale/cyberwhale/internal/notify"
)

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// stack is one server process over the shared database.
type stack struct {
	mail    *notify.Recorder
	server  *httptest.Server
	session *client.Session
}

// newStack wires the services exactly as serve does, with its own
// in-memory credential store.
func newStack() *stack {
	users := postgres.NewUserRepository(env.pool)
	sessions := postgres.NewSessionRepository(env.pool)
	hasher := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 64, Threads: 1, SaltLen: 16, KeyLen: 32})
	tokens, err := auth.NewTokenIssuer("integration-secret", time.Hour)
	Expect(err).NotTo(HaveOccurred())

	mail := notify.NewRecorder()
	opts := []auth.ServiceOption{auth.WithLogger(env.logger)}
	manager, err := auth.NewSessionManager(users, sessions, hasher, tokens, opts...)
	Expect(err).NotTo(HaveOccurred())
	verification, err := auth.NewVerificationService(users, auth.NewCredentialStore(), mail, hasher,
		auth.VerificationConfig{CodeTTL: auth.DefaultCodeTTL}, opts...)
	Expect(err).NotTo(HaveOccurred())
	facade, err := auth.NewFacade(manager, verification, env.logger)
	Expect(err).NotTo(HaveOccurred())
	api, err := httpapi.NewServer(facade, httpapi.WithLogger(env.logger))
	Expect(err).NotTo(HaveOccurred())

	server := httptest.NewServer(api.Handler())
	DeferCleanup(server.Close)

	backend, err := client.NewHTTPBackend(server.URL, server.Client())
	Expect(err).NotTo(HaveOccurred())
	session, err := client.NewSession(backend, client.NewMemoryTokenStore(), client.WithLogger(env.logger))
	Expect(err).NotTo(HaveOccurred())

	return &stack{mail: mail, server: server, session: session}
}

// lastCode extracts the code from the newest message sent to email.
func (s *stack) lastCode(email string) string {
	msg, ok := s.mail.Last(email)
	Expect(ok).To(BeTrue(), "no message sent to %s", email)
	code := codePattern.FindString(msg.Text)
	Expect(code).NotTo(BeEmpty())
	return code
}

// post sends a JSON body and returns the status and decoded response.
func (s *stack) post(path string, body any) (int, map[string]any) {
	raw, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())
	resp, err := s.server.Client().Post(s.server.URL+path, "application/json", bytes.NewReader(raw))
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func problemCode(body map[string]any) string {
	problem, ok := body["error"].(map[string]any)
	if !ok {
		return ""
	}
	code, _ := problem["code"].(string)
	return code
}

var _ = Describe("Account lifecycle against PostgreSQL", func() {
	var s *stack

	BeforeEach(func() {
		env.resetTables()
		s = newStack()
	})

	Describe("registration and verification", func() {
		It("registers, verifies the email once, and rejects reuse", func() {
			user, err := s.session.Register(env.ctx, "alice", "alice@example.com", "password1")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.EmailVerified).To(BeFalse())
			Expect(s.session.State()).To(Equal(client.StateAuthenticated))

			code := s.lastCode("alice@example.com")

			status, body := s.post("/v1/auth/verification/confirm", map[string]string{"email": "alice@example.com", "code": code})
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["email_verified"]).To(BeTrue())

			status, body = s.post("/v1/auth/verification/confirm", map[string]string{"email": "alice@example.com", "code": code})
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(problemCode(body)).To(Equal(auth.CodeNotFound))
		})

		It("distinguishes a wrong code from a missing one", func() {
			_, err := s.session.Register(env.ctx, "bob", "bob@example.com", "password1")
			Expect(err).NotTo(HaveOccurred())
			code := s.lastCode("bob@example.com")
			wrong := "100000"
			if code == wrong {
				wrong = "999999"
			}

			status, body := s.post("/v1/auth/verification/confirm", map[string]string{"email": "bob@example.com", "code": wrong})
			Expect(status).To(Equal(http.StatusUnprocessableEntity))
			Expect(problemCode(body)).To(Equal(auth.CodeMismatch))

			status, _ = s.post("/v1/auth/verification/confirm", map[string]string{"code": code})
			Expect(status).To(Equal(http.StatusOK))
		})

		It("keeps an issued code valid across a restart", func() {
			_, err := s.session.Register(env.ctx, "carol", "carol@example.com", "password1")
			Expect(err).NotTo(HaveOccurred())
			code := s.lastCode("carol@example.com")

			restarted := newStack()
			status, body := restarted.post("/v1/auth/verification/confirm", map[string]string{"email": "carol@example.com", "code": code})
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["email_verified"]).To(BeTrue())
		})

		It("rejects a duplicate registration", func() {
			_, err := s.session.Register(env.ctx, "dave", "dave@example.com", "password1")
			Expect(err).NotTo(HaveOccurred())

			other := newStack()
			_, err = other.session.Register(env.ctx, "DAVE", "someone@example.com", "password1")
			Expect(err).To(HaveOccurred())
			Expect(auth.KindOf(err)).To(Equal(auth.KindDuplicateIdentity))
		})
	})

	Describe("sessions", func() {
		BeforeEach(func() {
			_, err := s.session.Register(env.ctx, "erin", "erin@example.com", "password1")
			Expect(err).NotTo(HaveOccurred())
			s.session.Logout(env.ctx)
		})

		It("logs in, restores, and logs out", func() {
			user, err := s.session.Login(env.ctx, "erin@example.com", "password1")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Username).To(Equal("erin"))

			var count int
			Expect(env.pool.QueryRow(env.ctx, `SELECT count(*) FROM sessions`).Scan(&count)).To(Succeed())
			Expect(count).To(Equal(1))

			s.session.Logout(env.ctx)
			Expect(s.session.State()).To(Equal(client.StateAnonymous))
			Expect(env.pool.QueryRow(env.ctx, `SELECT count(*) FROM sessions`).Scan(&count)).To(Succeed())
			Expect(count).To(BeZero())
		})

		It("mints no session for a bad password", func() {
			_, err := s.session.Login(env.ctx, "erin", "wrong-password")
			Expect(auth.KindOf(err)).To(Equal(auth.KindInvalidCredentials))

			var count int
			Expect(env.pool.QueryRow(env.ctx, `SELECT count(*) FROM sessions`).Scan(&count)).To(Succeed())
			Expect(count).To(BeZero())
		})

		It("updates the profile and reissues verification for a new email", func() {
			_, err := s.session.Login(env.ctx, "erin", "password1")
			Expect(err).NotTo(HaveOccurred())

			email := "erin@new.example.com"
			user, err := s.session.UpdateProfile(env.ctx, client.ProfileUpdate{Email: &email})
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Email).To(Equal(email))
			Expect(user.EmailVerified).To(BeFalse())
			Expect(s.lastCode(email)).To(MatchRegexp(`^\d{6}$`))
		})
	})

	Describe("password reset", func() {
		It("rotates the password with a single-use code", func() {
			_, err := s.session.Register(env.ctx, "frank", "frank@example.com", "old-password")
			Expect(err).NotTo(HaveOccurred())
			s.session.Logout(env.ctx)

			status, _ := s.post("/v1/auth/password-reset", map[string]string{"email": "frank@example.com"})
			Expect(status).To(Equal(http.StatusAccepted))
			msg, ok := s.mail.Last("frank@example.com")
			Expect(ok).To(BeTrue())
			Expect(msg.Subject).To(ContainSubstring("Password reset"))
			code := codePattern.FindString(msg.Text)

			reset := map[string]string{"email": "frank@example.com", "code": code, "password": "new-password"}
			status, _ = s.post("/v1/auth/password-reset/confirm", reset)
			Expect(status).To(Equal(http.StatusNoContent))

			status, body := s.post("/v1/auth/password-reset/confirm", reset)
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(problemCode(body)).To(Equal(auth.CodeNotFound))

			_, err = s.session.Login(env.ctx, "frank", "old-password")
			Expect(auth.KindOf(err)).To(Equal(auth.KindInvalidCredentials))
			_, err = s.session.Login(env.ctx, "frank", "new-password")
			Expect(err).NotTo(HaveOccurred())
		})

		It("answers 202 for an unknown email without sending", func() {
			status, _ := s.post("/v1/auth/password-reset", map[string]string{"email": "ghost@example.com"})
			Expect(status).To(Equal(http.StatusAccepted))
			Expect(s.mail.Messages()).To(BeEmpty())
		})
	})
})
