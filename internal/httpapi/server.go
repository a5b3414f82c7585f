// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

// Package httpapi exposes the auth facade as a JSON API.
package httpapi

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/cyberwhale/cyberwhale/internal/auth"
)

// RequestObserver counts responses per route.
type RequestObserver interface {
	ObserveRequest(route string, status int)
}

type nopRequestObserver struct{}

func (nopRequestObserver) ObserveRequest(string, int) {}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the access and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRequestObserver sets the per-route response counter.
func WithRequestObserver(obs RequestObserver) Option {
	return func(s *Server) {
		if obs != nil {
			s.observer = obs
		}
	}
}

// WithTLS makes Run serve HTTPS with cfg.
func WithTLS(cfg *tls.Config) Option {
	return func(s *Server) {
		s.tlsConfig = cfg
	}
}

// Server routes API requests to an auth.Facade.
type Server struct {
	facade    *auth.Facade
	logger    *slog.Logger
	observer  RequestObserver
	tlsConfig *tls.Config
	engine    *gin.Engine
}

// NewServer creates a Server and builds its routes.
func NewServer(facade *auth.Facade, opts ...Option) (*Server, error) {
	if facade == nil {
		return nil, oops.Errorf("auth facade is required")
	}
	s := &Server{
		facade:   facade,
		logger:   slog.Default(),
		observer: nopRequestObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(
		requestID(),
		tracing(),
		accessLog(s.logger, s.observer),
		gin.CustomRecovery(s.recovered),
	)
	router.NoRoute(func(c *gin.Context) {
		writeProblem(c, http.StatusNotFound, "ROUTE_NOT_FOUND", "no such route")
	})
	router.NoMethod(func(c *gin.Context) {
		writeProblem(c, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	v1 := router.Group("/v1/auth")
	v1.POST("/register", s.register)
	v1.POST("/login", s.login)
	v1.POST("/logout", s.logout)
	v1.POST("/verification", s.requestVerification)
	v1.POST("/verification/confirm", s.confirmVerification)
	v1.POST("/password-reset", s.requestPasswordReset)
	v1.GET("/password-reset/:code", s.checkResetCode)
	v1.POST("/password-reset/confirm", s.confirmPasswordReset)

	me := v1.Group("/me")
	me.Use(requireSession(s.facade, s.logger))
	me.GET("", s.me)
	me.PATCH("", s.updateProfile)

	return router
}

func (s *Server) recovered(c *gin.Context, recovered any) {
	s.logger.ErrorContext(c.Request.Context(), "panic serving request",
		"route", c.FullPath(),
		"panic", recovered)
	writeProblem(c, http.StatusInternalServerError, "INTERNAL", "internal error")
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// ready, if non-nil, receives the bound address once listening.
func (s *Server) Run(ctx context.Context, addr string, ready func(net.Addr)) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("http api listening", "addr", listener.Addr().String(), "tls", s.tlsConfig != nil)
	if ready != nil {
		ready(listener.Addr())
	}

	select {
	case err := <-errCh:
		return oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	}
	s.logger.Info("http api stopped")
	return nil
}
