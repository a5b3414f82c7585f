// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cyberwhale/cyberwhale/internal/auth"
	"github.com/cyberwhale/cyberwhale/internal/logging"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

const tracerName = "github.com/cyberwhale/cyberwhale/internal/httpapi"

// Context keys set by requireSession.
const (
	ctxUser  = "user"
	ctxToken = "token"
)

// requestID accepts a caller-supplied ID or mints one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// tracing starts a server span per request on the global tracer provider.
func tracing() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), routeOf(c))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}

func accessLog(logger *slog.Logger, obs RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := routeOf(c)
		status := c.Writer.Status()
		obs.ObserveRequest(route, status)

		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start))
	}
}

// routeOf names the matched route pattern, never the raw path, so reset
// codes in URLs stay out of logs and metric labels.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return c.Request.Method + " " + p
	}
	return c.Request.Method + " unmatched"
}

// requireSession resolves the bearer token to a user or answers 401.
func requireSession(facade *auth.Facade, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.Request)
		if token == "" {
			writeProblem(c, http.StatusUnauthorized, CodeNoSession, "missing bearer token")
			c.Abort()
			return
		}
		user, err := facade.CheckSession(c.Request.Context(), token)
		if err != nil {
			writeError(c, logger, err)
			c.Abort()
			return
		}
		if user == nil {
			writeProblem(c, http.StatusUnauthorized, CodeNoSession, "session expired or revoked")
			c.Abort()
			return
		}
		c.Set(ctxUser, user)
		c.Set(ctxToken, token)
		c.Next()
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func sessionUser(c *gin.Context) *auth.User {
	user, _ := c.MustGet(ctxUser).(*auth.User)
	return user
}
