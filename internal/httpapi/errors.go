// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cyberwhale/cyberwhale/internal/auth"
	"github.com/cyberwhale/cyberwhale/pkg/errutil"
)

// Transport-level error codes.
const (
	CodeNoSession  = "AUTH_NO_SESSION"
	CodeBadRequest = "BAD_REQUEST"
	CodeInternal   = "INTERNAL"
	CodeNotFound   = "NOT_FOUND"
)

// Problem is the error body: {"error": {"code": ..., "message": ...}}.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type problemBody struct {
	Error Problem `json:"error"`
}

type kindResponse struct {
	status  int
	code    string
	message string
}

var kindResponses = map[auth.Kind]kindResponse{
	auth.KindInvalidCredentials: {http.StatusUnauthorized, auth.CodeInvalidCredentials, "invalid login or password"},
	auth.KindDuplicateIdentity:  {http.StatusConflict, auth.CodeDuplicateIdentity, "username or email already registered"},
	auth.KindInvalidInput:       {http.StatusBadRequest, auth.CodeInvalidInput, ""},
	auth.KindCodeNotFound:       {http.StatusNotFound, auth.CodeNotFound, "no outstanding code; request a new one"},
	auth.KindCodeExpired:        {http.StatusGone, auth.CodeExpired, "code expired; request a new one"},
	auth.KindCodeMismatch:       {http.StatusUnprocessableEntity, auth.CodeMismatch, "code does not match"},
	auth.KindSubjectNotFound:    {http.StatusNotFound, auth.CodeSubjectNotFound, "no account for that email"},
	auth.KindDurableStoreFault:  {http.StatusInternalServerError, auth.CodeDurableStoreFault, "storage unavailable"},
}

// writeError maps err onto a status and stable public code. Server-side
// failures are logged with their full oops context; their messages are not
// sent to the client.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	kind := auth.KindOf(err)
	resp, ok := kindResponses[kind]
	switch {
	case ok && resp.message == "":
		resp.message = err.Error()
	case !ok && errors.Is(err, auth.ErrNotFound):
		resp = kindResponse{http.StatusNotFound, CodeNotFound, "not found"}
	case !ok:
		resp = kindResponse{http.StatusInternalServerError, CodeInternal, "internal error"}
	}

	if resp.status >= http.StatusInternalServerError {
		errutil.LogErrorContext(c.Request.Context(), logger, "request failed", err, "route", routeOf(c))
	}
	writeProblem(c, resp.status, resp.code, resp.message)
}

func writeProblem(c *gin.Context, status int, code, message string) {
	c.JSON(status, problemBody{Error: Problem{Code: code, Message: message}})
}
