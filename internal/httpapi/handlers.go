// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cyberwhale/cyberwhale/internal/auth"
)

// UserView is the public projection of auth.User.
type UserView struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	Points        int       `json:"points"`
	Level         int       `json:"level"`
	Avatar        *string   `json:"avatar,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// SessionView is returned by login and register.
type SessionView struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserView  `json:"user"`
}

func newUserView(u *auth.User) UserView {
	return UserView{
		ID:            u.ID.String(),
		Username:      u.Username,
		Email:         u.Email,
		Role:          u.Role,
		Points:        u.Points,
		Level:         u.Level,
		Avatar:        u.Avatar,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

func newSessionView(s *auth.Session) SessionView {
	return SessionView{Token: s.Token, ExpiresAt: s.ExpiresAt, User: newUserView(s.User)}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type profileRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Avatar   *string `json:"avatar"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type confirmVerificationRequest struct {
	Email string `json:"email"`
	Code  string `json:"code" binding:"required"`
}

type confirmResetRequest struct {
	Email    string `json:"email" binding:"required"`
	Code     string `json:"code" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// bind decodes the JSON body into req, answering 400 on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeProblem(c, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}
	session, err := s.facade.Register(c.Request.Context(), auth.Registration{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusCreated, newSessionView(session))
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	session, err := s.facade.Login(c.Request.Context(), auth.Credentials{
		Login:     req.Login,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(session))
}

// logout always answers 204; an unknown token is already logged out.
func (s *Server) logout(c *gin.Context) {
	s.facade.Logout(c.Request.Context(), bearerToken(c.Request))
	c.Status(http.StatusNoContent)
}

func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, newUserView(sessionUser(c)))
}

func (s *Server) updateProfile(c *gin.Context) {
	var req profileRequest
	if !bind(c, &req) {
		return
	}
	user, err := s.facade.UpdateProfile(c.Request.Context(), sessionUser(c).ID, auth.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
		Avatar:   req.Avatar,
	})
	if err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(user))
}

func (s *Server) requestVerification(c *gin.Context) {
	var req emailRequest
	if !bind(c, &req) {
		return
	}
	if err := s.facade.RequestVerification(c.Request.Context(), req.Email); err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// confirmVerification accepts the code with or without the email; a
// bare code is looked up by value.
func (s *Server) confirmVerification(c *gin.Context) {
	var req confirmVerificationRequest
	if !bind(c, &req) {
		return
	}
	var (
		user *auth.User
		err  error
	)
	if req.Email == "" {
		user, err = s.facade.VerifyEmailByCode(c.Request.Context(), req.Code)
	} else {
		user, err = s.facade.VerifyEmail(c.Request.Context(), req.Email, req.Code)
	}
	if err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(user))
}

// requestPasswordReset answers 202 whether or not the email exists.
func (s *Server) requestPasswordReset(c *gin.Context) {
	var req emailRequest
	if !bind(c, &req) {
		return
	}
	if err := s.facade.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) checkResetCode(c *gin.Context) {
	user, err := s.facade.CheckResetCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "email": user.Email})
}

func (s *Server) confirmPasswordReset(c *gin.Context) {
	var req confirmResetRequest
	if !bind(c, &req) {
		return
	}
	if err := s.facade.ResetPassword(c.Request.Context(), req.Email, req.Code, req.Password); err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
