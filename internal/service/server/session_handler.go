package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vertextoedge/swiftsaver/internal/domain"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Enabled bool            `json:"enabled"`
	Session *domain.Session `json:"session"`
}

type pageViewRequest struct {
	Page string `json:"page" binding:"required"`
}

func (s *Server) handleGetSession(c *gin.Context) {
	c.JSON(http.StatusOK, sessionResponse{
		Enabled: s.deps.Accounts.Enabled(),
		Session: s.deps.Accounts.Current(),
	})
}

func (s *Server) handleSignIn(c *gin.Context) {
	s.authenticate(c, s.deps.Accounts.SignIn)
}

func (s *Server) handleSignUp(c *gin.Context) {
	s.authenticate(c, s.deps.Accounts.SignUp)
}

func (s *Server) authenticate(c *gin.Context, fn func(ctx context.Context, email, password string) (*domain.Session, error)) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "email and password are required")
		return
	}

	session, err := fn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			respondFailure(c, http.StatusUnauthorized, err.Error())
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		Enabled: s.deps.Accounts.Enabled(),
		Session: session,
	})
}

func (s *Server) handleSignOut(c *gin.Context) {
	if err := s.deps.Accounts.SignOut(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handlePageView forwards a page view to analytics
func (s *Server) handlePageView(c *gin.Context) {
	var req pageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "page is required")
		return
	}
	if err := s.deps.Accounts.TrackPageView(c.Request.Context(), req.Page); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
