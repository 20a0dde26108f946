package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vertextoedge/swiftsaver/internal/domain"
)

// Failure is the error response body
type Failure struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTaskNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnsupportedPlatform), errors.Is(err, domain.ErrVariantUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRegistryClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), Failure{Error: err.Error()})
}

func respondFailure(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Failure{Error: msg})
}

// bindOptional decodes a JSON body when one is present
func bindOptional(c *gin.Context, v any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	return nil
}
