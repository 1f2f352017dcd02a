package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/database"
	apperrors "github.com/ZanzyTHEbar/happiness-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/leaderboard"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/security"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/session"
)

const sessionKey = "session_id"

// toAppError maps package sentinels onto HTTP error categories.
func toAppError(err error, id string) *apperrors.AppError {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return apperrors.NewNotFoundError("session", id)
	case errors.Is(err, database.ErrNotFound):
		return apperrors.NewNotFoundError("result", id)
	case errors.Is(err, leaderboard.ErrNotRanked):
		return apperrors.NewNotFoundError("rank", id)
	case errors.Is(err, leaderboard.ErrInvalidPeriod):
		return apperrors.NewValidationError(err.Error())
	}
	return apperrors.ToAppError(err)
}

// fail renders err immediately so response caching never sees a bare 200.
func fail(c *gin.Context, err error, id string) {
	appErr := toAppError(err, id)
	if appErr.RequestID == "" {
		appErr.RequestID = c.GetHeader("X-Request-ID")
	}
	apperrors.LogError(c, appErr)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// requireSession checks the :id parameter and that the bearer token was
// issued for it.
func (s *Server) requireSession(c *gin.Context) {
	id := c.Param("id")
	if err := security.ValidateIdentifier("session id", id); err != nil {
		fail(c, err, id)
		return
	}
	if err := s.Sessions.Authorize(bearerToken(c), id); err != nil {
		fail(c, err, id)
		return
	}
	c.Set(sessionKey, id)
	c.Next()
}
