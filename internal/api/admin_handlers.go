package api

import (
	"crypto/subtle"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/happiness-o-meter/internal/errors"
)

// requireAdmin checks the bearer token against the configured admin token.
func (s *Server) requireAdmin(c *gin.Context) {
	token := bearerToken(c)
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.AdminToken)) != 1 {
		s.Logger.SecurityLogger("admin_auth_failed", c.ClientIP(), c.Request.UserAgent(),
			map[string]interface{}{"path": c.Request.URL.Path})
		fail(c, apperrors.NewUnauthorizedError("Invalid admin token", nil), "")
		return
	}
	c.Next()
}

// handleUpdateLeaderboards recomputes every ranking outside the background
// refresh schedule.
func (s *Server) handleUpdateLeaderboards(c *gin.Context) {
	if err := s.Leaderboard.UpdateLeaderboards(c.Request.Context()); err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "leaderboards updated successfully"})
}

// handleResetIPLimit gives an address its full budgets back.
func (s *Server) handleResetIPLimit(c *gin.Context) {
	ip := c.Param("ip")
	if net.ParseIP(ip) == nil {
		fail(c, apperrors.NewValidationError("invalid ip address", ip), ip)
		return
	}

	if err := s.Limiter.InvalidateIP(c.Request.Context(), ip); err != nil {
		fail(c, apperrors.NewInternalError("failed to reset rate limits", err), ip)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rate limits reset", "ip": ip})
}

func (s *Server) handleResetAllLimits(c *gin.Context) {
	if err := s.Limiter.InvalidateAll(c.Request.Context()); err != nil {
		fail(c, apperrors.NewInternalError("failed to reset rate limits", err), "")
		return
	}
	s.Logger.SystemLogger("ratelimit_reset", "all rate limit state cleared by operator")
	c.JSON(http.StatusOK, gin.H{"message": "all rate limits reset"})
}
