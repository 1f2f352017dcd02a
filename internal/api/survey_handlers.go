package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/happiness-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/scoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/survey"
)

func (s *Server) handleHealth(c *gin.Context) {
	response := gin.H{
		"status":    "ok",
		"version":   Version,
		"timestamp": time.Now().Format(time.RFC3339),
		"store":     s.Sessions.Backend(),
	}

	if s.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.PingContext(ctx); err != nil {
			response["status"] = "degraded"
			response["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		response["database"] = "ok"
	}

	// sessions live in Redis when it is enabled, so an outage degrades the service
	if s.Redis.IsEnabled() {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.Redis.HealthCheck(ctx); err != nil {
			response["status"] = "degraded"
			response["redis"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		response["redis"] = "ok"
	}

	c.JSON(http.StatusOK, response)
}

type surveyResponse struct {
	Version          int                          `json:"version"`
	DimensionWeights map[survey.Dimension]float64 `json:"dimension_weights"`
	Countries        []survey.Country             `json:"countries"`
	DefaultCountry   survey.CountryCode           `json:"default_country"`
	Questions        []survey.Question            `json:"questions"`
}

func (s *Server) handleSurvey(c *gin.Context) {
	catalog := s.Engine.Catalog()
	c.JSON(http.StatusOK, surveyResponse{
		Version:          catalog.Version,
		DimensionWeights: catalog.DimensionWeights,
		Countries:        catalog.Countries(),
		DefaultCountry:   survey.DefaultCountry,
		Questions:        catalog.Questions,
	})
}

func (s *Server) handleLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"levels": scoring.Levels()})
}

type scoreRequest struct {
	Answers scoring.Answers    `json:"answers"`
	Country survey.CountryCode `json:"country"`
}

// handleScore scores answers without a session. Unknown countries fall back
// to the default coefficient, as the engine does.
func (s *Server) handleScore(c *gin.Context) {
	start := time.Now()

	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.NewValidationError("invalid request body", err.Error()), "")
		return
	}
	if req.Country == "" {
		req.Country = survey.DefaultCountry
	}

	result := s.Engine.Calculate(req.Answers, req.Country)
	s.Metrics.IncrementScoresCalculated()
	s.Logger.ScoringLogger(string(req.Country), len(req.Answers), result.TotalScore,
		string(result.Level), time.Since(start), false)

	c.JSON(http.StatusOK, result)
}

func (s *Server) handlePrivacyPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, s.Privacy.RetentionPolicy())
}

func (s *Server) handleMetrics(c *gin.Context) {
	response := gin.H{
		"app":         s.Metrics.GetStats(),
		"score_cache": s.scoreCache.Stats(),
		"compression": s.compression.GetStats(),
	}
	if s.Leaderboard != nil {
		response["leaderboard_cache"] = s.Leaderboard.GetCacheStats()
	}
	if s.DB != nil {
		response["database_pool"] = s.DB.GetPoolStats()
	}
	if s.Limiter != nil {
		response["rate_limiter"] = s.Limiter.GetStats()
	}
	if s.Events != nil {
		response["events"] = s.Events.GetStats()
	}
	c.JSON(http.StatusOK, response)
}
