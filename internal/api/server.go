// Package api exposes the survey, sessions, results and leaderboards over HTTP.
package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/cache"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/database"
	apperrors "github.com/ZanzyTHEbar/happiness-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/events"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/leaderboard"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/middleware"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/privacy"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/ratelimit"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/scoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/security"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/session"
)

// Version is reported by /health.
const Version = "1.0.0"

const scorePath = "/api/score"

// Deps are the services the HTTP layer is built on. Redis, Limiter and Events
// may be nil.
type Deps struct {
	Engine        *scoring.Engine
	Sessions      *session.Service
	DB            *database.DB
	Redis         *ratelimit.RedisClient
	Results       *database.Repository
	Leaderboard   *leaderboard.Service
	Privacy       *privacy.PrivacyService
	Events        *events.Emitter
	Metrics       *monitoring.Metrics
	Logger        *monitoring.Logger
	Limiter       *ratelimit.RateLimiter
	Security      security.SecurityConfig
	ScoreCacheTTL time.Duration
	// AdminToken guards /api/admin; the routes are not mounted when empty.
	AdminToken    string
}

// Server holds the handlers and their dependencies.
type Server struct {
	Deps
	scoreCache  *cache.Cache
	compression *middleware.CompressionMiddleware
}

// NewServer creates the HTTP layer.
func NewServer(deps Deps) *Server {
	if deps.Engine == nil {
		deps.Engine = scoring.NewEngine(nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = &monitoring.Logger{Logger: slog.Default()}
	}
	if deps.ScoreCacheTTL <= 0 {
		deps.ScoreCacheTTL = 15 * time.Minute
	}
	return &Server{
		Deps:        deps,
		scoreCache:  cache.NewCache(deps.ScoreCacheTTL),
		compression: middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
	}
}

// Close releases the response cache.
func (s *Server) Close() {
	s.scoreCache.Close()
}

// Router builds the gin engine with the full middleware chain.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(s.Security.TrustedProxies); err != nil {
		slog.Warn("Invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}

	sm := security.NewSecurityMiddleware(s.Security)

	r.Use(requestID)
	r.Use(monitoring.MonitoringMiddleware(s.Metrics, s.Logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.Logger))
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())
	r.Use(sm.CORS())
	r.Use(sm.SecurityHeaders)
	r.Use(sm.RequestTimeout)
	r.Use(sm.LimitBody)
	r.Use(sm.ValidateContentType)
	r.Use(s.compression.Handler())
	if s.Limiter != nil {
		r.Use(s.Limiter.IPRateLimitMiddleware("/health", "/metrics"))
	}

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/privacy/policy", s.handlePrivacyPolicy)

	api := r.Group("/api")
	api.GET("/survey", s.handleSurvey)
	api.GET("/levels", s.handleLevels)
	api.POST("/score", s.scoreCache.Middleware(s.Metrics, scorePath), s.handleScore)

	sessions := api.Group("/sessions")
	sessions.POST("", s.limit("sessions", ratelimit.PerMinute(s.sessionLimit())), s.handleStartSession)
	authed := sessions.Group("/:id", s.requireSession)
	authed.GET("", s.handleGetSession)
	authed.PUT("/answers/:questionID", s.handleAnswer)
	authed.PUT("/country", s.handleCountry)
	authed.PUT("/position", s.handlePosition)
	authed.POST("/complete", s.limit("complete", ratelimit.PerHour(s.completeLimit())), s.handleComplete)
	authed.POST("/reset", s.handleReset)

	api.GET("/results/:id", s.handleGetResult)
	api.DELETE("/results/:id", s.handleDeleteResult)
	api.GET("/stats/countries", s.handleCountryStats)

	api.GET("/leaderboard/:period", s.handleLeaderboard)
	api.GET("/leaderboard/:period/rank/:id", s.handleRank)

	if s.AdminToken != "" {
		admin := api.Group("/admin", s.requireAdmin)
		admin.POST("/leaderboard/update", s.handleUpdateLeaderboards)
		if s.Limiter != nil {
			admin.DELETE("/ratelimit", s.handleResetAllLimits)
			admin.DELETE("/ratelimit/:ip", s.handleResetIPLimit)
		}
	}

	return r
}

func (s *Server) limit(endpoint string, rate ratelimit.Rate) gin.HandlerFunc {
	if s.Limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return s.Limiter.EndpointRateLimitMiddleware(endpoint, rate)
}

func (s *Server) sessionLimit() int {
	if s.Limiter != nil {
		if n := s.Limiter.Config().SessionLimitPerMin; n > 0 {
			return n
		}
	}
	return ratelimit.DefaultConfig().SessionLimitPerMin
}

func (s *Server) completeLimit() int {
	if s.Limiter != nil {
		if n := s.Limiter.Config().CompleteLimitPerH; n > 0 {
			return n
		}
	}
	return ratelimit.DefaultConfig().CompleteLimitPerH
}

// requestID makes sure every request carries an X-Request-ID.
func requestID(c *gin.Context) {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.New().String()
		c.Request.Header.Set("X-Request-ID", id)
	}
	c.Header("X-Request-ID", id)
	c.Next()
}
