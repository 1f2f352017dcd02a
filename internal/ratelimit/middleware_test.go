package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIPRateLimitMiddleware(t *testing.T) {
	config := DefaultConfig()
	config.IPLimitPerMin = 2
	limiter, metrics := newFallbackLimiter(t, config)

	r := gin.New()
	r.Use(limiter.IPRateLimitMiddleware("/health"))
	r.GET("/api/levels", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "203.0.113.5:1234"
		r.ServeHTTP(w, req)
		return w
	}

	w := do("/api/levels")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, do("/api/levels").Code)

	w = do("/api/levels")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit")
	assert.Equal(t, int64(1), metrics.GetRateLimitStats()["ip_blocks"])

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do("/health").Code)
	}
}

func TestEndpointRateLimitMiddleware(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	r := gin.New()
	r.POST("/api/sessions", limiter.EndpointRateLimitMiddleware("sessions", PerMinute(1)), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	r.GET("/api/levels", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(method, path string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = "203.0.113.9:1234"
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusCreated, do(http.MethodPost, "/api/sessions"))
	assert.Equal(t, http.StatusTooManyRequests, do(http.MethodPost, "/api/sessions"))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/levels"))
}
