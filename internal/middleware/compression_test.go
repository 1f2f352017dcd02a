package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(cm *CompressionMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(cm.Handler())
	r.GET("/large", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"payload": strings.Repeat("happy ", 500)})
	})
	r.GET("/small", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/binary", func(c *gin.Context) {
		c.Data(http.StatusOK, "image/png", make([]byte, 4096))
	})
	r.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestCompressionMiddleware(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	r := newRouter(cm)

	tests := []struct {
		name           string
		path           string
		acceptEncoding string
		expectGzip     bool
		expectedStatus int
	}{
		{"large json is compressed", "/large", "gzip, deflate", true, http.StatusOK},
		{"client without gzip", "/large", "", false, http.StatusOK},
		{"small json stays plain", "/small", "gzip", false, http.StatusOK},
		{"binary content type is skipped", "/binary", "gzip", false, http.StatusOK},
		{"no body", "/empty", "gzip", false, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectGzip {
				assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
				gz, err := gzip.NewReader(w.Body)
				require.NoError(t, err)
				body, err := io.ReadAll(gz)
				require.NoError(t, err)
				assert.Contains(t, string(body), "happy happy")
				return
			}
			assert.Empty(t, w.Header().Get("Content-Encoding"))
		})
	}

	stats := cm.GetStats()
	assert.Equal(t, int64(1), stats["compressed_requests"])
	assert.Less(t, stats["compression_ratio"].(float64), 1.0)
}

func TestSmallBodyIsWrittenUnchanged(t *testing.T) {
	r := newRouter(NewCompressionMiddleware(DefaultCompressionConfig()))

	req := httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))
}

func TestInvalidLevelFallsBackToDefault(t *testing.T) {
	cfg := DefaultCompressionConfig()
	cfg.CompressionLevel = 42
	r := newRouter(NewCompressionMiddleware(cfg))

	req := httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}
