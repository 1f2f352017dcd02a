package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		category ErrorCategory
		status   int
		message  string
	}{
		{
			name:     "validation",
			err:      NewValidationError("invalid answer", "question income"),
			category: CategoryValidation,
			status:   http.StatusBadRequest,
			message:  "[VALIDATION_ERROR] invalid answer",
		},
		{
			name:     "not found",
			err:      NewNotFoundError("session", "abc"),
			category: CategoryNotFound,
			status:   http.StatusNotFound,
			message:  "[NOT_FOUND] session not found",
		},
		{
			name:     "unauthorized",
			err:      NewUnauthorizedError("missing session token", nil),
			category: CategoryUnauthorized,
			status:   http.StatusUnauthorized,
			message:  "[UNAUTHORIZED] missing session token",
		},
		{
			name:     "rate limit",
			err:      NewRateLimitError("60s"),
			category: CategoryRateLimit,
			status:   http.StatusTooManyRequests,
			message:  "[RATE_LIMIT_EXCEEDED] Rate limit exceeded",
		},
		{
			name:     "network",
			err:      NewNetworkError("redis down", errors.New("connection refused")),
			category: CategoryNetwork,
			status:   http.StatusServiceUnavailable,
			message:  "[NETWORK_ERROR] redis down",
		},
		{
			name:     "internal",
			err:      NewInternalError("db exploded", errors.New("disk full")),
			category: CategoryInternal,
			status:   http.StatusInternalServerError,
			message:  "[INTERNAL_ERROR] Internal server error",
		},
		{
			name:     "configuration",
			err:      NewConfigurationError("bad PORT", nil),
			category: CategoryConfiguration,
			status:   http.StatusInternalServerError,
			message:  "[CONFIGURATION_ERROR] Configuration error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.message, tt.err.Error())
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestValidationErrorCode(t *testing.T) {
	err := NewValidationError("invalid answer", "question income")
	assert.Equal(t, errbuilder.CodeInvalidArgument, err.ErrBuilder.ErrCode())
	assert.Equal(t, "VALIDATION_ERROR", err.Code())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewInternalError("write failed", cause)
	assert.True(t, errors.Is(err, cause))
}

func TestToAppError(t *testing.T) {
	existing := NewNotFoundError("result", "1")

	tests := []struct {
		name     string
		err      error
		category ErrorCategory
	}{
		{name: "app error passes through", err: existing, category: CategoryNotFound},
		{name: "wrapped app error", err: fmt.Errorf("lookup: %w", existing), category: CategoryNotFound},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), category: CategoryNetwork},
		{name: "deadline", err: context.DeadlineExceeded, category: CategoryTimeout},
		{name: "canceled", err: fmt.Errorf("query: %w", context.Canceled), category: CategoryTimeout},
		{name: "anything else", err: errors.New("boom"), category: CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := ToAppError(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.category, appErr.Category)
		})
	}

	assert.Nil(t, ToAppError(nil))
	assert.Same(t, existing, ToAppError(existing))
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/missing", func(c *gin.Context) {
		_ = c.Error(NewNotFoundError("session", "abc"))
	})
	router.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})
	router.GET("/written", func(c *gin.Context) {
		_ = c.Error(errors.New("ignored"))
		c.String(http.StatusTeapot, "short and stout")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("X-Request-ID", "req-1")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body["category"])
	assert.Equal(t, "req-1", body["request_id"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestRecoveryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RecoveryHandler())
	router.GET("/panic", func(c *gin.Context) {
		panic("unexpected")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"category":"internal"`)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestSafeClose(t *testing.T) {
	closed := false
	SafeClose(closerFunc(func() error {
		closed = true
		return errors.New("already closed")
	}), "test")
	assert.True(t, closed)

	SafeClose(nil, "nil")
}

func TestAppErrorJSON(t *testing.T) {
	appErr := NewNotFoundError("result", "abc")
	appErr.RequestID = "req-2"

	data, err := json.Marshal(appErr)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Equal(t, "not_found", body["category"])
	assert.Equal(t, float64(http.StatusNotFound), body["http_status"])
	assert.Equal(t, "req-2", body["request_id"])
	assert.NotEmpty(t, body["message"])
	assert.NotContains(t, body, "stack_trace")
}
