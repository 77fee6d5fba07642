package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"promptlib/internal/auth"
	"promptlib/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"request_id": GetRequestID(c.Request.Context()),
			"trace_id":   logger.GetTraceID(c.Request.Context()),
		})
	})

	t.Run("生成新 ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		id := w.Header().Get(HeaderRequestID)
		assert.NotEmpty(t, id)
		assert.Equal(t, id, w.Header().Get(HeaderTraceID))
		assert.Contains(t, w.Body.String(), id)
	})

	t.Run("沿用上游 ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-1")
		req.Header.Set(HeaderTraceID, "trace-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.JSONEq(t, `{"request_id":"req-1","trace_id":"trace-1"}`, w.Body.String())
	})
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 2})
	defer rl.Stop()
	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "不同客户端互不影响")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{IdleTTL: time.Minute})
	defer rl.Stop()
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	assert.Zero(t, rl.Sweep())
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, rl.Sweep())
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 1})
	defer rl.Stop()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user := c.GetHeader("X-User"); user != "" {
			c.Request = c.Request.WithContext(auth.SetUserContext(c.Request.Context(), &auth.UserContext{UserID: user}))
		}
		c.Next()
	}, RateLimitMiddleware(rl))
	r.POST("/save", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/save", nil)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, send("alice"))
	assert.Equal(t, http.StatusTooManyRequests, send("alice"))
	assert.Equal(t, http.StatusNoContent, send("bob"))
	assert.Equal(t, http.StatusNoContent, send(""))
}
