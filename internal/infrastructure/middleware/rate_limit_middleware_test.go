package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"interviewroom/pkg/config"
	"interviewroom/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func limitedRouter(cfg *config.Config, limiter gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlerMiddleware(logger.NewContextLogger(zap.NewNop())), limiter)
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func get(router http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	router.ServeHTTP(w, req)
	return w
}

func TestHTTPRateLimitMiddleware_Disabled_AllowsRequests(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = false
	router := limitedRouter(cfg, NewHTTPRateLimitMiddleware(cfg))

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(router, "").Code)
	}
}

func TestHTTPRateLimitMiddleware_Enabled_RateLimited(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 1
	cfg.RateLimiting.HTTP.Burst = 1
	router := limitedRouter(cfg, NewHTTPRateLimitMiddleware(cfg))

	assert.Equal(t, http.StatusOK, get(router, "10.0.0.1:1234").Code)

	w := get(router, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, get(router, "10.0.0.2:1234").Code, "limits are per client")
}

func TestWebSocketLimitMiddleware(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 2
	router := limitedRouter(cfg, NewWebSocketLimitMiddleware(cfg))

	assert.Equal(t, http.StatusOK, get(router, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK, get(router, "10.0.0.1:2").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(router, "10.0.0.1:3").Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:4000"
	assert.Equal(t, "192.168.1.5", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}

func TestLimiterSet_DropsIdleClients(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	set := newLimiterSet(rate.Limit(1), 1)
	set.now = func() time.Time { return now }

	assert.True(t, set.allow("10.0.0.1"))
	assert.False(t, set.allow("10.0.0.1"))
	assert.True(t, set.allow("10.0.0.2"))
	assert.Equal(t, 2, set.size())

	now = now.Add(limiterIdleTTL + time.Second)
	assert.True(t, set.allow("10.0.0.3"))
	assert.Equal(t, 1, set.size())
}
