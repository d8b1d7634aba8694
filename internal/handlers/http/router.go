package http

import (
	"context"
	"net/http"
	"time"

	"interviewroom/internal/core/ports"
	"interviewroom/internal/infrastructure/middleware"
	"interviewroom/internal/infrastructure/monitoring"
	"interviewroom/pkg/config"
	"interviewroom/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Config   *config.Config
	Meetings ports.MeetingHTTPHandler
	Calls    ports.CallHTTPHandler
	Auth     middleware.IdentityValidator
	Health   *monitoring.HealthChecker
	// Requests records per-route metrics; may be nil.
	Requests middleware.RequestRecorder
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewRouter wires the middleware chain, the API routes and the operational endpoints.
func NewRouter(deps RouterDeps) *gin.Engine {
	startTime := time.Now()
	cfg := deps.Config
	sugar := deps.Logger.Sugar()
	reqLog := logger.NewContextLogger(deps.Logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(sugar),
		middleware.TracingMiddleware(),
		middleware.AccessLogMiddleware(reqLog, deps.Requests),
		middleware.ErrorHandlerMiddleware(reqLog),
	)

	api := router.Group("/api/v1")
	api.Use(middleware.NewHTTPRateLimitMiddleware(cfg), middleware.AuthMiddleware(deps.Auth))
	{
		api.GET("/meetings", deps.Meetings.ListMeetings)
		api.GET("/meetings/:id", deps.Meetings.GetMeeting)
		api.POST("/meetings/:id/call", deps.Calls.OpenCall)

		api.GET("/call", deps.Calls.GetCall)
		api.GET("/call/media", deps.Calls.MediaViews)
		api.POST("/call/credential", deps.Calls.SubmitCredential)
		api.POST("/call/camera", deps.Calls.ToggleCamera)
		api.POST("/call/mic", deps.Calls.ToggleMic)
		api.POST("/call/retry", deps.Calls.Retry)
		api.POST("/call/leave", deps.Calls.LeaveCall)
	}

	ws := router.Group("/api/v1/ws")
	ws.Use(middleware.NewWebSocketLimitMiddleware(cfg), middleware.AuthMiddleware(deps.Auth))
	ws.GET("/call", deps.Calls.StreamStatus)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    monitoring.StatusHealthy,
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		if deps.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		health := deps.Health.CheckAll(ctx)
		status, code := "ready", http.StatusOK
		if health.Status != monitoring.StatusHealthy {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": health.Timestamp,
			"checks":    health.Checks,
		})
	})

	if cfg.Monitoring.PrometheusEnabled && deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	return router
}
