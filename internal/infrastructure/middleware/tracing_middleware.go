package middleware

import (
	"time"

	"interviewroom/pkg/logger"
	"interviewroom/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const requestIDHeader = "X-Request-ID"

type RequestRecorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// TracingMiddleware opens a span per request and tags the request with an id.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, c.FullPath())
		defer span.End()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		span.SetAttributes(
			attribute.String("http.request_id", requestID),
			attribute.String("http.user_agent", c.Request.UserAgent()),
			attribute.String("http.client_ip", c.ClientIP()),
		)

		ctx = logger.WithValue(ctx, logger.RequestIDKey, requestID)
		ctx = logger.WithValue(ctx, logger.TraceIDKey, span.SpanContext().TraceID().String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.response_size", int64(c.Writer.Size())),
		)
		if c.Writer.Status() >= 500 {
			span.SetStatus(codes.Error, c.Errors.String())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// AccessLogMiddleware logs every request with its context fields and records request metrics.
func AccessLogMiddleware(log *logger.ContextLogger, recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if recorder != nil {
			recorder.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), duration)
		}
		log.LogRequest(c.Request.Context(), c.Request.Method, c.Request.URL.Path, c.Writer.Status(), duration.Milliseconds())
	}
}
