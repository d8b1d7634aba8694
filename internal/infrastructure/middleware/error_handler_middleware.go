package middleware

import (
	"context"
	"errors"
	"net/http"

	"interviewroom/internal/core/domain"
	"interviewroom/pkg/circuitbreaker"
	apperrors "interviewroom/pkg/errors"
	"interviewroom/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var domainErrors = []struct {
	target  error
	code    apperrors.ErrorCode
	message string
}{
	{domain.ErrMeetingNotFound, apperrors.ErrCodeNotFound, "meeting not found"},
	{domain.ErrNoActiveCall, apperrors.ErrCodeNotFound, "no active call"},
	{domain.ErrNotParticipant, apperrors.ErrCodeForbidden, ""},
	{domain.ErrMeetingCancelled, apperrors.ErrCodeGone, ""},
	{domain.ErrMeetingEnded, apperrors.ErrCodeGone, ""},
	{domain.ErrCallInProgress, apperrors.ErrCodeConflict, ""},
	{domain.ErrInvalidTransition, apperrors.ErrCodeConflict, ""},
	{domain.ErrInvalidCredential, apperrors.ErrCodeInvalidCredential, ""},
	{domain.ErrCredentialExpired, apperrors.ErrCodeInvalidCredential, ""},
	{domain.ErrControllerClosed, apperrors.ErrCodeServiceUnavailable, ""},
	{circuitbreaker.ErrOpen, apperrors.ErrCodeServiceUnavailable, "meeting backend unavailable"},
	{context.DeadlineExceeded, apperrors.ErrCodeTimeout, "request timed out"},
}

// ToAppError maps domain errors onto API errors. An empty message in the table means the
// error text itself is safe to show. Unknown errors become internal errors.
func ToAppError(err error) *apperrors.AppError {
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}
	for _, m := range domainErrors {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.message
		if msg == "" {
			msg = err.Error()
		}
		return apperrors.Wrap(err, m.code, msg)
	}
	return apperrors.Wrap(err, apperrors.ErrCodeInternal, "Internal server error")
}

// ErrorHandlerMiddleware renders the last error attached to the gin context.
// Entries carry the request's trace and request ids.
func ErrorHandlerMiddleware(log *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		appErr := ToAppError(err)

		fields := []interface{}{
			"code", appErr.Code,
			"status", appErr.Status(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", err,
		}
		reqLog := log.Sugared(c.Request.Context())
		if appErr.Status() >= http.StatusInternalServerError {
			reqLog.Errorw("Request failed", fields...)
		} else {
			reqLog.Infow("Request rejected", fields...)
		}

		if c.Writer.Written() {
			return
		}
		body := gin.H{
			"error":   string(appErr.Code),
			"message": appErr.Message,
		}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
		c.JSON(appErr.Status(), body)
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("Panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   string(apperrors.ErrCodeInternal),
					"message": "Internal server error",
				})
			}
		}()

		c.Next()
	}
}
