package middleware

import (
	"strings"

	"interviewroom/internal/core/domain"
	apperrors "interviewroom/pkg/errors"
	"interviewroom/pkg/logger"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

type IdentityValidator interface {
	ValidateIdentityToken(token string) (domain.Identity, error)
}

// AuthMiddleware resolves the bearer token into the current user. Browsers cannot set headers on
// websocket upgrades, so the token is also accepted as the access_token query parameter.
func AuthMiddleware(validator IdentityValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			_ = c.Error(apperrors.NewUnauthorizedError("authorization required"))
			c.Abort()
			return
		}

		identity, err := validator.ValidateIdentityToken(token)
		if err != nil {
			_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "invalid access token"))
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Request = c.Request.WithContext(logger.WithValue(c.Request.Context(), logger.UserIDKey, string(identity.ID)))
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", false
		}
		return strings.TrimSpace(token), true
	}
	if token := c.Query("access_token"); token != "" {
		return token, true
	}
	return "", false
}

// IdentityFrom returns the user resolved by AuthMiddleware.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := v.(domain.Identity)
	return identity, ok
}
