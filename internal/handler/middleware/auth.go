package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/license-key-service/internal/domain/session"
	"github.com/makkenzo/license-key-service/internal/ierr"
	"github.com/makkenzo/license-key-service/internal/service"
	"go.uber.org/zap"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	sessionContextKey   = "adminSession"
)

// TokenFromRequest reads the session token from the cookie, falling back to
// an Authorization bearer header.
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader(authorizationHeader)
	if strings.HasPrefix(authHeader, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	}
	return ""
}

func AuthMiddleware(authService *service.AuthService, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("AuthMiddleware")
	return func(c *gin.Context) {
		token := TokenFromRequest(c, cookieName)
		if token == "" {
			log.Debug("Session token is missing")
			_ = c.Error(fmt.Errorf("%w: session required", ierr.ErrUnauthorized))
			c.Abort()
			return
		}

		sess, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			log.Debug("Session rejected", zap.Error(err))
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

func GetSession(c *gin.Context) *session.Session {
	value, exists := c.Get(sessionContextKey)
	if !exists {
		return nil
	}
	sess, ok := value.(*session.Session)
	if !ok {
		return nil
	}
	return sess
}
