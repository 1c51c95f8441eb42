package middlewares

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/evaluator-server/internal/domain/user"
	"github.com/janhq/evaluator-server/internal/infrastructure/auth"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

const principalContextKey = "principal"

// TokenParser validates a bearer token.
type TokenParser interface {
	Parse(token string) (user.Principal, error)
}

// RequireAuth rejects requests without a valid principal token. The token is read from the
// Authorization header, or from the token query parameter for websocket upgrades.
func RequireAuth(parser TokenParser, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := parser.Parse(requestToken(c))
		if err != nil {
			if !errors.Is(err, auth.ErrMissingToken) {
				log.Debug().Err(err).Str("path", c.FullPath()).Msg("token rejected")
			}
			platformerrors.WriteUnauthorized(c, "authentication required")
			return
		}
		setPrincipal(c, principal)
		c.Next()
	}
}

// OptionalAuth attaches the principal when a valid token is present and lets the request
// through either way.
func OptionalAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if principal, err := parser.Parse(requestToken(c)); err == nil {
			setPrincipal(c, principal)
		}
		c.Next()
	}
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(c *gin.Context) (user.Principal, bool) {
	val, ok := c.Get(principalContextKey)
	if !ok {
		return user.Principal{}, false
	}
	principal, ok := val.(user.Principal)
	return principal, ok
}

func setPrincipal(c *gin.Context, principal user.Principal) {
	c.Set(principalContextKey, principal)
	c.Set("user_id", principal.UserID)
}

func requestToken(c *gin.Context) string {
	if token := auth.BearerToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	return c.Query("token")
}

// HeaderAuth trusts X-User-Id and X-Guest headers. It is only installed when AUTH_ENABLED
// is false, for local development behind a trusted proxy.
func HeaderAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-Id")
		if userID == "" {
			platformerrors.WriteUnauthorized(c, "X-User-Id header required")
			return
		}
		isGuest := c.GetHeader("X-Guest") == "true"
		role := user.RoleUser
		if isGuest {
			role = user.RoleGuest
		}
		setPrincipal(c, user.Principal{UserID: userID, IsGuest: isGuest, Role: role})
		c.Next()
	}
}
