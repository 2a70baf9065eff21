package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/skycast/internal/auth"
	"github.com/charlesng35/skycast/pkg/errors"
	"github.com/charlesng35/skycast/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
)

// AuthOption adjusts how Auth finds the session token.
type AuthOption func(*authOptions)

type authOptions struct {
	queryParam string
}

// WithQueryToken also accepts the token from the named query parameter.
// Browsers cannot set headers on websocket upgrades.
func WithQueryToken(param string) AuthOption {
	return func(o *authOptions) {
		o.queryParam = param
	}
}

// Auth requires a valid session token and exposes its claims on the context.
func Auth(jwt *iauth.JWTService, opts ...AuthOption) gin.HandlerFunc {
	cfg := authOptions{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && cfg.queryParam != "" {
			token = strings.TrimSpace(c.Query(cfg.queryParam))
		}
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateSessionToken(token)
		if err != nil {
			// every validation failure is a plain 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Next()
	}
}

func bearerToken(header string) string {
	if len(header) < 8 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// UserID returns the authenticated user's id, or "" outside Auth.
func UserID(c *gin.Context) string {
	v, ok := c.Get(CtxUserIDKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
