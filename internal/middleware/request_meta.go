package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skycast/internal/services"
)

// RequestMeta attaches the caller's address and user agent to the request
// context so services can stamp them on audit entries.
func RequestMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := services.ContextWithRequestMeta(c.Request.Context(), services.RequestMeta{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
