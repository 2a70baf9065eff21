package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skycast/internal/middleware"
	"github.com/charlesng35/skycast/pkg/errors"
	"github.com/charlesng35/skycast/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUserID returns the caller's id, writing a 401 when there is none.
func currentUserID(c *gin.Context) (string, bool) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}
