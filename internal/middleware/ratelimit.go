package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/skycast/pkg/errors"
	"github.com/charlesng35/skycast/pkg/logger"
	"github.com/charlesng35/skycast/pkg/response"
)

const (
	DefaultRateLimitRequests = 20
	DefaultRateLimitWindow   = time.Minute
)

// RateLimitConfig bounds requests per (client ip, route) within a fixed window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// Store shares counters between instances. Nil uses a process-local store.
	Store RateStore
}

// RateLimit rejects requests beyond the configured budget with 429. Store
// failures let the request through.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryRateStore()
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := "ratelimit:" + c.ClientIP() + "|" + c.Request.Method + " " + route

		count, resetIn, err := store.Increment(c.Request.Context(), key, cfg.Window)
		if err != nil {
			logger.WithModule("ratelimit").Warn("rate store unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := cfg.Requests - count
		if remaining < 0 {
			remaining = 0
		}
		resetSeconds := int((resetIn + time.Second - 1) / time.Second)

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetSeconds))

		if count > cfg.Requests {
			c.Header("Retry-After", strconv.Itoa(resetSeconds))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}
		c.Next()
	}
}
