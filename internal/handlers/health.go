package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/skycast/internal/database"
	"github.com/charlesng35/skycast/pkg/errors"
	"github.com/charlesng35/skycast/pkg/logger"
	"github.com/charlesng35/skycast/pkg/response"
)

// Health reports readiness. It answers 503 when the database does not respond.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
			defer cancel()
			if err := database.Ping(ctx, db); err != nil {
				logger.WithModule("health").Warn("database ping failed", zap.Error(err))
				response.Error(c, errors.ErrServiceUnavailable)
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
