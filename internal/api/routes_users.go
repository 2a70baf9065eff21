package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skycast/internal/handlers"
)

func registerUserRoutes(engine *gin.Engine, requireAuth gin.HandlerFunc, handler *handlers.UserHandler) {
	engine.POST("/users", handler.Register)

	users := engine.Group("/users", requireAuth)
	{
		users.GET("/:id", handler.Get)
		users.PATCH("/:id", handler.Update)
		users.DELETE("/:id", handler.Delete)
		users.POST("/:id/password", handler.ChangePassword)
	}
}
