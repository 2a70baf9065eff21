package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skycast/internal/handlers"
)

func registerAuthRoutes(engine *gin.Engine, requireAuth gin.HandlerFunc, handler *handlers.AuthHandler) {
	auth := engine.Group("/auth")
	{
		auth.POST("/login", handler.Login)
		auth.POST("/verify-otp", handler.VerifyOTP)
		auth.POST("/logout", handler.Logout)
		auth.POST("/request-password-reset", handler.RequestPasswordReset)
		auth.POST("/verify-password-reset-otp", handler.VerifyPasswordResetOTP)
		auth.POST("/reset-password", handler.ResetPassword)
		auth.GET("/me", requireAuth, handler.Me)
	}
}
