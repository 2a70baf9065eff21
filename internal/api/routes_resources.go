package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skycast/internal/handlers"
)

func registerCityRoutes(engine *gin.Engine, requireAuth gin.HandlerFunc, handler *handlers.CityHandler) {
	cities := engine.Group("/city", requireAuth)
	{
		cities.POST("", handler.Create)
		cities.GET("", handler.List)
		cities.GET("/:id", handler.Get)
		cities.PATCH("/:id", handler.Update)
		cities.DELETE("/:id", handler.Delete)
	}
}

func registerFavoriteRoutes(engine *gin.Engine, requireAuth gin.HandlerFunc, handler *handlers.FavoriteHandler) {
	favorites := engine.Group("/favorites", requireAuth)
	{
		favorites.POST("", handler.Create)
		favorites.GET("", handler.List)
		favorites.GET("/:id", handler.Get)
		favorites.PATCH("/:id", handler.Update)
		favorites.DELETE("/:id", handler.Delete)
	}
}

func registerWeatherRoutes(engine *gin.Engine, requireAuth gin.HandlerFunc, handler *handlers.WeatherHandler) {
	engine.GET("/weather", requireAuth, handler.Get)
}

// The websocket route also accepts ?token= because browsers cannot set
// headers on the upgrade request.
func registerChatbotRoutes(engine *gin.Engine, requireAuth, requireStreamAuth gin.HandlerFunc, handler *handlers.ChatbotHandler) {
	chatbot := engine.Group("/chatbot")
	{
		chatbot.POST("/chat", requireAuth, handler.Chat)
		chatbot.GET("/ws", requireStreamAuth, handler.Stream)
	}
}
