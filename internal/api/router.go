package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/skycast/internal/app"
	iauth "github.com/charlesng35/skycast/internal/auth"
	"github.com/charlesng35/skycast/internal/cache"
	"github.com/charlesng35/skycast/internal/handlers"
	"github.com/charlesng35/skycast/internal/middleware"
	"github.com/charlesng35/skycast/internal/realtime"
	"github.com/charlesng35/skycast/internal/services"
)

// Services groups the domain services the HTTP layer exposes.
type Services struct {
	Users     *services.UserService
	Auth      *services.AuthService
	Cities    *services.CityService
	Favorites *services.FavoriteService
	Weather   *services.WeatherService
	Chat      *services.ChatService
}

// Dependencies bundles everything NewRouter wires together.
type Dependencies struct {
	DB       *gorm.DB
	JWT      *iauth.JWTService
	Config   *app.Config
	Services Services
	// Cache shares rate limit counters between instances. Optional.
	Cache cache.Store
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return errors.New("database handle must be provided")
	case d.JWT == nil:
		return errors.New("jwt service must be provided")
	case d.Config == nil:
		return errors.New("config must be provided")
	case d.Services.Users == nil, d.Services.Auth == nil:
		return errors.New("user and auth services must be provided")
	case d.Services.Cities == nil, d.Services.Favorites == nil:
		return errors.New("city and favorite services must be provided")
	case d.Services.Weather == nil, d.Services.Chat == nil:
		return errors.New("weather and chat services must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.Server.CORS.AllowedOrigins,
		AllowCredentials: cfg.Server.CORS.AllowCredentials,
	}))
	r.Use(middleware.RequestMeta())
	r.Use(middleware.RateLimit(rateLimitConfig(cfg.Server.RateLimit, deps.Cache)))

	registerHealthRoutes(r, deps.DB)
	registerMonitoringRoutes(r, cfg.Monitoring.Prometheus)

	requireAuth := middleware.Auth(deps.JWT)
	svc := deps.Services

	registerAuthRoutes(r, requireAuth, handlers.NewAuthHandler(svc.Auth, svc.Users))
	registerUserRoutes(r, requireAuth, handlers.NewUserHandler(svc.Users))
	registerCityRoutes(r, requireAuth, handlers.NewCityHandler(svc.Cities))
	registerFavoriteRoutes(r, requireAuth, handlers.NewFavoriteHandler(svc.Favorites))
	registerWeatherRoutes(r, requireAuth, handlers.NewWeatherHandler(svc.Weather))

	ws := realtime.NewServer(cfg.Server.CORS.AllowedOrigins...)
	registerChatbotRoutes(r, requireAuth, middleware.Auth(deps.JWT, middleware.WithQueryToken("token")),
		handlers.NewChatbotHandler(svc.Chat, ws))

	r.NoRoute(middleware.NotFoundHandler)
	r.NoMethod(middleware.MethodNotAllowedHandler)

	return r, nil
}

func rateLimitConfig(cfg app.RateLimitConfig, store cache.Store) middleware.RateLimitConfig {
	requests := cfg.Requests
	if requests <= 0 {
		requests = middleware.DefaultRateLimitRequests
	}
	window := cfg.Window
	if window <= 0 {
		window = middleware.DefaultRateLimitWindow
	}
	return middleware.RateLimitConfig{
		Requests: requests,
		Window:   window,
		Store:    middleware.NewCacheRateStore(store),
	}
}

func metricsPath(cfg app.PrometheusConfig) string {
	path := strings.TrimSpace(cfg.Endpoint)
	if path == "" {
		return "/metrics"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
