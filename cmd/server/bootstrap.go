package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/skycast/internal/api"
	"github.com/charlesng35/skycast/internal/app"
	"github.com/charlesng35/skycast/internal/app/maintenance"
	iauth "github.com/charlesng35/skycast/internal/auth"
	"github.com/charlesng35/skycast/internal/auth/otp"
	"github.com/charlesng35/skycast/internal/cache"
	"github.com/charlesng35/skycast/internal/chat"
	"github.com/charlesng35/skycast/internal/database"
	"github.com/charlesng35/skycast/internal/security"
	"github.com/charlesng35/skycast/internal/services"
	"github.com/charlesng35/skycast/internal/weather"
	"github.com/charlesng35/skycast/pkg/logger"
	"github.com/charlesng35/skycast/pkg/mail"
)

// runtimeStack bundles long-lived resources used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Redis   *cache.RedisStore
	Store   cache.Store
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime opens storage, wires services and builds the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	stack.Store = dbStore

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			stack.Redis = nil
		} else {
			stack.Store = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	auditSvc, err := services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	users, err := services.NewUserService(stack.DB, auditSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}

	ledger, err := otp.NewLedger(stack.DB, cfg.Auth.LedgerOptions()...)
	if err != nil {
		return nil, fmt.Errorf("initialise code ledger: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	if !cfg.Email.SMTP.Enabled {
		log.Warn("smtp disabled; one-time codes will not be delivered")
	}

	authSvc, err := services.NewAuthService(
		users,
		ledger,
		services.NewMailCodeNotifier(mailer, cfg.Email.SMTP.From),
		jwtSvc,
		stack.Store,
		services.WithAuthAudit(auditSvc),
		services.WithAuthLimiter(otp.NewLimiter(stack.Store, cfg.Auth.LimiterConfig())),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}

	cities, err := services.NewCityService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise city service: %w", err)
	}
	favorites, err := services.NewFavoriteService(stack.DB, cities)
	if err != nil {
		return nil, fmt.Errorf("initialise favorite service: %w", err)
	}

	weatherClient, err := weather.NewClient(cfg.Weather.WeatherClientConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise weather client: %w", err)
	}
	weatherSvc, err := services.NewWeatherService(weatherClient, users,
		services.WithWeatherCache(stack.Store, cfg.Weather.CacheTTL))
	if err != nil {
		return nil, fmt.Errorf("initialise weather service: %w", err)
	}

	var completer services.Completer
	if cfg.Chat.ChatAvailable() {
		client, chatErr := chat.NewClient(cfg.Chat.ChatClientConfig())
		if chatErr != nil {
			return nil, fmt.Errorf("initialise chat client: %w", chatErr)
		}
		completer = client
	} else {
		log.Info("chat assistant disabled")
	}
	chatSvc := services.NewChatService(completer, weatherSvc)

	stack.Cleaner = maintenance.NewCleaner(ledger, dbStore, auditSvc,
		maintenance.WithCodeRetention(cfg.Auth.CodeRetention()),
		maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
		maintenance.WithCodeSchedule(cfg.Maintenance.CodeCleanupSchedule),
		maintenance.WithCacheSchedule(cfg.Maintenance.CacheCleanupSchedule),
		maintenance.WithAuditSchedule(cfg.Maintenance.AuditCleanupSchedule),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:     stack.DB,
		JWT:    jwtSvc,
		Config: cfg,
		Cache:  stack.Store,
		Services: api.Services{
			Users:     users,
			Auth:      authSvc,
			Cities:    cities,
			Favorites: favorites,
			Weather:   weatherSvc,
			Chat:      chatSvc,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	logPosture(security.NewAuditor(stack.DB, jwtSvc, cfg).Run(ctx), log)

	success = true
	return stack, nil
}

func logPosture(result security.Result, log *zap.Logger) {
	for _, check := range result.Checks {
		fields := []zap.Field{zap.String("check", check.ID), zap.String("message", check.Message)}
		if check.Remediation != "" {
			fields = append(fields, zap.String("remediation", check.Remediation))
		}
		switch check.Status {
		case security.StatusFail:
			log.Error("security check failed", fields...)
		case security.StatusWarn:
			log.Warn("security check warning", fields...)
		}
	}
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		if stopCtx := s.Cleaner.Stop(); stopCtx != nil {
			<-stopCtx.Done()
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		applyDBAuth(&dbCfg, cfg.Database.Postgres)
	case "mysql":
		applyDBAuth(&dbCfg, cfg.Database.MySQL)
	default:
		// unsupported drivers surface from database.Open
	}

	return dbCfg
}

func applyDBAuth(dst *database.Config, src app.DBAuthConfig) {
	dst.Host = strings.TrimSpace(src.Host)
	dst.Port = src.Port
	dst.Name = strings.TrimSpace(src.Database)
	dst.User = strings.TrimSpace(src.Username)
	dst.Password = src.Password
}
