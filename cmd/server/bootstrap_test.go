package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/skycast/internal/app"
)

func TestConvertDatabaseConfig(t *testing.T) {
	cfg := &app.Config{}
	require.Equal(t, "sqlite", convertDatabaseConfig(cfg).Driver)

	cfg.Database.Driver = " PostgreSQL "
	cfg.Database.Postgres = app.DBAuthConfig{Host: " db ", Port: 5432, Database: "skycast", Username: "svc", Password: " p w "}
	dbCfg := convertDatabaseConfig(cfg)
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db", dbCfg.Host)
	require.Equal(t, 5432, dbCfg.Port)
	require.Equal(t, "skycast", dbCfg.Name)
	require.Equal(t, "svc", dbCfg.User)
	require.Equal(t, " p w ", dbCfg.Password)

	cfg.Database.Driver = "mysql"
	cfg.Database.MySQL = app.DBAuthConfig{Host: "mysql", Port: 3306, Database: "weather"}
	dbCfg = convertDatabaseConfig(cfg)
	require.Equal(t, "mysql", dbCfg.Driver)
	require.Equal(t, "weather", dbCfg.Name)

	cfg.Database.Driver = "oracle"
	require.Equal(t, "oracle", convertDatabaseConfig(cfg).Driver)
}

func TestLoadApplicationConfigPaths(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  port: 9123\n"), 0o600))

	cfg, err := loadApplicationConfig(file)
	require.NoError(t, err)
	require.Equal(t, 9123, cfg.Server.Port)

	cfg, err = loadApplicationConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 9123, cfg.Server.Port)
}

func TestEnsureSecretsPresent(t *testing.T) {
	require.Error(t, ensureSecretsPresent(nil))

	cfg := &app.Config{}
	cfg.Auth.JWT.Secret = "  short  "
	require.Error(t, ensureSecretsPresent(cfg))

	cfg.Auth.JWT.Secret = " a-very-long-secret-that-is-long-enough-123 "
	require.NoError(t, ensureSecretsPresent(cfg))
	require.Equal(t, "a-very-long-secret-that-is-long-enough-123", cfg.Auth.JWT.Secret)
}

func TestBootstrapRuntimeServesHealth(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadApplicationConfig(dir)
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(dir, "data", "skycast.sqlite")
	cfg.Chat.APIKey = ""

	_, err = app.ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.NoError(t, ensureSecretsPresent(cfg))

	log := zap.NewNop()
	stack, err := bootstrapRuntime(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), log) })

	require.NotNil(t, stack.DB)
	require.Nil(t, stack.Redis)
	require.NotNil(t, stack.Store)

	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chatbot/chat", nil)
	stack.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBootstrapRuntimeRejectsUnknownDriver(t *testing.T) {
	cfg, err := loadApplicationConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Database.Driver = "oracle"
	cfg.Auth.JWT.Secret = "a-very-long-secret-that-is-long-enough-123"

	_, err = bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}
