package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/charlesng35/skycast/internal/api"
	"github.com/charlesng35/skycast/internal/app"
	iauth "github.com/charlesng35/skycast/internal/auth"
	"github.com/charlesng35/skycast/internal/auth/otp"
	"github.com/charlesng35/skycast/internal/cache"
	"github.com/charlesng35/skycast/internal/chat"
	sharedtestutil "github.com/charlesng35/skycast/internal/database/testutil"
	"github.com/charlesng35/skycast/internal/services"
	"github.com/charlesng35/skycast/internal/weather"
	"github.com/charlesng35/skycast/pkg/mail"
	"github.com/charlesng35/skycast/pkg/response"
)

var codePattern = regexp.MustCompile(`code is (\d{6})`)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T       *testing.T
	DB      *gorm.DB
	Router  *gin.Engine
	JWT     *iauth.JWTService
	Mail    *mail.Recorder
	Weather *FakeWeather
	Chat    *FakeCompleter
	Store   *cache.DatabaseStore
}

// Option adjusts the environment before the router is built.
type Option func(*envConfig)

type envConfig struct {
	rateLimit   app.RateLimitConfig
	limiter     *otp.LimiterConfig
	chatEnabled bool
}

// WithRateLimit overrides the generous default request budget.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(c *envConfig) {
		c.rateLimit = app.RateLimitConfig{Requests: requests, Window: window}
	}
}

// WithOTPLimiter enables code issuance throttling.
func WithOTPLimiter(cfg otp.LimiterConfig) Option {
	return func(c *envConfig) {
		c.limiter = &cfg
	}
}

// WithoutChat leaves the assistant unconfigured.
func WithoutChat() Option {
	return func(c *envConfig) {
		c.chatEnabled = false
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg := envConfig{
		rateLimit:   app.RateLimitConfig{Requests: 10000, Window: time.Minute},
		chatEnabled: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:     "test-suite-super-secret-key-32-bytes!!",
		Issuer:     "test-suite",
		SessionTTL: time.Hour,
	})
	require.NoError(t, err)

	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)
	users, err := services.NewUserService(db, auditSvc, services.WithPasswordHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	ledger, err := otp.NewLedger(db, otp.WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	store := cache.NewDatabaseStore(db)

	recorder := &mail.Recorder{}
	authOpts := []services.AuthServiceOption{services.WithAuthAudit(auditSvc)}
	if cfg.limiter != nil {
		authOpts = append(authOpts, services.WithAuthLimiter(otp.NewLimiter(store, *cfg.limiter)))
	}
	authSvc, err := services.NewAuthService(users, ledger,
		services.NewMailCodeNotifier(recorder, "no-reply@skycast.test"), jwtSvc, store, authOpts...)
	require.NoError(t, err)

	cities, err := services.NewCityService(db)
	require.NoError(t, err)
	favorites, err := services.NewFavoriteService(db, cities)
	require.NoError(t, err)

	fakeWeather := &FakeWeather{}
	weatherSvc, err := services.NewWeatherService(fakeWeather, users)
	require.NoError(t, err)

	fakeChat := &FakeCompleter{Reply: "Bring sunglasses."}
	var completer services.Completer
	if cfg.chatEnabled {
		completer = fakeChat
	}
	chatSvc := services.NewChatService(completer, weatherSvc)

	appCfg := &app.Config{
		Server:     app.ServerConfig{RateLimit: cfg.rateLimit},
		Monitoring: app.MonitoringConfig{Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"}},
	}

	router, err := api.NewRouter(api.Dependencies{
		DB:     db,
		JWT:    jwtSvc,
		Config: appCfg,
		Cache:  store,
		Services: api.Services{
			Users:     users,
			Auth:      authSvc,
			Cities:    cities,
			Favorites: favorites,
			Weather:   weatherSvc,
			Chat:      chatSvc,
		},
	})
	require.NoError(t, err)

	return &Env{
		T:       t,
		DB:      db,
		Router:  router,
		JWT:     jwtSvc,
		Mail:    recorder,
		Weather: fakeWeather,
		Chat:    fakeChat,
		Store:   store,
	}
}

// UserPayload captures the user fields returned by the API.
type UserPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Location string `json:"location"`
	TempUnit string `json:"tempUnit"`
	WindUnit string `json:"windUnit"`
}

// TokenPayload mirrors the verify-otp response.
type TokenPayload struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Register creates an account through POST /users and returns it.
func (e *Env) Register(name, email, password string) UserPayload {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/users", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var user UserPayload
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &user)
	return user
}

// RegisterRandom creates an account with a unique email.
func (e *Env) RegisterRandom(password string) UserPayload {
	e.T.Helper()
	id := uuid.NewString()[:8]
	return e.Register("User "+id, "user-"+id+"@example.com", password)
}

// Login runs both sign-in steps and returns the session token.
func (e *Env) Login(email, password string) string {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	w = e.Request(http.MethodPost, "/auth/verify-otp", map[string]string{"email": email, "code": e.LastCode(email)}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var token TokenPayload
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &token)
	require.NotEmpty(e.T, token.AccessToken)
	require.Equal(e.T, "Bearer", token.TokenType)
	return token.AccessToken
}

// LastCode extracts the most recent code mailed to email.
func (e *Env) LastCode(email string) string {
	e.T.Helper()
	messages := e.Mail.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if len(msg.To) == 0 || msg.To[0] != email {
			continue
		}
		if m := codePattern.FindStringSubmatch(msg.Body); m != nil {
			return m[1]
		}
	}
	e.T.Fatalf("no code mailed to %s", email)
	return ""
}

// MailCount reports how many messages were sent to email.
func (e *Env) MailCount(email string) int {
	count := 0
	for _, msg := range e.Mail.Messages() {
		if len(msg.To) > 0 && msg.To[0] == email {
			count++
		}
	}
	return count
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// ErrorCode returns the error code of a failed response.
func ErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := DecodeResponse(t, w)
	require.False(t, resp.Success, w.Body.String())
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// FakeWeather answers lookups with a fixed report and records the units asked for.
type FakeWeather struct {
	Err   error
	Units []weather.Units
}

func (f *FakeWeather) Lookup(_ context.Context, location string, units weather.Units) (*weather.Report, error) {
	f.Units = append(f.Units, units)
	if f.Err != nil {
		return nil, f.Err
	}
	temp, wind, humidity := 21.0, 3.5, 60.0
	code := 1
	return &weather.Report{
		Location: strings.TrimSpace(location),
		Country:  "Portugal",
		Units:    units,
		Current: weather.Current{
			Temperature: &temp,
			WindSpeed:   &wind,
			Humidity:    &humidity,
			WeatherCode: &code,
		},
	}, nil
}

// FakeCompleter returns a canned chat reply.
type FakeCompleter struct {
	Reply string
	Err   error
}

func (f *FakeCompleter) Complete(context.Context, []chat.Message) (string, error) {
	return f.Reply, f.Err
}
