package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/skycast/internal/cache"
	"github.com/charlesng35/skycast/internal/database/testutil"
	"github.com/charlesng35/skycast/pkg/response"
)

func newRateLimitedRouter(cfg RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(cfg))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/other", func(c *gin.Context) { c.String(http.StatusOK, "other") })
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRateLimitMiddleware(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	store := newMemoryRateStore(func() time.Time { return now })
	r := newRateLimitedRouter(RateLimitConfig{Requests: 2, Window: time.Minute, Store: store})

	for i := 0; i < 2; i++ {
		w := get(r, "/ping")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := get(r, "/ping")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "60", w.Header().Get("Retry-After"))

	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "RATE_LIMIT_EXCEEDED", payload.Error.Code)

	// routes are counted separately
	require.Equal(t, http.StatusOK, get(r, "/other").Code)

	now = now.Add(61 * time.Second)
	require.Equal(t, http.StatusOK, get(r, "/ping").Code)
}

func TestRateLimitSharedStore(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewCacheRateStore(cache.NewDatabaseStore(db))

	first := newRateLimitedRouter(RateLimitConfig{Requests: 1, Window: time.Minute, Store: store})
	second := newRateLimitedRouter(RateLimitConfig{Requests: 1, Window: time.Minute, Store: store})

	require.Equal(t, http.StatusOK, get(first, "/ping").Code)
	require.Equal(t, http.StatusTooManyRequests, get(second, "/ping").Code)
}

type failingRateStore struct{}

func (failingRateStore) Increment(context.Context, string, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("store down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := newRateLimitedRouter(RateLimitConfig{Requests: 1, Window: time.Minute, Store: failingRateStore{}})
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, get(r, "/ping").Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	r := newRateLimitedRouter(RateLimitConfig{})
	for i := 0; i < 30; i++ {
		require.Equal(t, http.StatusOK, get(r, "/ping").Code)
	}
	require.Nil(t, NewCacheRateStore(nil))
}
