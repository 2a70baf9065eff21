package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/skycast/internal/cache"
	"github.com/charlesng35/skycast/internal/weather"
	apperrors "github.com/charlesng35/skycast/pkg/errors"
	"github.com/charlesng35/skycast/pkg/logger"
	"github.com/charlesng35/skycast/pkg/metrics"
)

const DefaultWeatherCacheTTL = 10 * time.Minute

var (
	ErrLocationRequired   = apperrors.New("LOCATION_REQUIRED", "Location query parameter is required", http.StatusBadRequest)
	ErrLocationNotFound   = apperrors.New("LOCATION_NOT_FOUND", "Location not found. Please check the spelling and try again.", http.StatusBadRequest)
	ErrWeatherUnavailable = apperrors.New("WEATHER_UNAVAILABLE", "Failed to fetch weather data", http.StatusBadGateway)
)

// WeatherFetcher is satisfied by *weather.Client.
type WeatherFetcher interface {
	Lookup(ctx context.Context, location string, units weather.Units) (*weather.Report, error)
}

// WeatherServiceOption customises a WeatherService.
type WeatherServiceOption func(*WeatherService)

// WithWeatherCache caches reports in store for ttl. A zero ttl uses the default.
func WithWeatherCache(store cache.Store, ttl time.Duration) WeatherServiceOption {
	return func(s *WeatherService) {
		s.cache = store
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WeatherService looks up reports in the caller's preferred units.
type WeatherService struct {
	fetcher  WeatherFetcher
	users    *UserService
	cache    cache.Store
	cacheTTL time.Duration
}

func NewWeatherService(fetcher WeatherFetcher, users *UserService, opts ...WeatherServiceOption) (*WeatherService, error) {
	if fetcher == nil {
		return nil, errors.New("weather service: fetcher is required")
	}
	svc := &WeatherService{
		fetcher:  fetcher,
		users:    users,
		cacheTTL: DefaultWeatherCacheTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Lookup returns the report for location using userID's unit preferences.
func (s *WeatherService) Lookup(ctx context.Context, userID, location string) (*weather.Report, error) {
	ctx = ensureContext(ctx)

	units := weather.Units{}
	if s.users != nil && userID != "" {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		units = weather.Units{Temperature: user.TempUnit, WindSpeed: user.WindUnit}
	}
	return s.LookupWithUnits(ctx, location, units)
}

// LookupWithUnits skips the account lookup and reports in units directly.
func (s *WeatherService) LookupWithUnits(ctx context.Context, location string, units weather.Units) (*weather.Report, error) {
	ctx = ensureContext(ctx)
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, ErrLocationRequired
	}
	units = units.Normalize()
	key := weatherCacheKey(location, units)

	if report, ok := s.cached(ctx, key); ok {
		return report, nil
	}

	report, err := s.fetcher.Lookup(ctx, location, units)
	if err != nil {
		if errors.Is(err, weather.ErrLocationNotFound) {
			return nil, ErrLocationNotFound
		}
		logger.WithModule("weather").Error("weather lookup failed",
			zap.String("location", location),
			zap.Error(err),
		)
		return nil, ErrWeatherUnavailable.WithInternal(err)
	}

	s.store(ctx, key, report)
	return report, nil
}

func (s *WeatherService) cached(ctx context.Context, key string) (*weather.Report, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.WithModule("weather").Warn("weather cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		metrics.WeatherCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	var report weather.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		metrics.WeatherCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.WeatherCache.WithLabelValues("hit").Inc()
	return &report, true
}

func (s *WeatherService) store(ctx context.Context, key string, report *weather.Report) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		logger.WithModule("weather").Warn("weather cache write failed", zap.Error(err))
	}
}

func weatherCacheKey(location string, units weather.Units) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(location)), " ")
	return "weather:" + units.Temperature + ":" + units.WindSpeed + ":" + normalized
}
