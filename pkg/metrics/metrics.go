package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records sign-in and reset steps by outcome (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycast_auth_attempts_total",
			Help: "Total number of authentication steps",
		},
		[]string{"step", "result"},
	)

	OTPIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycast_otp_issued_total",
			Help: "One-time codes issued",
		},
		[]string{"purpose"},
	)

	// OTPVerifications counts verification outcomes (success|rejected|error).
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycast_otp_verifications_total",
			Help: "One-time code verification attempts",
		},
		[]string{"purpose", "result"},
	)

	OTPDispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycast_otp_dispatch_failures_total",
			Help: "One-time code notifications that could not be delivered",
		},
		[]string{"purpose"},
	)

	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skycast_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	WeatherUpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skycast_weather_upstream_seconds",
			Help:    "Latency of geocoding and forecast calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "result"},
	)

	// WeatherCache counts report cache lookups (hit|miss).
	WeatherCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycast_weather_cache_total",
			Help: "Weather report cache lookups",
		},
		[]string{"result"},
	)

	// ChatCompletions counts assistant replies by source (model|fallback|error).
	ChatCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycast_chat_completions_total",
			Help: "Chat assistant replies",
		},
		[]string{"source"},
	)
)
