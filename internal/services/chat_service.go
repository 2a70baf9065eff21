package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/skycast/internal/chat"
	"github.com/charlesng35/skycast/internal/weather"
	apperrors "github.com/charlesng35/skycast/pkg/errors"
	"github.com/charlesng35/skycast/pkg/logger"
	"github.com/charlesng35/skycast/pkg/metrics"
)

const (
	chatApologyReply = "Sorry, an internal error occurred. Please try again later."
	chatNoCityReply  = "Please provide a city to get current weather information."
)

var ErrChatDisabled = apperrors.New("CHAT_DISABLED", "Chat assistant is not configured", http.StatusServiceUnavailable)

// Completer is satisfied by *chat.Client.
type Completer interface {
	Complete(ctx context.Context, messages []chat.Message) (string, error)
}

// ChatRequest is one user turn, optionally anchored to a city.
type ChatRequest struct {
	Message string
	City    string
}

// ChatService answers weather questions through a language model.
type ChatService struct {
	completer Completer
	weather   *WeatherService
}

// NewChatService accepts a nil completer; Reply then reports ErrChatDisabled.
func NewChatService(completer Completer, weatherSvc *WeatherService) *ChatService {
	return &ChatService{completer: completer, weather: weatherSvc}
}

func (s *ChatService) Enabled() bool {
	return s != nil && s.completer != nil
}

// Reply answers req. Upstream failures never surface as errors: quota
// exhaustion yields a summary built from the weather report, anything else
// the generic apology.
func (s *ChatService) Reply(ctx context.Context, req ChatRequest) (string, error) {
	ctx = ensureContext(ctx)
	if !s.Enabled() {
		return "", ErrChatDisabled
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return "", apperrors.NewBadRequest("message is required")
	}
	city := strings.TrimSpace(req.City)

	var report *weather.Report
	if city != "" && s.weather != nil {
		r, err := s.weather.LookupWithUnits(ctx, city, weather.Units{Temperature: "C", WindSpeed: "ms"})
		if err != nil {
			logger.WithModule("chat").Warn("weather context unavailable",
				zap.String("city", city),
				zap.Error(err),
			)
		} else {
			report = r
		}
	}

	reply, err := s.completer.Complete(ctx, []chat.Message{
		{Role: chat.RoleSystem, Content: systemPrompt(report)},
		{Role: chat.RoleUser, Content: message},
	})
	if err == nil {
		metrics.ChatCompletions.WithLabelValues("model").Inc()
		return reply, nil
	}

	logger.WithModule("chat").Error("chat completion failed", zap.Error(err))
	if errors.Is(err, chat.ErrQuotaExceeded) {
		metrics.ChatCompletions.WithLabelValues("fallback").Inc()
		if report == nil {
			return chatNoCityReply, nil
		}
		return fallbackReply(report), nil
	}
	metrics.ChatCompletions.WithLabelValues("error").Inc()
	return chatApologyReply, nil
}

func systemPrompt(report *weather.Report) string {
	summary := "No live weather context available."
	if report != nil {
		c := report.Current
		summary = fmt.Sprintf("Current conditions in %s: temperature %s°C, wind %s m/s, humidity %s%%.",
			report.Location, formatReading(c.Temperature), formatReading(c.WindSpeed), formatReading(c.Humidity))
	}
	return "You are a helpful weather assistant. Do NOT reveal raw dataset contents, file paths, or internal identifiers. " +
		"Use the available weather context to answer succinctly: " + summary +
		" If the user asks for advice, give short actionable guidance."
}

func fallbackReply(report *weather.Report) string {
	c := report.Current
	return fmt.Sprintf("Today's weather in %s: %s°C, windspeed %s m/s, humidity %s%%.",
		report.Location, formatReading(c.Temperature), formatReading(c.WindSpeed), formatReading(c.Humidity))
}

func formatReading(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
