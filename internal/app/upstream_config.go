package app

import (
	"strings"

	"github.com/charlesng35/skycast/internal/chat"
	"github.com/charlesng35/skycast/internal/weather"
)

// WeatherClientConfig converts WeatherConfig into the weather client representation.
func (c WeatherConfig) WeatherClientConfig() weather.Config {
	return weather.Config{
		GeocodingURL: strings.TrimSpace(c.GeocodingURL),
		ForecastURL:  strings.TrimSpace(c.ForecastURL),
		Timeout:      c.Timeout,
	}
}

// ChatClientConfig converts ChatConfig into the chat client representation.
func (c ChatConfig) ChatClientConfig() chat.Config {
	return chat.Config{
		APIKey:      strings.TrimSpace(c.APIKey),
		BaseURL:     strings.TrimSpace(c.BaseURL),
		Model:       strings.TrimSpace(c.Model),
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Timeout:     c.Timeout,
	}
}

// ChatAvailable reports whether the assistant should be wired at all.
func (c ChatConfig) ChatAvailable() bool {
	return c.Enabled && strings.TrimSpace(c.APIKey) != ""
}
