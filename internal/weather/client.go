package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charlesng35/skycast/pkg/metrics"
)

const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultTimeout      = 10 * time.Second

	hourlyFields = "temperature_2m,relative_humidity_2m,wind_speed_10m,uv_index"
	dailyFields  = "temperature_2m_max,temperature_2m_min,weathercode"

	maxBodyBytes = 4 << 20
)

var (
	// ErrLocationNotFound is returned when geocoding yields no match.
	ErrLocationNotFound = errors.New("weather: location not found")
	// ErrUpstream wraps any non-success answer from Open-Meteo.
	ErrUpstream = errors.New("weather: upstream unavailable")
)

// Units selects the unit system Open-Meteo reports in.
type Units struct {
	Temperature string `json:"temperature"`
	WindSpeed   string `json:"windSpeed"`
}

// Normalize maps account preferences (F/C, mph/kmh) onto Open-Meteo's parameter values.
func (u Units) Normalize() Units {
	out := Units{Temperature: "celsius", WindSpeed: "kmh"}
	switch strings.ToLower(strings.TrimSpace(u.Temperature)) {
	case "f", "fahrenheit":
		out.Temperature = "fahrenheit"
	}
	switch strings.ToLower(strings.TrimSpace(u.WindSpeed)) {
	case "mph":
		out.WindSpeed = "mph"
	case "ms", "m/s":
		out.WindSpeed = "ms"
	case "kn", "knots":
		out.WindSpeed = "kn"
	}
	return out
}

// Current holds the conditions at request time. Humidity and UV come from the
// hourly series and are nil when the current hour is not in it.
type Current struct {
	Temperature   *float64 `json:"temperature"`
	WindSpeed     *float64 `json:"windspeed"`
	WindDirection *float64 `json:"winddirection"`
	WeatherCode   *int     `json:"weathercode"`
	Humidity      *float64 `json:"humidity"`
	UVIndex       *float64 `json:"uv_index"`
}

type Hourly struct {
	Time               []string   `json:"time"`
	Temperature2m      []*float64 `json:"temperature_2m"`
	RelativeHumidity2m []*float64 `json:"relative_humidity_2m"`
	WindSpeed10m       []*float64 `json:"wind_speed_10m"`
	UVIndex            []*float64 `json:"uv_index"`
}

type Daily struct {
	Time             []string   `json:"time"`
	Temperature2mMax []*float64 `json:"temperature_2m_max"`
	Temperature2mMin []*float64 `json:"temperature_2m_min"`
	WeatherCode      []*int     `json:"weathercode"`
}

// Report is the payload served by GET /weather.
type Report struct {
	Location  string  `json:"location"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone,omitempty"`
	Units     Units   `json:"units"`
	Current   Current `json:"current"`
	Hourly    *Hourly `json:"hourly,omitempty"`
	Daily     *Daily  `json:"daily,omitempty"`
}

// Config configures a Client. Zero values fall back to the public endpoints.
type Config struct {
	GeocodingURL string
	ForecastURL  string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client resolves a place name and fetches its forecast from Open-Meteo.
type Client struct {
	geocodingURL string
	forecastURL  string
	http         *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	geo := strings.TrimSpace(cfg.GeocodingURL)
	if geo == "" {
		geo = DefaultGeocodingURL
	}
	forecast := strings.TrimSpace(cfg.ForecastURL)
	if forecast == "" {
		forecast = DefaultForecastURL
	}
	for _, raw := range []string{geo, forecast} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, fmt.Errorf("weather: invalid endpoint %q: %w", raw, err)
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{geocodingURL: geo, forecastURL: forecast, http: httpClient}, nil
}

type place struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type forecastPayload struct {
	Timezone       string `json:"timezone"`
	CurrentWeather *struct {
		Time          string   `json:"time"`
		Temperature   *float64 `json:"temperature"`
		WindSpeed     *float64 `json:"windspeed"`
		WindDirection *float64 `json:"winddirection"`
		WeatherCode   *int     `json:"weathercode"`
	} `json:"current_weather"`
	Hourly *Hourly `json:"hourly"`
	Daily  *Daily  `json:"daily"`
}

// Lookup geocodes location and returns its current conditions and forecast.
func (c *Client) Lookup(ctx context.Context, location string, units Units) (*Report, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, ErrLocationNotFound
	}
	units = units.Normalize()

	match, err := c.geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(match.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(match.Longitude, 'f', -1, 64))
	q.Set("current_weather", "true")
	q.Set("hourly", hourlyFields)
	q.Set("daily", dailyFields)
	q.Set("timezone", "auto")
	q.Set("temperature_unit", units.Temperature)
	q.Set("wind_speed_unit", units.WindSpeed)

	var payload forecastPayload
	if err := c.getJSON(ctx, "forecast", c.forecastURL, q, &payload); err != nil {
		return nil, err
	}

	report := &Report{
		Location:  match.Name,
		Country:   match.Country,
		Latitude:  match.Latitude,
		Longitude: match.Longitude,
		Timezone:  payload.Timezone,
		Units:     units,
		Hourly:    payload.Hourly,
		Daily:     payload.Daily,
	}
	if cw := payload.CurrentWeather; cw != nil {
		report.Current = Current{
			Temperature:   cw.Temperature,
			WindSpeed:     cw.WindSpeed,
			WindDirection: cw.WindDirection,
			WeatherCode:   cw.WeatherCode,
		}
		if idx := currentHourIndex(payload.Hourly, cw.Time); idx >= 0 {
			report.Current.Humidity = at(payload.Hourly.RelativeHumidity2m, idx)
			report.Current.UVIndex = at(payload.Hourly.UVIndex, idx)
		}
	}
	return report, nil
}

func (c *Client) geocode(ctx context.Context, location string) (*place, error) {
	q := url.Values{}
	q.Set("name", location)
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")

	var payload struct {
		Results []place `json:"results"`
	}
	if err := c.getJSON(ctx, "geocoding", c.geocodingURL, q, &payload); err != nil {
		return nil, err
	}
	if len(payload.Results) == 0 {
		return nil, ErrLocationNotFound
	}
	return &payload.Results[0], nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, base string, q url.Values, out any) (err error) {
	start := time.Now()
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		metrics.WeatherUpstreamLatency.WithLabelValues(endpoint, result).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("weather: build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpstream, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return fmt.Errorf("%w: %s returned %d", ErrUpstream, endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, endpoint, err)
	}
	return nil
}

// currentHourIndex finds the hourly slot covering the observation time, which
// Open-Meteo reports in the location's local time ("2006-01-02T15:04").
func currentHourIndex(h *Hourly, observed string) int {
	if h == nil || len(observed) < len("2006-01-02T15") {
		return -1
	}
	prefix := observed[:len("2006-01-02T15")]
	for i, ts := range h.Time {
		if strings.HasPrefix(ts, prefix) {
			return i
		}
	}
	return -1
}

func at(values []*float64, idx int) *float64 {
	if idx < 0 || idx >= len(values) {
		return nil
	}
	return values[idx]
}
