package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeOpenMeteo struct {
	server      *httptest.Server
	places      []map[string]any
	forecastErr int
	lastQuery   map[string]string
}

func newFakeOpenMeteo(t *testing.T) *fakeOpenMeteo {
	t.Helper()
	f := &fakeOpenMeteo{
		places: []map[string]any{{
			"name": "Lisbon", "country": "Portugal", "latitude": 38.72, "longitude": -9.13,
		}},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1", r.URL.Query().Get("count"))
		require.Equal(t, "en", r.URL.Query().Get("language"))
		body := map[string]any{}
		if len(f.places) > 0 {
			body["results"] = f.places
		}
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		f.lastQuery = map[string]string{}
		for k := range r.URL.Query() {
			f.lastQuery[k] = r.URL.Query().Get(k)
		}
		if f.forecastErr != 0 {
			w.WriteHeader(f.forecastErr)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"timezone": "Europe/Lisbon",
			"current_weather": map[string]any{
				"time": "2026-10-19T14:45", "temperature": 21.5, "windspeed": 12.0,
				"winddirection": 270.0, "weathercode": 1,
			},
			"hourly": map[string]any{
				"time":                 []string{"2026-10-19T13:00", "2026-10-19T14:00", "2026-10-19T15:00"},
				"temperature_2m":       []float64{20, 21, 22},
				"relative_humidity_2m": []float64{60, 55, 50},
				"wind_speed_10m":       []float64{10, 12, 14},
				"uv_index":             []float64{3.1, 3.4, 2.9},
			},
			"daily": map[string]any{
				"time":               []string{"2026-10-19"},
				"temperature_2m_max": []float64{24},
				"temperature_2m_min": []float64{15},
				"weathercode":        []int{1},
			},
		})
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeOpenMeteo) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(Config{
		GeocodingURL: f.server.URL + "/v1/search",
		ForecastURL:  f.server.URL + "/v1/forecast",
	})
	require.NoError(t, err)
	return c
}

func TestLookupBuildsReport(t *testing.T) {
	f := newFakeOpenMeteo(t)

	report, err := f.client(t).Lookup(context.Background(), "lisbon", Units{Temperature: "F", WindSpeed: "mph"})
	require.NoError(t, err)

	require.Equal(t, "Lisbon", report.Location)
	require.Equal(t, "Portugal", report.Country)
	require.InDelta(t, 38.72, report.Latitude, 0.001)
	require.Equal(t, "Europe/Lisbon", report.Timezone)
	require.Equal(t, Units{Temperature: "fahrenheit", WindSpeed: "mph"}, report.Units)

	require.NotNil(t, report.Current.Temperature)
	require.Equal(t, 21.5, *report.Current.Temperature)
	require.Equal(t, 1, *report.Current.WeatherCode)
	require.NotNil(t, report.Current.Humidity)
	require.Equal(t, 55.0, *report.Current.Humidity)
	require.Equal(t, 3.4, *report.Current.UVIndex)
	require.Len(t, report.Hourly.Time, 3)
	require.Len(t, report.Daily.Time, 1)

	require.Equal(t, "true", f.lastQuery["current_weather"])
	require.Equal(t, "auto", f.lastQuery["timezone"])
	require.Equal(t, "fahrenheit", f.lastQuery["temperature_unit"])
	require.Equal(t, "mph", f.lastQuery["wind_speed_unit"])
	require.Equal(t, hourlyFields, f.lastQuery["hourly"])
}

func TestLookupLocationNotFound(t *testing.T) {
	f := newFakeOpenMeteo(t)
	f.places = nil

	_, err := f.client(t).Lookup(context.Background(), "atlantis", Units{})
	require.ErrorIs(t, err, ErrLocationNotFound)

	_, err = f.client(t).Lookup(context.Background(), "   ", Units{})
	require.ErrorIs(t, err, ErrLocationNotFound)
}

func TestLookupUpstreamFailure(t *testing.T) {
	f := newFakeOpenMeteo(t)
	f.forecastErr = http.StatusServiceUnavailable

	_, err := f.client(t).Lookup(context.Background(), "lisbon", Units{})
	require.ErrorIs(t, err, ErrUpstream)
	require.NotErrorIs(t, err, ErrLocationNotFound)
}

func TestUnitsNormalize(t *testing.T) {
	require.Equal(t, Units{Temperature: "celsius", WindSpeed: "kmh"}, Units{}.Normalize())
	require.Equal(t, Units{Temperature: "fahrenheit", WindSpeed: "mph"}, Units{Temperature: "f", WindSpeed: "MPH"}.Normalize())
	require.Equal(t, Units{Temperature: "celsius", WindSpeed: "kmh"}, Units{Temperature: "C", WindSpeed: "kmh"}.Normalize())
}

func TestCurrentHourIndex(t *testing.T) {
	h := &Hourly{Time: []string{"2026-10-19T00:00", "2026-10-19T01:00"}}
	require.Equal(t, 1, currentHourIndex(h, "2026-10-19T01:30"))
	require.Equal(t, -1, currentHourIndex(h, "2026-10-20T01:30"))
	require.Equal(t, -1, currentHourIndex(nil, "2026-10-19T01:30"))
	require.Equal(t, -1, currentHourIndex(h, ""))
}
