// internal/capabilities/weather.go
package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/user/aide/internal/dispatch"
)

// Weather reports current conditions and a short forecast via the
// Open-Meteo API, which needs no key.
type Weather struct {
	baseURL string
	client  *http.Client

	// Default coordinates when the model gives none.
	lat, lon float64
	place    string
}

// NewWeather creates the weather capability set with a default location.
func NewWeather(lat, lon float64, place string) *Weather {
	return &Weather{
		baseURL: "https://api.open-meteo.com/v1/forecast",
		client:  &http.Client{Timeout: 15 * time.Second},
		lat:     lat,
		lon:     lon,
		place:   place,
	}
}

// RegisterAll plugs the weather capability into the dispatch registry.
func (w *Weather) RegisterAll(reg *dispatch.Registry) {
	reg.Register(dispatch.Capability{
		Name:        "get_weather",
		Description: "Current conditions and a short daily forecast",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"latitude": {"type": "number", "description": "Latitude (defaults to home)"},
				"longitude": {"type": "number", "description": "Longitude (defaults to home)"},
				"days": {"type": "integer", "description": "Forecast days (default: 3, max: 7)"}
			}
		}`),
		Handler: w.getWeather,
	})
}

type meteoResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		Apparent    float64 `json:"apparent_temperature"`
		WeatherCode int     `json:"weather_code"`
		WindSpeed   float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Daily struct {
		Time        []string  `json:"time"`
		TempMax     []float64 `json:"temperature_2m_max"`
		TempMin     []float64 `json:"temperature_2m_min"`
		WeatherCode []int     `json:"weather_code"`
		PrecipProb  []int     `json:"precipitation_probability_max"`
	} `json:"daily"`
}

func (w *Weather) getWeather(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Days      int      `json:"days"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("parse args: %w", err)
		}
	}

	lat, lon, place := w.lat, w.lon, w.place
	if params.Latitude != nil && params.Longitude != nil {
		lat, lon = *params.Latitude, *params.Longitude
		place = fmt.Sprintf("%.2f, %.2f", lat, lon)
	}
	if params.Days <= 0 {
		params.Days = 3
	}
	if params.Days > 7 {
		params.Days = 7
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("current", "temperature_2m,apparent_temperature,weather_code,wind_speed_10m")
	q.Set("daily", "temperature_2m_max,temperature_2m_min,weather_code,precipitation_probability_max")
	q.Set("forecast_days", fmt.Sprintf("%d", params.Days))
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result meteoResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Weather for %s\nNow: %.0fC (feels like %.0fC), %s, wind %.0f km/h\n",
		place, result.Current.Temperature, result.Current.Apparent,
		describeWeatherCode(result.Current.WeatherCode), result.Current.WindSpeed)

	for i := range result.Daily.Time {
		if i >= len(result.Daily.TempMax) || i >= len(result.Daily.TempMin) {
			break
		}
		day, err := time.Parse("2006-01-02", result.Daily.Time[i])
		label := result.Daily.Time[i]
		if err == nil {
			label = day.Format("Mon")
		}
		line := fmt.Sprintf("%s: %.0fC / %.0fC", label, result.Daily.TempMax[i], result.Daily.TempMin[i])
		if i < len(result.Daily.WeatherCode) {
			line += ", " + describeWeatherCode(result.Daily.WeatherCode[i])
		}
		if i < len(result.Daily.PrecipProb) && result.Daily.PrecipProb[i] > 0 {
			line += fmt.Sprintf(", %d%% precip", result.Daily.PrecipProb[i])
		}
		sb.WriteString(line + "\n")
	}
	return sb.String(), nil
}

// describeWeatherCode maps WMO weather codes to short labels.
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 2:
		return "partly cloudy"
	case code == 3:
		return "overcast"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "showers"
	case code >= 85 && code <= 86:
		return "snow showers"
	case code >= 95:
		return "thunderstorm"
	default:
		return "mixed"
	}
}
