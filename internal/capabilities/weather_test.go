// internal/capabilities/weather_test.go
package capabilities

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const meteoFixture = `{
	"current": {"temperature_2m": -3.2, "apparent_temperature": -8.1, "weather_code": 71, "wind_speed_10m": 18.5},
	"daily": {
		"time": ["2026-03-02", "2026-03-03"],
		"temperature_2m_max": [-1.0, 2.5],
		"temperature_2m_min": [-7.0, -3.0],
		"weather_code": [71, 3],
		"precipitation_probability_max": [80, 0]
	}
}`

func TestGetWeatherDefaultLocation(t *testing.T) {
	var gotLat string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLat = r.URL.Query().Get("latitude")
		io.WriteString(w, meteoFixture)
	}))
	defer server.Close()

	wx := NewWeather(43.6532, -79.3832, "Toronto")
	wx.baseURL = server.URL

	out, err := wx.getWeather(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if gotLat != "43.6532" {
		t.Errorf("default latitude not used: %q", gotLat)
	}
	if !strings.Contains(out, "Toronto") {
		t.Errorf("place name missing: %q", out)
	}
	if !strings.Contains(out, "snow") {
		t.Errorf("weather code not described: %q", out)
	}
	if !strings.Contains(out, "80% precip") {
		t.Errorf("precipitation missing: %q", out)
	}
}

func TestGetWeatherExplicitCoordinates(t *testing.T) {
	var gotLat, gotLon string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLat = r.URL.Query().Get("latitude")
		gotLon = r.URL.Query().Get("longitude")
		io.WriteString(w, meteoFixture)
	}))
	defer server.Close()

	wx := NewWeather(43.6532, -79.3832, "Toronto")
	wx.baseURL = server.URL

	args := json.RawMessage(`{"latitude": 52.52, "longitude": 13.405}`)
	if _, err := wx.getWeather(context.Background(), args); err != nil {
		t.Fatal(err)
	}
	if gotLat != "52.5200" || gotLon != "13.4050" {
		t.Errorf("explicit coordinates not used: %s, %s", gotLat, gotLon)
	}
}

func TestGetWeatherMalformedArgs(t *testing.T) {
	requested := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = true
		io.WriteString(w, meteoFixture)
	}))
	defer server.Close()

	wx := NewWeather(43.6532, -79.3832, "Toronto")
	wx.baseURL = server.URL

	if _, err := wx.getWeather(context.Background(), json.RawMessage(`{"days":`)); err == nil {
		t.Fatal("malformed args must error, not degrade to defaults")
	}
	if requested {
		t.Error("forecast fetched despite malformed args")
	}
}

func TestDescribeWeatherCode(t *testing.T) {
	cases := map[int]string{
		0:  "clear",
		3:  "overcast",
		45: "fog",
		63: "rain",
		75: "snow",
		95: "thunderstorm",
	}
	for code, want := range cases {
		if got := describeWeatherCode(code); got != want {
			t.Errorf("code %d: expected %q, got %q", code, want, got)
		}
	}
}
