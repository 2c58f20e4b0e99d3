// Package openmeteo fetches daily forecasts from the Open-Meteo API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/eventrank/internal/domain"
	"github.com/couchcryptid/eventrank/internal/observability"
)

// DefaultBaseURL is the public forecast endpoint.
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

const forecastDays = 7

// Outdoor suitability thresholds.
const (
	maxPrecipitationProbability = 40.0
	minOutdoorTemperature       = 10.0
	maxOutdoorTemperature       = 30.0
)

// Client implements domain.WeatherProvider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	loc        *time.Location
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client. Forecast dates are interpreted in
// loc.
func NewClient(baseURL string, loc *time.Location, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		loc:        loc,
		metrics:    metrics,
		logger:     logger,
	}
}

// Forecast returns up to seven daily forecasts for the coordinate.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) ([]domain.DayWeather, error) {
	days, err := c.fetch(ctx, lat, lon)
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	return days, nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) ([]domain.DayWeather, error) {
	params := url.Values{
		"latitude":      {strconv.FormatFloat(lat, 'f', 4, 64)},
		"longitude":     {strconv.FormatFloat(lon, 'f', 4, 64)},
		"daily":         {"weather_code,temperature_2m_max,precipitation_probability_max"},
		"timezone":      {c.loc.String()},
		"forecast_days": {strconv.Itoa(forecastDays)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var fr forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return c.toDays(fr.Daily)
}

func (c *Client) toDays(d daily) ([]domain.DayWeather, error) {
	n := min(len(d.Time), len(d.WeatherCode), len(d.TemperatureMax), forecastDays)
	days := make([]domain.DayWeather, 0, n)
	for i := range n {
		date, err := time.ParseInLocation(time.DateOnly, d.Time[i], c.loc)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", d.Time[i], err)
		}
		if d.WeatherCode[i] == nil || d.TemperatureMax[i] == nil {
			c.logger.Debug("skipping incomplete forecast day", "date", d.Time[i])
			continue
		}
		var precip float64
		if i < len(d.PrecipitationProbability) && d.PrecipitationProbability[i] != nil {
			precip = *d.PrecipitationProbability[i]
		}

		code := *d.WeatherCode[i]
		temp := *d.TemperatureMax[i]
		days = append(days, domain.DayWeather{
			Date:             date,
			Temperature:      temp,
			Condition:        Condition(code),
			IsGoodForOutdoor: GoodForOutdoor(code, temp, precip),
		})
	}
	return days, nil
}

// Condition maps a WMO weather interpretation code to a coarse label.
func Condition(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3:
		return "cloudy"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67, code >= 80 && code <= 82:
		return "rain"
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return "snow"
	case code >= 95:
		return "thunderstorm"
	default:
		return "unknown"
	}
}

// GoodForOutdoor reports whether a day suits outdoor events: dry enough,
// mild, and without rain, snow or storms.
func GoodForOutdoor(code int, maxTemp, precipProbability float64) bool {
	switch Condition(code) {
	case "drizzle", "rain", "snow", "thunderstorm":
		return false
	}
	return precipProbability < maxPrecipitationProbability &&
		maxTemp >= minOutdoorTemperature &&
		maxTemp <= maxOutdoorTemperature
}

// Open-Meteo API response types. Daily values may be null.

type forecastResponse struct {
	Daily daily `json:"daily"`
}

type daily struct {
	Time                     []string   `json:"time"`
	WeatherCode              []*int     `json:"weather_code"`
	TemperatureMax           []*float64 `json:"temperature_2m_max"`
	PrecipitationProbability []*float64 `json:"precipitation_probability_max"`
}
