package domain

import (
	"context"
	"time"
)

// DayWeather is the forecast for one calendar day at the origin.
type DayWeather struct {
	Date             time.Time `json:"date"`
	Temperature      float64   `json:"temperature"` // daily max, °C
	Condition        string    `json:"condition"`
	IsGoodForOutdoor bool      `json:"is_good_for_outdoor"`
}

// WeatherProvider returns up to seven daily forecasts for a coordinate.
// An empty slice means no forecast is available.
type WeatherProvider interface {
	Forecast(ctx context.Context, lat, lon float64) ([]DayWeather, error)
}

// Forecast is a multi-day forecast indexed by calendar date.
type Forecast map[string]DayWeather

// NewForecast indexes days by their YYYY-MM-DD date.
func NewForecast(days []DayWeather) Forecast {
	f := make(Forecast, len(days))
	for _, d := range days {
		f[d.Date.Format(time.DateOnly)] = d
	}
	return f
}

// For returns the forecast covering t's calendar date, or nil.
func (f Forecast) For(t time.Time) *DayWeather {
	if f == nil {
		return nil
	}
	d, ok := f[t.Format(time.DateOnly)]
	if !ok {
		return nil
	}
	return &d
}
