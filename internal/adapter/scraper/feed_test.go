package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/eventrank/internal/domain"
)

const feedBody = `[
  {
    "id": "k-17",
    "title": "Koncert pro děti",
    "start": "2026-10-24T10:00:00+02:00",
    "end": "2026-10-24T11:00:00+02:00",
    "venue": "Národní divadlo",
    "address": "Národní 2, Praha",
    "age_min": 3,
    "age_max": 8,
    "price_adult": 250,
    "price_child": 150,
    "outdoor": false,
    "duration_minutes": 60,
    "url": "https://example.com/koncert"
  },
  {"id": 42, "title": "Drakiáda", "start": "2026-10-25T14:00:00+02:00", "outdoor": true},
  {"id": "bad-1", "title": "", "start": "2026-10-25T14:00:00+02:00"},
  {"id": "bad-2", "title": "Bez data"},
  {"id": "bad-3", "title": "Záporná cena", "start": "2026-10-25T14:00:00+02:00", "price_adult": -5}
]`

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestJSONSource_Scrape(t *testing.T) {
	srv := serve(t, feedBody)
	src := NewJSONSource("feed", srv.URL, NewHTTPFetcher(5*time.Second, ""))

	result := src.Scrape(context.Background())

	assert.Equal(t, "feed", result.Source)
	require.Len(t, result.Records, 2)
	assert.Len(t, result.Errors, 3)
	assert.Equal(t, domain.StatusPartial, result.Status())

	first := result.Records[0]
	assert.Equal(t, "feed-k-17", first.ExternalID)
	assert.Equal(t, "feed", first.Source)
	assert.Equal(t, "Národní divadlo", first.LocationName)
	assert.Equal(t, domain.Ptr(3), first.AgeMin)
	assert.Equal(t, domain.Ptr(8), first.AgeMax)
	assert.Equal(t, domain.Ptr(250.0), first.AdultPrice)
	assert.Equal(t, domain.Ptr(60), first.DurationMinutes)
	require.NotNil(t, first.EndDateTime)
	assert.Equal(t, time.Hour, first.EndDateTime.Sub(first.StartDateTime))
	assert.Equal(t, "https://example.com/koncert", first.BookingURL)

	second := result.Records[1]
	assert.Equal(t, "feed-42", second.ExternalID)
	assert.True(t, second.Outdoor())
	assert.Nil(t, second.EndDateTime)
}

func TestJSONSource_WrappedFeed(t *testing.T) {
	srv := serve(t, `{"events": [{"id": "1", "title": "Pohádka", "start": "2026-10-24T10:00:00Z"}]}`)
	result := NewJSONSource("wrapped", srv.URL, NewHTTPFetcher(5*time.Second, "")).Scrape(context.Background())

	assert.Empty(t, result.Errors)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "wrapped-1", result.Records[0].ExternalID)
	assert.Equal(t, domain.StatusSuccess, result.Status())
}

func TestJSONSource_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	result := NewJSONSource("down", srv.URL, NewHTTPFetcher(5*time.Second, "")).Scrape(context.Background())

	assert.Empty(t, result.Records)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "status 502")
	assert.Equal(t, domain.StatusError, result.Status())
}

func TestJSONSource_MalformedFeed(t *testing.T) {
	for _, body := range []string{"", "not json", `{"events": 3}`} {
		srv := serve(t, body)
		result := NewJSONSource("broken", srv.URL, NewHTTPFetcher(5*time.Second, "")).Scrape(context.Background())
		assert.Empty(t, result.Records, body)
		assert.Len(t, result.Errors, 1, body)
	}
}
