//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/eventrank/internal/observability"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, "cz", 10*time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "Zoo Praha, U Trojského zámku 120")
	require.NoError(t, err)

	require.True(t, result.Found)
	assert.InDelta(t, 50.117, result.Lat, 0.05, "lat should be near Troja")
	assert.InDelta(t, 14.406, result.Lon, 0.05, "lon should be near Troja")
	assert.Greater(t, result.Confidence, 0.5)
}

func TestSmoke_ForwardGeocode_NoMatch(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "qqqxxzz nonexistent 99999")
	require.NoError(t, err)
	assert.False(t, result.Found)
}
