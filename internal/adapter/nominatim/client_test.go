package nominatim

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/eventrank/internal/observability"
)

const testUserAgent = "eventrank-test/1.0"

func testClient(baseURL string) *Client {
	return NewClient(baseURL, testUserAgent, "cz", 5*time.Second,
		observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_ForwardGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Letenské sady, Praha", r.URL.Query().Get("q"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "cz", r.URL.Query().Get("countrycodes"))
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"50.0966","lon":"14.4231","display_name":"Letenské sady, Holešovice, Praha","importance":0.41}]`))
	}))
	defer srv.Close()

	result, err := testClient(srv.URL+"/").ForwardGeocode(context.Background(), "Letenské sady, Praha")
	require.NoError(t, err)

	assert.True(t, result.Found)
	assert.Equal(t, 50.0966, result.Lat)
	assert.Equal(t, 14.4231, result.Lon)
	assert.Equal(t, "Letenské sady, Holešovice, Praha", result.DisplayName)
	assert.Equal(t, 0.41, result.Confidence)
}

func TestClient_ForwardGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).ForwardGeocode(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestClient_ForwardGeocode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, "429"},
		{"bad json", http.StatusOK, `{`, "decode"},
		{"bad coordinate", http.StatusOK, `[{"lat":"north","lon":"14.4"}]`, "parse lat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := testClient(srv.URL).ForwardGeocode(context.Background(), "Letná")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
