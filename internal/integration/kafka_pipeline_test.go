//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/eventrank/internal/adapter/kafka"
	"github.com/couchcryptid/eventrank/internal/adapter/memory"
	"github.com/couchcryptid/eventrank/internal/adapter/scraper"
	"github.com/couchcryptid/eventrank/internal/domain"
	"github.com/couchcryptid/eventrank/internal/geo"
	"github.com/couchcryptid/eventrank/internal/observability"
	"github.com/couchcryptid/eventrank/internal/pipeline"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("eventrank-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// publishedMessage holds a deserialized message read back from the topic.
type publishedMessage struct {
	Record  domain.ScoredRecord
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var rec domain.ScoredRecord
	require.NoError(t, json.Unmarshal(msg.Value, &rec), "unmarshal message")
	return publishedMessage{Record: rec, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker, topic string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestWriterPublish verifies that kafka.Writer round-trips scored records
// with their key and headers.
func TestWriterPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	const topic = "test-scored"
	createTopic(t, broker, topic)

	processed := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
	records := []domain.ScoredRecord{
		{
			GeoRecord: domain.GeoRecord{RawRecord: domain.RawRecord{
				ExternalID:    "divadlo-101",
				Source:        "divadlo, kultura",
				Title:         "Koncert pro nejmenší",
				StartDateTime: time.Date(2026, 10, 24, 8, 0, 0, 0, time.UTC),
			}},
			ScoreInfant: 100, ScoreChild: 71, ScoreFamily: 88,
			ProcessedAt: processed,
		},
		{
			GeoRecord: domain.GeoRecord{RawRecord: domain.RawRecord{
				ExternalID:    "kultura-k-3",
				Source:        "kultura",
				Title:         "Podzimní farmářský trh",
				StartDateTime: time.Date(2026, 10, 31, 8, 0, 0, 0, time.UTC),
			}},
			ScoreInfant: 62, ScoreChild: 64, ScoreFamily: 70,
			ProcessedAt: processed,
		},
	}

	writer := kafka.NewWriter([]string{broker}, topic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	n, err := writer.Publish(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	consumer := newConsumer(t, broker, topic)
	for _, want := range records {
		got := readPublished(ctx, t, consumer)
		assert.Equal(t, want.ExternalID, got.Key)
		assert.Equal(t, want.Source, got.Headers["source"])
		assert.Equal(t, processed.Format(time.RFC3339), got.Headers["processed_at"])
		assert.Equal(t, want.Title, got.Record.Title)
		assert.Equal(t, want.ScoreInfant, got.Record.ScoreInfant)
		assert.True(t, want.StartDateTime.Equal(got.Record.StartDateTime))
	}
}

// TestPipelinePublishesToKafka runs the full pipeline over the mock feeds
// with a real broker as the publisher.
func TestPipelinePublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	const topic = "test-pipeline"
	createTopic(t, broker, topic)

	feeds := serveMockFeeds(t)
	fetcher := scraper.NewHTTPFetcher(5*time.Second, "")
	writer := kafka.NewWriter([]string{broker}, topic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	loc, err := time.LoadLocation("Europe/Prague")
	require.NoError(t, err)

	store := memory.NewStore()
	p := pipeline.New(pipeline.Deps{
		Sources: []domain.Source{
			scraper.NewJSONSource("divadlo", feeds.URL+"/divadlo_feed.json", fetcher),
			scraper.NewJSONSource("kultura", feeds.URL+"/kultura_feed.json", fetcher),
		},
		Geocoder:  tableGeocoder(mockPlaces),
		Store:     store,
		Audit:     &memory.AuditLog{},
		Publisher: writer,
	}, pipeline.Options{
		Origin:    geo.Point{Lat: 50.0755, Lon: 14.4378},
		RadiusKm:  130,
		Retention: 30 * 24 * time.Hour,
		Location:  loc,
	}, clockwork.NewFakeClockAt(time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)),
		discardLogger(), observability.NewMetricsForTesting())

	report, err := p.Run(ctx, "integration-1", "")
	require.NoError(t, err)
	require.Equal(t, report.Upserted, report.Published)
	require.Equal(t, 5, report.Published)

	consumer := newConsumer(t, broker, topic)
	keys := make([]string, 0, report.Published)
	for range report.Published {
		msg := readPublished(ctx, t, consumer)
		keys = append(keys, msg.Key)
		stored, ok := store.Get(msg.Key)
		require.True(t, ok, msg.Key)
		assert.Equal(t, stored.ScoreFamily, msg.Record.ScoreFamily)
		assert.Equal(t, stored.Source, msg.Headers["source"])
	}
	assert.ElementsMatch(t, []string{
		"divadlo-101", "divadlo-102", "divadlo-103", "divadlo-105", "kultura-k-3",
	}, keys)
}

var mockPlaces = map[string]geo.Point{
	"Alšovo nábřeží 12, Praha":    {Lat: 50.0900, Lon: 14.4150},
	"Václavské náměstí 68, Praha": {Lat: 50.0790, Lon: 14.4310},
	"Letenská pláň, Praha":        {Lat: 50.0966, Lon: 14.4231},
	"Rašínovo nábřeží, Praha":     {Lat: 50.0700, Lon: 14.4140},
	"Lidická 16, Brno":            {Lat: 49.2000, Lon: 16.6070},
}

type tableGeocoder map[string]geo.Point

func (g tableGeocoder) ForwardGeocode(_ context.Context, q string) (domain.GeocodingResult, error) {
	p, ok := g[q]
	if !ok {
		return domain.GeocodingResult{}, nil
	}
	return domain.GeocodingResult{Lat: p.Lat, Lon: p.Lon, DisplayName: q, Found: true}, nil
}

func serveMockFeeds(t *testing.T) *httptest.Server {
	t.Helper()
	dir := filepath.Join("..", "..", "data", "mock")
	mux := http.NewServeMux()
	for _, name := range []string{"divadlo_feed.json", "kultura_feed.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		mux.HandleFunc("/"+name, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(data)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}
