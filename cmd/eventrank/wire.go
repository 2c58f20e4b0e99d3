package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/eventrank/internal/adapter/geocode"
	httpadapter "github.com/couchcryptid/eventrank/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/eventrank/internal/adapter/kafka"
	"github.com/couchcryptid/eventrank/internal/adapter/mapbox"
	"github.com/couchcryptid/eventrank/internal/adapter/memory"
	"github.com/couchcryptid/eventrank/internal/adapter/nominatim"
	"github.com/couchcryptid/eventrank/internal/adapter/openmeteo"
	"github.com/couchcryptid/eventrank/internal/adapter/postgres"
	"github.com/couchcryptid/eventrank/internal/adapter/scraper"
	"github.com/couchcryptid/eventrank/internal/adapter/weather"
	"github.com/couchcryptid/eventrank/internal/config"
	"github.com/couchcryptid/eventrank/internal/domain"
	"github.com/couchcryptid/eventrank/internal/geo"
	"github.com/couchcryptid/eventrank/internal/observability"
	"github.com/couchcryptid/eventrank/internal/pipeline"
)

// app holds the assembled pipeline and the resources to release on exit.
type app struct {
	pipeline *pipeline.Pipeline
	ranker   httpadapter.EventRanker
	closers  []closer
	logger   *slog.Logger
}

type closer struct {
	name string
	fn   func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Error(c.name+" close error", "error", err)
		}
	}
}

func build(ctx context.Context, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	a := &app{logger: logger}

	registry, err := scraper.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	sources := registry.Build(scraper.BuildOptions{
		Timeout:      cfg.ScrapeTimeout,
		ChromePath:   cfg.ChromePath,
		RenderSettle: cfg.RenderSettle,
		Location:     cfg.Location,
	})
	logger.Info("sources loaded", "file", cfg.SourcesFile, "count", len(sources))

	geocoder, err := a.newGeocoder(cfg, logger, metrics)
	if err != nil {
		a.close()
		return nil, err
	}

	forecasts := weather.NewCachedProvider(
		openmeteo.NewClient(cfg.WeatherURL, cfg.Location, cfg.WeatherTimeout, metrics, logger),
		cfg.WeatherCacheTTL, clock, metrics,
	)

	deps := pipeline.Deps{
		Sources:  sources,
		Geocoder: geocoder,
		Weather:  forecasts,
	}

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.Options{}, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.closers = append(a.closers, closer{"postgres", store.Close})
		deps.Store, deps.Audit = store, store
		a.ranker = store
	default:
		store := memory.NewStore()
		deps.Store, deps.Audit = store, &memory.AuditLog{}
		a.ranker = store
		logger.Warn("using in-memory store; records are lost on exit")
	}

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		a.closers = append(a.closers, closer{"kafka writer", writer.Close})
		deps.Publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	a.pipeline = pipeline.New(deps, pipeline.Options{
		Origin:         geo.Point{Lat: cfg.OriginLat, Lon: cfg.OriginLon},
		RadiusKm:       cfg.SearchRadiusKm,
		DedupThreshold: cfg.DedupThreshold,
		ScrapeDelay:    cfg.ScrapeDelay,
		Retention:      cfg.Retention(),
		Location:       cfg.Location,
	}, clock, logger, metrics)
	return a, nil
}

// newGeocoder layers the configured provider behind the rate limiter, the
// optional Redis cache and the in-process LRU, outermost last.
func (a *app) newGeocoder(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (domain.Geocoder, error) {
	var g domain.Geocoder
	switch cfg.GeocoderProvider {
	case config.ProviderMapbox:
		g = mapbox.NewClient(cfg.MapboxToken, cfg.GeocoderCountry, cfg.GeocoderTimeout, metrics, logger).
			WithProximity(cfg.OriginLat, cfg.OriginLon)
	default:
		g = nominatim.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.GeocoderCountry, cfg.GeocoderTimeout, metrics, logger)
	}
	g = geocode.NewRateLimited(g, cfg.GeocoderRate)

	if cfg.RedisURL != "" {
		client, err := geocode.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, closer{"redis", client.Close})
		g = geocode.NewRedisCache(g, client, cfg.RedisCacheTTL, metrics, logger)
		logger.Info("redis geocode cache enabled", "ttl", cfg.RedisCacheTTL)
	}

	logger.Info("geocoder configured", "provider", cfg.GeocoderProvider, "rate", cfg.GeocoderRate, "cache_size", cfg.GeocoderCacheSize)
	return geocode.NewCachedGeocoder(g, cfg.GeocoderCacheSize, metrics), nil
}
