package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/kelseyhightower/envconfig"
)

// Geocoder providers.
const (
	ProviderNominatim = "nominatim"
	ProviderMapbox    = "mapbox"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	ShutdownTimeout time.Duration `ignored:"true"`

	// Pipeline.
	OriginLat      float64        `envconfig:"ORIGIN_LAT" default:"50.0755"`
	OriginLon      float64        `envconfig:"ORIGIN_LON" default:"14.4378"`
	SearchRadiusKm float64        `envconfig:"SEARCH_RADIUS_KM" default:"130"`
	DedupThreshold float64        `envconfig:"DEDUP_THRESHOLD" default:"0.8"`
	Timezone       string         `envconfig:"TIMEZONE" default:"Europe/Prague"`
	Location       *time.Location `ignored:"true"`
	ScrapeDelay    time.Duration  `envconfig:"SCRAPE_DELAY" default:"2s"`
	ScrapeTimeout  time.Duration  `envconfig:"SCRAPE_TIMEOUT" default:"30s"`
	SourcesFile    string         `envconfig:"SOURCES_FILE" default:"sources.yaml"`
	ChromePath     string         `envconfig:"CHROME_PATH"`
	RenderSettle   time.Duration  `envconfig:"RENDER_SETTLE" default:"2s"`
	RetentionDays  int            `envconfig:"RETENTION_DAYS" default:"30"`

	// Schedule.
	ScheduleAt      string `envconfig:"SCHEDULE_AT" default:"03:00"`
	ScheduleEnabled bool   `envconfig:"SCHEDULE_ENABLED" default:"true"`

	// Geocoding.
	GeocoderProvider   string        `envconfig:"GEOCODER_PROVIDER" default:"nominatim"`
	GeocoderRate       time.Duration `envconfig:"GEOCODER_RATE" default:"1s"`
	GeocoderTimeout    time.Duration `envconfig:"GEOCODER_TIMEOUT" default:"5s"`
	GeocoderCacheSize  int           `envconfig:"GEOCODER_CACHE_SIZE" default:"5000"`
	GeocoderCountry    string        `envconfig:"GEOCODER_COUNTRY" default:"cz"`
	NominatimURL       string        `envconfig:"NOMINATIM_URL" default:"https://nominatim.openstreetmap.org"`
	NominatimUserAgent string        `envconfig:"NOMINATIM_USER_AGENT" default:"eventrank/1.0"`
	MapboxToken        string        `envconfig:"MAPBOX_TOKEN"`
	RedisURL           string        `envconfig:"REDIS_URL"`
	RedisCacheTTL      time.Duration `envconfig:"REDIS_CACHE_TTL" default:"720h"`

	// Weather.
	WeatherURL      string        `envconfig:"WEATHER_URL" default:"https://api.open-meteo.com/v1/forecast"`
	WeatherCacheTTL time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"3h"`
	WeatherTimeout  time.Duration `envconfig:"WEATHER_TIMEOUT" default:"10s"`

	// Persistence.
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Kafka publishing.
	KafkaEnabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	KafkaBrokers []string `ignored:"true"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"scored-events"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	cfg.ShutdownTimeout = shutdownTimeout
	cfg.KafkaBrokers = sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092"))

	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.OriginLat < -90 || c.OriginLat > 90 {
		return errors.New("ORIGIN_LAT must be within [-90, 90]")
	}
	if c.OriginLon < -180 || c.OriginLon > 180 {
		return errors.New("ORIGIN_LON must be within [-180, 180]")
	}
	if c.SearchRadiusKm <= 0 {
		return errors.New("SEARCH_RADIUS_KM must be positive")
	}
	if c.DedupThreshold <= 0 || c.DedupThreshold > 1 {
		return errors.New("DEDUP_THRESHOLD must be within (0, 1]")
	}
	if c.ScrapeDelay < 0 {
		return errors.New("SCRAPE_DELAY must not be negative")
	}
	if c.ScrapeTimeout <= 0 {
		return errors.New("SCRAPE_TIMEOUT must be positive")
	}
	if c.RenderSettle < 0 {
		return errors.New("RENDER_SETTLE must not be negative")
	}
	if c.RetentionDays <= 0 {
		return errors.New("RETENTION_DAYS must be positive")
	}
	if _, _, err := c.ScheduleClock(); err != nil {
		return err
	}

	switch c.GeocoderProvider {
	case ProviderNominatim:
		if c.NominatimUserAgent == "" {
			return errors.New("NOMINATIM_USER_AGENT is required")
		}
	case ProviderMapbox:
		if c.MapboxToken == "" {
			return errors.New("GEOCODER_PROVIDER is mapbox but MAPBOX_TOKEN is not set")
		}
	default:
		return fmt.Errorf("GEOCODER_PROVIDER must be %q or %q, got %q", ProviderNominatim, ProviderMapbox, c.GeocoderProvider)
	}
	if c.GeocoderRate < 0 {
		return errors.New("GEOCODER_RATE must not be negative")
	}
	if c.GeocoderTimeout <= 0 {
		return errors.New("GEOCODER_TIMEOUT must be positive")
	}
	if c.GeocoderCacheSize <= 0 {
		return errors.New("GEOCODER_CACHE_SIZE must be positive")
	}
	if c.WeatherCacheTTL <= 0 {
		return errors.New("WEATHER_CACHE_TTL must be positive")
	}
	if c.WeatherTimeout <= 0 {
		return errors.New("WEATHER_TIMEOUT must be positive")
	}

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StoreDriver)
	}

	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	return nil
}

// ScheduleClock parses SCHEDULE_AT as a 24-hour HH:MM local time.
func (c *Config) ScheduleClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(c.ScheduleAt))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid SCHEDULE_AT %q: want HH:MM", c.ScheduleAt)
	}
	return t.Hour(), t.Minute(), nil
}

// Retention is the age after which persisted records are pruned.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
