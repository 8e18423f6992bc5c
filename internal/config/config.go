package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"` // empty = stdout only

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Redis (city cache store); in-memory store when disabled
	RedisEnabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisUsername string `envconfig:"REDIS_USERNAME"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// SwiftShip carrier
	SwiftShipBaseURL string        `envconfig:"SWIFTSHIP_BASE_URL" default:"https://api.swiftship.io/merchant/v1"`
	SwiftShipTimeout time.Duration `envconfig:"SWIFTSHIP_TIMEOUT" default:"30s"`
	SwiftShipUseMock bool          `envconfig:"SWIFTSHIP_USE_MOCK" default:"false"`
	CityCacheTTL     time.Duration `envconfig:"CITY_CACHE_TTL" default:"24h"`

	// City cache warmer
	CacheWarmEnabled  bool   `envconfig:"CACHE_WARM_ENABLED" default:"true"`
	CacheWarmSchedule string `envconfig:"CACHE_WARM_SCHEDULE" default:"0 5 * * *"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"threadline-courier-bridge"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("swiftship.mock", c.SwiftShipUseMock),
		attribute.Bool("cache.redis", c.RedisEnabled),
	}
}
