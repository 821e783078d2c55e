package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	ServiceName    = "pos-service"
	ServiceVersion = "0.1.0"

	// envPrefix makes every variable read as POS_<NAME>.
	envPrefix = "pos"
)

// Config is read from the environment.
type Config struct {
	HTTPAddr           string        `envconfig:"HTTP_ADDR" default:":8081"`
	DatabaseURL        string        `envconfig:"DATABASE_URL"`
	UserServiceURL     string        `envconfig:"USER_SERVICE_URL"`
	UserServiceTimeout time.Duration `envconfig:"USER_SERVICE_TIMEOUT" default:"3s"`
	OtelEndpoint       string        `envconfig:"OTEL_ENDPOINT"`
	OtelInsecure       bool          `envconfig:"OTEL_INSECURE" default:"false"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	Env                string        `envconfig:"ENV" default:"production"`
	DefaultPageSize    int           `envconfig:"DEFAULT_PAGE_SIZE" default:"10"`
	RecentSales        int           `envconfig:"RECENT_SALES" default:"5"`
}

// Development reports whether human-friendly logging should be used.
func (c *Config) Development() bool {
	return c.Env == "development"
}

func LoadConfig() (*Config, error) {
	var config Config
	if err := envconfig.Process(envPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if config.DefaultPageSize < 1 {
		return nil, fmt.Errorf("POS_DEFAULT_PAGE_SIZE must be positive, got %d", config.DefaultPageSize)
	}
	if config.RecentSales < 1 {
		return nil, fmt.Errorf("POS_RECENT_SALES must be positive, got %d", config.RecentSales)
	}
	if config.UserServiceTimeout <= 0 {
		return nil, fmt.Errorf("POS_USER_SERVICE_TIMEOUT must be positive")
	}

	return &config, nil
}
