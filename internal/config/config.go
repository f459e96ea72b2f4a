// Package config provides configuration management for the CDSE search tool.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the complete application configuration loaded from
// environment variables.
type Config struct {
	Catalog  CatalogConfig  `envPrefix:"CATALOG_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
	Transfer TransferConfig `envPrefix:"TRANSFER_"`
	Logging  LoggingConfig  `envPrefix:"LOG_"`
}

// CatalogConfig contains OData catalog client configuration.
type CatalogConfig struct {
	BaseURL       string        `env:"BASE_URL" envDefault:"https://catalogue.dataspace.copernicus.eu/odata/v1"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"60s"`
	PageCap       int           `env:"PAGE_CAP" envDefault:"1000"`
	MaxRetries    int           `env:"MAX_RETRIES" envDefault:"3"`
	RetryInterval time.Duration `env:"RETRY_INTERVAL" envDefault:"500ms"`
}

// AuthConfig contains identity-server configuration for the bearer token
// flow. Username and password are only needed for authenticated operations
// such as downloads; searches work anonymously.
type AuthConfig struct {
	TokenURL string `env:"TOKEN_URL" envDefault:"https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"`
	ClientID string `env:"CLIENT_ID" envDefault:"cdse-public"`
	Username string `env:"USERNAME" envDefault:""`
	Password string `env:"PASSWORD" envDefault:""`
}

// TransferConfig contains object-store configuration for product downloads.
type TransferConfig struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"https://eodata.dataspace.copernicus.eu"`
	Region    string `env:"REGION" envDefault:"default"`
	AccessKey string `env:"ACCESS_KEY" envDefault:""`
	SecretKey string `env:"SECRET_KEY" envDefault:""`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// Load parses configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	opts := env.Options{
		RequiredIfNoDef: true,
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog base URL is required")
	}

	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog timeout must be positive, got %s", c.Catalog.Timeout)
	}

	if c.Catalog.PageCap < 1 {
		return fmt.Errorf("catalog page cap must be at least 1, got %d", c.Catalog.PageCap)
	}

	if c.Catalog.MaxRetries < 0 {
		return fmt.Errorf("catalog max retries must not be negative, got %d", c.Catalog.MaxRetries)
	}

	if c.Catalog.RetryInterval <= 0 {
		return fmt.Errorf("catalog retry interval must be positive, got %s", c.Catalog.RetryInterval)
	}

	if c.Auth.TokenURL == "" {
		return fmt.Errorf("auth token URL is required")
	}

	if c.Transfer.Endpoint == "" {
		return fmt.Errorf("transfer endpoint is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", c.Logging.Format)
	}

	return nil
}
