// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidGeneratorURL is returned when GENERATOR_URL is not an absolute http(s) URL.
	ErrInvalidGeneratorURL = errors.New("config: GENERATOR_URL must be an absolute http(s) URL")
	// ErrInvalidStaticBaseURL is returned when STATIC_BASE_URL is set but not an absolute http(s) URL.
	ErrInvalidStaticBaseURL = errors.New("config: STATIC_BASE_URL must be an absolute http(s) URL")
	// ErrInvalidWorkers is returned when WORKERS is not positive.
	ErrInvalidWorkers = errors.New("config: WORKERS must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Generation service
	GeneratorURL  string        `env:"GENERATOR_URL, default=http://localhost:8000" json:"generator_url"`
	StaticBaseURL string        `env:"STATIC_BASE_URL" json:"static_base_url,omitempty"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT, default=10m" json:"http_timeout"`

	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	DownloadDir string `env:"DOWNLOAD_DIR, default=/tmp/vidiment" json:"download_dir"`

	// Submission workers
	Workers int `env:"WORKERS, default=4" json:"workers"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// StaticBase returns the URL artifact filenames are resolved against.
// It falls back to <GENERATOR_URL>/static/.
func (c *Config) StaticBase() string {
	base := c.StaticBaseURL
	if base == "" {
		base = strings.TrimRight(c.GeneratorURL, "/") + "/static/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	if !isHTTPURL(c.GeneratorURL) {
		return ErrInvalidGeneratorURL
	}
	if c.StaticBaseURL != "" && !isHTTPURL(c.StaticBaseURL) {
		return ErrInvalidStaticBaseURL
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// NewLogger creates a structured logger based on the configuration.
// Logs go to stderr so command output on stdout stays clean.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{GeneratorURL: %s, StaticBase: %s, HTTPTimeout: %s, Port: %d, DownloadDir: %s, Workers: %d, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, LogFormat: %s, LogLevel: %s}",
		c.GeneratorURL,
		c.StaticBase(),
		c.HTTPTimeout,
		c.Port,
		c.DownloadDir,
		c.Workers,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
