package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
// Values are loaded from environment variables, falling back to an optional
// YAML file (CONFIG_FILE) and then to built-in defaults.
type Config struct {
	// Server
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// Fiscal backend
	BackendURL string `yaml:"backend_url"`

	// HTTP client. Zero means no client-side timeout.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// Resilience. Zero retries: failures surface immediately.
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// Cache
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	WizardTTL time.Duration `yaml:"wizard_ttl"`

	// Observability
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Session persistence
	SessionFile string `yaml:"session_file"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:           8090,
		LogLevel:       "info",
		BackendURL:     "http://localhost:8001",
		HTTPTimeout:    0,
		MaxRetries:     0,
		InitialBackoff: 100 * time.Millisecond,
		CacheTTL:       5 * time.Minute,
		WizardTTL:      30 * time.Minute,
		OTLPEndpoint:   "",
		SessionFile:    defaultSessionFile(),
	}
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	base := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, base); err != nil {
			return nil, err
		}
	}

	return &Config{
		Port:     getEnvInt("PORT", base.Port),
		LogLevel: getEnv("LOG_LEVEL", base.LogLevel),

		BackendURL: getEnv("BACKEND_URL", base.BackendURL),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", base.HTTPTimeout),

		MaxRetries:     getEnvInt("MAX_RETRIES", base.MaxRetries),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", base.InitialBackoff),

		CacheTTL:  getEnvDuration("CACHE_TTL", base.CacheTTL),
		WizardTTL: getEnvDuration("WIZARD_TTL", base.WizardTTL),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", base.OTLPEndpoint),

		SessionFile: getEnv("SESSION_FILE", base.SessionFile),
	}, nil
}

// loadYAML overlays the keys present in the file onto cfg.
func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fiscal-facil-session.json"
	}
	return filepath.Join(home, ".fiscal-facil", "session.json")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
