package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are checked in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Config holds the application configuration.
type Config struct {
	Environment  string `koanf:"app_env"`
	ServerPort   int    `koanf:"port"`
	DatabasePath string `koanf:"database_path"`

	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	EventRetention   time.Duration `koanf:"event_retention"`
	HousekeepingCron string        `koanf:"housekeeping_cron"`
	StatsInterval    time.Duration `koanf:"stats_interval"`
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func defaultConfig() *Config {
	return &Config{
		Environment:       "development",
		ServerPort:        8080,
		DatabasePath:      "./recipes.db",
		JWTSecret:         "",
		TokenTTL:          24 * time.Hour,
		LogLevel:          "info",
		LogFormat:         "console",
		CORSOrigins:       []string{"http://localhost:3000"},
		RateLimitRequests: 20,
		RateLimitWindow:   time.Minute,
		EventRetention:    30 * 24 * time.Hour,
		HousekeepingCron:  "0 4 * * *",
		StatsInterval:     30 * time.Second,
	}
}

// Load loads configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// CORS_ORIGINS arrives from the environment as a comma separated string.
	if raw, ok := k.Get("cors_origins").(string); ok {
		if err := k.Set("cors_origins", splitList(raw)); err != nil {
			return nil, fmt.Errorf("failed to set cors_origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = "development-secret"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("port %d out of range", c.ServerPort)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must be set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret must be set in production")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	if c.RateLimitRequests < 0 {
		return fmt.Errorf("rate_limit_requests must not be negative")
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("stats_interval must be positive")
	}
	if _, err := cron.ParseStandard(c.HousekeepingCron); err != nil {
		return fmt.Errorf("invalid housekeeping_cron: %w", err)
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
