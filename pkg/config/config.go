package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/huddlehq/huddle/pkg/storage/postgres"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig `yaml:"server"`

	Postgres postgres.Config `yaml:"postgres"`

	Redis RedisConfig `yaml:"redis"`

	Observability ObservabilityConfig `yaml:"observability"`

	Invites InviteConfig `yaml:"invites"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	BaseURL         string        `yaml:"base_url"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// RedisConfig holds the read-through cache settings. Caching is skipped
// entirely when no URL is configured.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// InviteConfig holds invite maintenance settings
type InviteConfig struct {
	// CleanupSchedule is a cron expression for the expired-invite sweep.
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// LoadConfig loads configuration from an optional YAML file pointed at by
// HUDDLE_CONFIG_FILE, then overlays environment variables on top.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("HUDDLE_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			BaseURL:         "http://localhost:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Postgres: postgres.DefaultConfig(),
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: true,
		},
		Invites: InviteConfig{
			CleanupSchedule: "@hourly",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("HUDDLE_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("HUDDLE_PORT", cfg.Server.Port)
	cfg.Server.BaseURL = getEnv("HUDDLE_BASE_URL", cfg.Server.BaseURL)
	cfg.Server.ReadTimeout = getEnvDuration("HUDDLE_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("HUDDLE_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("HUDDLE_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("HUDDLE_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.HealthPort = getEnv("HUDDLE_HEALTH_PORT", cfg.Server.HealthPort)

	cfg.Postgres.URL = getEnv("HUDDLE_POSTGRES_URL", cfg.Postgres.URL)
	cfg.Postgres.MaxConns = getEnvInt("HUDDLE_POSTGRES_MAX_CONNS", cfg.Postgres.MaxConns)
	cfg.Postgres.MinConns = getEnvInt("HUDDLE_POSTGRES_MIN_CONNS", cfg.Postgres.MinConns)
	cfg.Postgres.Timeout = getEnvDuration("HUDDLE_POSTGRES_TIMEOUT", cfg.Postgres.Timeout)

	cfg.Redis.URL = getEnv("HUDDLE_REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Password = getEnv("HUDDLE_REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Observability.LogLevel = getEnv("HUDDLE_LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.MetricsEnabled = getEnvBool("HUDDLE_METRICS_ENABLED", cfg.Observability.MetricsEnabled)

	cfg.Invites.CleanupSchedule = getEnv("HUDDLE_INVITE_CLEANUP_SCHEDULE", cfg.Invites.CleanupSchedule)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Invites.CleanupSchedule == "" {
		return fmt.Errorf("invite cleanup schedule is required")
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
