// Package config loads service configuration from an optional YAML file
// overlaid with environment variables. Environment always wins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Database configuration
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration
	Redis RedisConfig `yaml:"redis"`

	// Gateway configuration (principal directory + SSO)
	Gateway GatewayConfig `yaml:"gateway"`

	// Notifications configuration
	Notifications NotificationsConfig `yaml:"notifications"`

	// Audit configuration
	Audit AuditConfig `yaml:"audit"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL          string        `yaml:"url"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnLifetime time.Duration `yaml:"conn_lifetime"`
}

// RedisConfig holds the tenant cache settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

// GatewayConfig holds principal directory and SSO client settings.
type GatewayConfig struct {
	DirectoryURL string `yaml:"directory_url"`
	SSOURL       string `yaml:"sso_url"`
	IssuerURL    string `yaml:"issuer_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// NotificationsConfig holds the notification sink settings.
type NotificationsConfig struct {
	URL string `yaml:"url"`
}

// AuditConfig holds audit retention settings.
type AuditConfig struct {
	RetentionDays int `yaml:"retention_days"`
	// CleanupSchedule is a cron expression for the retention sweep.
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// LoadConfig loads configuration: defaults, then the YAML file named by
// RBAC_CONFIG_FILE (if any), then environment overrides.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("RBAC_CONFIG_FILE"); path != "" {
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
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			ConnLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Audit: AuditConfig{
			RetentionDays:   90,
			CleanupSchedule: "0 3 * * *",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "insights-rbac",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

func applyEnv(cfg *Config) {
	setEnv(&cfg.Server.Host, "RBAC_HOST")
	setEnv(&cfg.Server.Port, "RBAC_PORT")
	setEnv(&cfg.Server.HealthPort, "RBAC_HEALTH_PORT")
	setEnvDuration(&cfg.Server.ReadTimeout, "RBAC_READ_TIMEOUT")
	setEnvDuration(&cfg.Server.WriteTimeout, "RBAC_WRITE_TIMEOUT")
	setEnvDuration(&cfg.Server.IdleTimeout, "RBAC_IDLE_TIMEOUT")
	setEnvDuration(&cfg.Server.ShutdownTimeout, "RBAC_SHUTDOWN_TIMEOUT")

	setEnv(&cfg.Database.URL, "RBAC_DATABASE_URL")
	setEnvInt(&cfg.Database.MaxOpenConns, "RBAC_DATABASE_MAX_OPEN_CONNS")
	setEnvInt(&cfg.Database.MaxIdleConns, "RBAC_DATABASE_MAX_IDLE_CONNS")
	setEnvDuration(&cfg.Database.ConnLifetime, "RBAC_DATABASE_CONN_LIFETIME")

	setEnvBool(&cfg.Redis.Enabled, "RBAC_REDIS_ENABLED")
	setEnv(&cfg.Redis.Addr, "RBAC_REDIS_ADDR")
	setEnv(&cfg.Redis.Password, "RBAC_REDIS_PASSWORD")

	setEnv(&cfg.Gateway.DirectoryURL, "RBAC_DIRECTORY_URL")
	setEnv(&cfg.Gateway.SSOURL, "RBAC_SSO_URL")
	setEnv(&cfg.Gateway.IssuerURL, "RBAC_ISSUER_URL")
	setEnv(&cfg.Gateway.ClientID, "RBAC_CLIENT_ID")
	setEnv(&cfg.Gateway.ClientSecret, "RBAC_CLIENT_SECRET")

	setEnv(&cfg.Notifications.URL, "RBAC_NOTIFICATIONS_URL")

	setEnvInt(&cfg.Audit.RetentionDays, "RBAC_AUDIT_RETENTION_DAYS")
	setEnv(&cfg.Audit.CleanupSchedule, "RBAC_AUDIT_CLEANUP_SCHEDULE")

	setEnv(&cfg.Observability.LogLevel, "RBAC_LOG_LEVEL")
	setEnvBool(&cfg.Observability.MetricsEnabled, "RBAC_METRICS_ENABLED")
	setEnvBool(&cfg.Observability.OTelEnabled, "RBAC_OTEL_ENABLED")
	setEnv(&cfg.Observability.OTelEndpoint, "RBAC_OTEL_ENDPOINT")
	setEnv(&cfg.Observability.OTelServiceName, "RBAC_OTEL_SERVICE_NAME")
	setEnv(&cfg.Observability.OTelServiceVersion, "RBAC_OTEL_SERVICE_VERSION")
	setEnvBool(&cfg.Observability.OTelInsecure, "RBAC_OTEL_INSECURE")
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
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention must be positive")
	}
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	return nil
}

func setEnv(dest *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
}

func setEnvBool(dest *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dest = strings.ToLower(value) == "true" || value == "1"
	}
}

func setEnvInt(dest *int, key string) {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			*dest = intVal
		}
	}
}

func setEnvDuration(dest *time.Duration, key string) {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			*dest = duration
		}
	}
}
