package config

import (
	"context"
	"time"
)

// Config represents the complete configuration for the AetherMart data plane.
// It provides type-safe access to all configuration values with validation.
type Config struct {
	Server     ServerConfig     `koanf:"server"     validate:"required"`
	Database   DatabaseConfig   `koanf:"database"   validate:"required"`
	Redis      RedisConfig      `koanf:"redis"`
	Ingest     IngestConfig     `koanf:"ingest"     validate:"required"`
	Quality    QualityConfig    `koanf:"quality"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	Runtime    RuntimeConfig    `koanf:"runtime"    validate:"required"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host    string        `koanf:"host"    validate:"required"        env:"SERVER_HOST"`
	Port    int           `koanf:"port"    validate:"min=1,max=65535" env:"SERVER_PORT"`
	Timeout time.Duration `koanf:"timeout"                            env:"SERVER_TIMEOUT"`
}

// DatabaseConfig contains database connection configuration.
type DatabaseConfig struct {
	ConnString  string          `koanf:"conn_string"  env:"DB_CONN_STRING"`
	Host        string          `koanf:"host"         env:"DB_HOST"`
	Port        string          `koanf:"port"         env:"DB_PORT"`
	User        string          `koanf:"user"         env:"DB_USER"`
	Password    SensitiveString `koanf:"password"     env:"DB_PASSWORD"     sensitive:"true"`
	DBName      string          `koanf:"name"         env:"DB_NAME"`
	SSLMode     string          `koanf:"ssl_mode"     env:"DB_SSL_MODE"`
	AutoMigrate bool            `koanf:"auto_migrate" env:"DB_AUTO_MIGRATE"`
	MaxConns    int             `koanf:"max_conns"    env:"DB_MAX_CONNS"    validate:"min=1"`
}

// RedisConfig contains the reporting cache configuration. A blank Addr
// disables caching entirely.
type RedisConfig struct {
	Addr     string          `koanf:"addr"      env:"REDIS_ADDR"`
	Password SensitiveString `koanf:"password"  env:"REDIS_PASSWORD" sensitive:"true"`
	DB       int             `koanf:"db"        env:"REDIS_DB"`
	CacheTTL time.Duration   `koanf:"cache_ttl" env:"REDIS_CACHE_TTL"`
}

// IngestConfig contains batch ingestion configuration.
type IngestConfig struct {
	Dir         string        `koanf:"dir"          env:"INGEST_DIR"`
	BatchSize   int           `koanf:"batch_size"   env:"INGEST_BATCH_SIZE"   validate:"min=1"`
	MaxAttempts int           `koanf:"max_attempts" env:"INGEST_MAX_ATTEMPTS" validate:"min=1"`
	RetryDelay  time.Duration `koanf:"retry_delay"  env:"INGEST_RETRY_DELAY"`
}

// QualityConfig contains the scheduled data-quality check configuration.
// Schedule is a cron expression; empty disables the scheduler.
type QualityConfig struct {
	Schedule     string `koanf:"schedule"      env:"QUALITY_SCHEDULE"`
	MinCustomers int64  `koanf:"min_customers" env:"QUALITY_MIN_CUSTOMERS"`
	MinProducts  int64  `koanf:"min_products"  env:"QUALITY_MIN_PRODUCTS"`
	MinOrders    int64  `koanf:"min_orders"    env:"QUALITY_MIN_ORDERS"`
}

// MonitoringConfig contains metrics endpoint configuration.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"MONITORING_PATH"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error disabled" env:"RUNTIME_LOG_LEVEL"`
	LogJSON     bool   `koanf:"log_json"                                                    env:"RUNTIME_LOG_JSON"`
}

// Service defines the configuration loading service interface.
type Service interface {
	// Load resolves configuration from defaults and environment variables.
	Load(ctx context.Context) (*Config, error)
	// Validate checks if the configuration meets all validation requirements.
	Validate(config *Config) error
}

// Default returns a Config with default values for development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    5901,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "",
			DBName:   "aethermart",
			SSLMode:  "disable",
			MaxConns: 20,
		},
		Redis: RedisConfig{
			CacheTTL: 30 * time.Second,
		},
		Ingest: IngestConfig{
			Dir:         "data",
			BatchSize:   500,
			MaxAttempts: 3,
			RetryDelay:  2 * time.Second,
		},
		Quality: QualityConfig{
			MinCustomers: 1,
			MinProducts:  1,
			MinOrders:    1,
		},
		Monitoring: MonitoringConfig{
			Enabled: false,
			Path:    "/metrics",
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
	}
}

// Load loads configuration using the default service.
// This is a convenience function for simple configuration loading.
func Load(ctx context.Context) (*Config, error) {
	return NewService().Load(ctx)
}
