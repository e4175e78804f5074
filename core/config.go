package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendSQL      = "sql"
	BackendRedis    = "redis"
	BackendMemory   = "memory"

	DefaultServiceName            = "event-driven-service"
	DefaultTTLSeconds             = 86400
	DefaultMetricsIntervalSeconds = 60
)

var (
	allowedEnvironments = []string{"dev", "staging", "prod"}
	allowedLogLevels    = []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}
	allowedBackends     = []string{BackendDynamoDB, BackendSQL, BackendRedis, BackendMemory}
	allowedSQLDrivers   = []string{"sqlite3", "postgres"}
)

type SQLConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr" mapstructure:"addr"`
	Password string `koanf:"password" mapstructure:"password"`
	DB       int    `koanf:"db" mapstructure:"db"`
}

// IdempotencyConfig selects the claim store. An empty Table disables
// deduplication entirely.
type IdempotencyConfig struct {
	Table          string      `koanf:"table" mapstructure:"table"`
	Backend        string      `koanf:"backend" mapstructure:"backend"`
	TTLSeconds     int         `koanf:"ttl_seconds" mapstructure:"ttl_seconds"`
	DynamoEndpoint string      `koanf:"dynamo_endpoint" mapstructure:"dynamo_endpoint"`
	SQL            SQLConfig   `koanf:"sql" mapstructure:"sql"`
	Redis          RedisConfig `koanf:"redis" mapstructure:"redis"`
}

func (c IdempotencyConfig) Enabled() bool {
	return strings.TrimSpace(c.Table) != ""
}

func (c IdempotencyConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return time.Duration(DefaultTTLSeconds) * time.Second
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

type ObjectsConfig struct {
	Region       string `koanf:"region" mapstructure:"region"`
	Endpoint     string `koanf:"endpoint" mapstructure:"endpoint"`
	UsePathStyle bool   `koanf:"use_path_style" mapstructure:"use_path_style"`
}

// MetricsConfig controls OTLP metric export. An empty Endpoint disables
// export and metrics go to the global no-op provider.
type MetricsConfig struct {
	Endpoint        string `koanf:"endpoint" mapstructure:"endpoint"`
	Insecure        bool   `koanf:"insecure" mapstructure:"insecure"`
	IntervalSeconds int    `koanf:"interval_seconds" mapstructure:"interval_seconds"`
}

func (c MetricsConfig) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

func (c MetricsConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return time.Duration(DefaultMetricsIntervalSeconds) * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

type Config struct {
	ServiceName string            `koanf:"service_name" mapstructure:"service_name"`
	Environment string            `koanf:"environment" mapstructure:"environment"`
	LogLevel    string            `koanf:"log_level" mapstructure:"log_level"`
	Idempotency IdempotencyConfig `koanf:"idempotency" mapstructure:"idempotency"`
	Objects     ObjectsConfig     `koanf:"objects" mapstructure:"objects"`
	Metrics     MetricsConfig     `koanf:"metrics" mapstructure:"metrics"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: DefaultServiceName,
		Environment: "dev",
		LogLevel:    "INFO",
		Idempotency: IdempotencyConfig{
			Backend:    BackendDynamoDB,
			TTLSeconds: DefaultTTLSeconds,
			SQL:        SQLConfig{Driver: "sqlite3"},
		},
		Metrics: MetricsConfig{IntervalSeconds: DefaultMetricsIntervalSeconds},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if !oneOf(c.Environment, allowedEnvironments) {
		return fmt.Errorf("core: environment %q must be one of %s", c.Environment, strings.Join(allowedEnvironments, ", "))
	}
	if !oneOf(strings.ToUpper(c.LogLevel), allowedLogLevels) {
		return fmt.Errorf("core: log_level %q must be one of %s", c.LogLevel, strings.Join(allowedLogLevels, ", "))
	}
	if c.Idempotency.TTLSeconds < 0 {
		return fmt.Errorf("core: idempotency.ttl_seconds must not be negative")
	}
	if c.Metrics.IntervalSeconds < 0 {
		return fmt.Errorf("core: metrics.interval_seconds must not be negative")
	}
	if !c.Idempotency.Enabled() {
		return nil
	}
	if !oneOf(c.Idempotency.Backend, allowedBackends) {
		return fmt.Errorf("core: idempotency.backend %q must be one of %s", c.Idempotency.Backend, strings.Join(allowedBackends, ", "))
	}
	switch c.Idempotency.Backend {
	case BackendSQL:
		if !oneOf(c.Idempotency.SQL.Driver, allowedSQLDrivers) {
			return fmt.Errorf("core: idempotency.sql.driver %q must be one of %s", c.Idempotency.SQL.Driver, strings.Join(allowedSQLDrivers, ", "))
		}
		if strings.TrimSpace(c.Idempotency.SQL.DSN) == "" {
			return fmt.Errorf("core: idempotency.sql.dsn is required for the sql backend")
		}
	case BackendRedis:
		if strings.TrimSpace(c.Idempotency.Redis.Addr) == "" {
			return fmt.Errorf("core: idempotency.redis.addr is required for the redis backend")
		}
	}
	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}
