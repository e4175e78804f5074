package core

import (
	"context"
	"testing"
	"time"
)

func envLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestDefaultConfig_IsValidAndDisabled(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate: %v", err)
	}
	if cfg.Idempotency.Enabled() {
		t.Fatalf("expected idempotency disabled without a table")
	}
	if cfg.Idempotency.TTL() != 24*time.Hour {
		t.Fatalf("expected default ttl of one day, got %s", cfg.Idempotency.TTL())
	}
	if cfg.Metrics.Enabled() {
		t.Fatalf("expected metrics export disabled without an endpoint")
	}
}

func TestConfigValidate_RejectsUnknownValues(t *testing.T) {
	cases := map[string]func(*Config){
		"environment": func(c *Config) { c.Environment = "qa" },
		"log level":   func(c *Config) { c.LogLevel = "VERBOSE" },
		"backend": func(c *Config) {
			c.Idempotency.Table = "claims"
			c.Idempotency.Backend = "etcd"
		},
		"sql dsn": func(c *Config) {
			c.Idempotency.Table = "claims"
			c.Idempotency.Backend = BackendSQL
		},
		"redis addr": func(c *Config) {
			c.Idempotency.Table = "claims"
			c.Idempotency.Backend = BackendRedis
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEnvLoader_MapsEnvironment(t *testing.T) {
	raw, err := EnvLoader{Lookup: envLookup(map[string]string{
		"SERVICE_NAME":            "ingest",
		"LOG_LEVEL":               "debug",
		"IDEMPOTENCY_TABLE":       "claims",
		"IDEMPOTENCY_TTL_SECONDS": "60",
		"IDEMPOTENCY_REDIS_DB":    "2",
		"S3_ENDPOINT":             "http://localhost:4566",
		"AWS_REGION":              " ",
	})}.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if raw["service_name"] != "ingest" {
		t.Fatalf("expected service name, got %#v", raw["service_name"])
	}
	if raw["log_level"] != "DEBUG" {
		t.Fatalf("expected upper-cased log level, got %#v", raw["log_level"])
	}
	idempotency, ok := raw["idempotency"].(map[string]any)
	if !ok {
		t.Fatalf("expected idempotency layer, got %#v", raw["idempotency"])
	}
	if idempotency["ttl_seconds"] != 60 {
		t.Fatalf("expected parsed ttl, got %#v", idempotency["ttl_seconds"])
	}
	objects := raw["objects"].(map[string]any)
	if _, ok := objects["region"]; ok {
		t.Fatalf("expected blank values to be ignored")
	}
}

func TestEnvLoader_RejectsNonNumericTTL(t *testing.T) {
	_, err := EnvLoader{Lookup: envLookup(map[string]string{
		"IDEMPOTENCY_TTL_SECONDS": "soon",
	})}.LoadRaw(context.Background())
	if err == nil {
		t.Fatalf("expected ttl parse error")
	}
}

func TestEnvLoader_MapsMetricsExport(t *testing.T) {
	raw, err := EnvLoader{Lookup: envLookup(map[string]string{
		"OTEL_EXPORTER_OTLP_ENDPOINT":     "collector:4317",
		"OTEL_EXPORTER_OTLP_INSECURE":     "true",
		"METRICS_EXPORT_INTERVAL_SECONDS": "10",
	})}.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	cfg, err := LoadConfig(context.Background(), NewCfgxConfigProvider(MapLoader{Values: raw}), GoOptionsResolver{}, Config{})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Metrics.Enabled() || cfg.Metrics.Endpoint != "collector:4317" {
		t.Fatalf("expected metrics endpoint, got %#v", cfg.Metrics)
	}
	if !cfg.Metrics.Insecure {
		t.Fatalf("expected insecure export")
	}
	if cfg.Metrics.Interval() != 10*time.Second {
		t.Fatalf("expected 10s interval, got %s", cfg.Metrics.Interval())
	}
}

func TestEnvLoader_RejectsNonBooleanInsecure(t *testing.T) {
	_, err := EnvLoader{Lookup: envLookup(map[string]string{
		"OTEL_EXPORTER_OTLP_INSECURE": "maybe",
	})}.LoadRaw(context.Background())
	if err == nil {
		t.Fatalf("expected insecure parse error")
	}
}

func TestLoadConfig_LayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(MapLoader{Values: map[string]any{
		"service_name": "from-env",
		"environment":  "staging",
		"idempotency": map[string]any{
			"table":   "claims",
			"backend": BackendMemory,
		},
	}})

	cfg, err := LoadConfig(context.Background(), provider, GoOptionsResolver{}, Config{ServiceName: "from-runtime"})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime override, got %q", cfg.ServiceName)
	}
	if cfg.Environment != "staging" {
		t.Fatalf("expected environment layer value, got %q", cfg.Environment)
	}
	if cfg.Idempotency.Table != "claims" || cfg.Idempotency.Backend != BackendMemory {
		t.Fatalf("unexpected idempotency config %#v", cfg.Idempotency)
	}
	if cfg.LogLevel != "INFO" {
		t.Fatalf("expected default log level, got %q", cfg.LogLevel)
	}
}

func TestLoadConfig_InvalidIsConfigError(t *testing.T) {
	provider := NewCfgxConfigProvider(MapLoader{Values: map[string]any{
		"environment": "qa",
	}})
	_, err := LoadConfig(context.Background(), provider, GoOptionsResolver{}, Config{})
	if err == nil {
		t.Fatalf("expected config error")
	}
	if got := TextCode(err); got != ErrorConfigInvalid {
		t.Fatalf("expected %s, got %s", ErrorConfigInvalid, got)
	}
}
