package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// EnvLoader reads the process environment into the raw config layout.
// Lookup defaults to os.LookupEnv.
type EnvLoader struct {
	Lookup func(key string) (string, bool)
}

func (l EnvLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		value, ok := lookup(key)
		if !ok {
			return "", false
		}
		value = strings.TrimSpace(value)
		return value, value != ""
	}

	raw := map[string]any{}
	if value, ok := get("SERVICE_NAME"); ok {
		raw["service_name"] = value
	}
	if value, ok := get("ENVIRONMENT"); ok {
		raw["environment"] = value
	}
	if value, ok := get("LOG_LEVEL"); ok {
		raw["log_level"] = strings.ToUpper(value)
	}

	idempotency := map[string]any{}
	if value, ok := get("IDEMPOTENCY_TABLE"); ok {
		idempotency["table"] = value
	}
	if value, ok := get("IDEMPOTENCY_BACKEND"); ok {
		idempotency["backend"] = strings.ToLower(value)
	}
	if value, ok := get("IDEMPOTENCY_TTL_SECONDS"); ok {
		ttl, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("core: IDEMPOTENCY_TTL_SECONDS %q is not an integer", value)
		}
		idempotency["ttl_seconds"] = ttl
	}
	if value, ok := get("DYNAMODB_ENDPOINT"); ok {
		idempotency["dynamo_endpoint"] = value
	}
	sqlLayer := map[string]any{}
	if value, ok := get("IDEMPOTENCY_SQL_DRIVER"); ok {
		sqlLayer["driver"] = value
	}
	if value, ok := get("IDEMPOTENCY_SQL_DSN"); ok {
		sqlLayer["dsn"] = value
	}
	if len(sqlLayer) > 0 {
		idempotency["sql"] = sqlLayer
	}
	redisLayer := map[string]any{}
	if value, ok := get("IDEMPOTENCY_REDIS_ADDR"); ok {
		redisLayer["addr"] = value
	}
	if value, ok := get("IDEMPOTENCY_REDIS_PASSWORD"); ok {
		redisLayer["password"] = value
	}
	if value, ok := get("IDEMPOTENCY_REDIS_DB"); ok {
		db, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("core: IDEMPOTENCY_REDIS_DB %q is not an integer", value)
		}
		redisLayer["db"] = db
	}
	if len(redisLayer) > 0 {
		idempotency["redis"] = redisLayer
	}
	if len(idempotency) > 0 {
		raw["idempotency"] = idempotency
	}

	objects := map[string]any{}
	if value, ok := get("AWS_REGION"); ok {
		objects["region"] = value
	}
	if value, ok := get("S3_ENDPOINT"); ok {
		objects["endpoint"] = value
	}
	if value, ok := get("S3_USE_PATH_STYLE"); ok {
		pathStyle, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("core: S3_USE_PATH_STYLE %q is not a boolean", value)
		}
		objects["use_path_style"] = pathStyle
	}
	if len(objects) > 0 {
		raw["objects"] = objects
	}

	metrics := map[string]any{}
	if value, ok := get("OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
		metrics["endpoint"] = value
	}
	if value, ok := get("OTEL_EXPORTER_OTLP_INSECURE"); ok {
		insecure, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("core: OTEL_EXPORTER_OTLP_INSECURE %q is not a boolean", value)
		}
		metrics["insecure"] = insecure
	}
	if value, ok := get("METRICS_EXPORT_INTERVAL_SECONDS"); ok {
		interval, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("core: METRICS_EXPORT_INTERVAL_SECONDS %q is not an integer", value)
		}
		metrics["interval_seconds"] = interval
	}
	if len(metrics) > 0 {
		raw["metrics"] = metrics
	}
	return raw, nil
}

// MapLoader serves a fixed raw layer, mostly for tests and embedding hosts.
type MapLoader struct {
	Values map[string]any
}

func (l MapLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = EnvLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("environment", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("environment"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// LoadConfig resolves defaults, the provider layer and runtime overrides in
// that order of precedence. Any failure is returned as a ConfigError.
func LoadConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(EnvLoader{})
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, ConfigError(err, "core: configuration load failed")
	}
	resolved, err := resolver.Resolve(defaults, loaded, runtime)
	if err != nil {
		return Config{}, ConfigError(err, "core: configuration invalid")
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	putString(layer, "service_name", cfg.ServiceName, includeZero)
	putString(layer, "environment", cfg.Environment, includeZero)
	putString(layer, "log_level", cfg.LogLevel, includeZero)

	idempotency := map[string]any{}
	putString(idempotency, "table", cfg.Idempotency.Table, includeZero)
	putString(idempotency, "backend", cfg.Idempotency.Backend, includeZero)
	putString(idempotency, "dynamo_endpoint", cfg.Idempotency.DynamoEndpoint, includeZero)
	if includeZero || cfg.Idempotency.TTLSeconds != 0 {
		idempotency["ttl_seconds"] = cfg.Idempotency.TTLSeconds
	}
	sqlLayer := map[string]any{}
	putString(sqlLayer, "driver", cfg.Idempotency.SQL.Driver, includeZero)
	putString(sqlLayer, "dsn", cfg.Idempotency.SQL.DSN, includeZero)
	if len(sqlLayer) > 0 {
		idempotency["sql"] = sqlLayer
	}
	redisLayer := map[string]any{}
	putString(redisLayer, "addr", cfg.Idempotency.Redis.Addr, includeZero)
	putString(redisLayer, "password", cfg.Idempotency.Redis.Password, includeZero)
	if includeZero || cfg.Idempotency.Redis.DB != 0 {
		redisLayer["db"] = cfg.Idempotency.Redis.DB
	}
	if len(redisLayer) > 0 {
		idempotency["redis"] = redisLayer
	}
	if len(idempotency) > 0 {
		layer["idempotency"] = idempotency
	}

	objects := map[string]any{}
	putString(objects, "region", cfg.Objects.Region, includeZero)
	putString(objects, "endpoint", cfg.Objects.Endpoint, includeZero)
	if includeZero || cfg.Objects.UsePathStyle {
		objects["use_path_style"] = cfg.Objects.UsePathStyle
	}
	if len(objects) > 0 {
		layer["objects"] = objects
	}

	metrics := map[string]any{}
	putString(metrics, "endpoint", cfg.Metrics.Endpoint, includeZero)
	if includeZero || cfg.Metrics.Insecure {
		metrics["insecure"] = cfg.Metrics.Insecure
	}
	if includeZero || cfg.Metrics.IntervalSeconds != 0 {
		metrics["interval_seconds"] = cfg.Metrics.IntervalSeconds
	}
	if len(metrics) > 0 {
		layer["metrics"] = metrics
	}
	return layer
}

func putString(layer map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		layer[key] = value
	}
}
