package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/goliatone/go-ingest/core"
)

// NewMeterProvider builds an OTLP/gRPC backed meter provider from cfg and
// installs it as the global provider. It returns nil when export is disabled.
// Callers must Shutdown the provider to flush pending measurements.
func NewMeterProvider(ctx context.Context, cfg core.Config) (*sdkmetric.MeterProvider, error) {
	if !cfg.Metrics.Enabled() {
		return nil, nil
	}
	res, err := Resource(cfg)
	if err != nil {
		return nil, fmt.Errorf("observability: resource: %w", err)
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Metrics.Endpoint),
	}
	if cfg.Metrics.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(cfg.Metrics.Interval()),
		)),
	)
	otel.SetMeterProvider(provider)
	return provider, nil
}

// Resource describes the service for exported telemetry.
func Resource(cfg core.Config) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
}

// Shutdown flushes and stops provider. A nil provider is a no-op.
func Shutdown(ctx context.Context, provider *sdkmetric.MeterProvider) error {
	if provider == nil {
		return nil
	}
	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("observability: meter provider shutdown: %w", err)
	}
	return nil
}
