package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	ingest "github.com/goliatone/go-ingest"
	"github.com/goliatone/go-ingest/adapters/gologger"
	"github.com/goliatone/go-ingest/core"
	"github.com/goliatone/go-ingest/observability"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "ingest-lambda: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := core.LoadConfig(ctx, core.NewCfgxConfigProvider(core.EnvLoader{}), core.GoOptionsResolver{}, core.Config{})
	if err != nil {
		return err
	}

	provider := gologger.NewProvider(gologger.Options{
		Service:     cfg.ServiceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	logger := provider.GetLogger(ingest.LoggerName)

	store, closeStore, err := ingest.BuildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	reader, err := ingest.BuildObjectReader(ctx, cfg)
	if err != nil {
		return err
	}

	meters, err := observability.NewMeterProvider(ctx, cfg)
	if err != nil {
		return err
	}
	shutdownMeters := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(shutdownCtx, meters); err != nil {
			logger.Warn("metrics shutdown failed", "error", err)
		}
	}
	defer shutdownMeters()

	handler, err := ingest.New(cfg,
		ingest.WithStore(store),
		ingest.WithObjectReader(reader),
		ingest.WithLoggerProvider(provider),
		ingest.WithMetricsRecorder(observability.NewOtelRecorder(nil)),
	)
	if err != nil {
		return err
	}

	// The execution environment freezes between invocations, so pending
	// measurements are flushed before each response is returned.
	invoke := func(ctx context.Context, raw json.RawMessage) (ingest.Response, error) {
		response, err := handler.Invoke(ctx, raw)
		if meters != nil {
			if flushErr := meters.ForceFlush(ctx); flushErr != nil {
				logger.Warn("metrics flush failed", "error", flushErr)
			}
		}
		return response, err
	}

	logger.Info("service started",
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
		"idempotency", cfg.Idempotency.Enabled(),
		"backend", cfg.Idempotency.Backend,
		"metrics_export", cfg.Metrics.Enabled(),
	)
	lambda.StartWithOptions(invoke, lambda.WithEnableSIGTERM(shutdownMeters))
	return nil
}
