package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	ingest "github.com/goliatone/go-ingest"
	"github.com/goliatone/go-ingest/adapters/gologger"
	"github.com/goliatone/go-ingest/claims"
	"github.com/goliatone/go-ingest/core"
	"github.com/goliatone/go-ingest/objectstore"
	"github.com/goliatone/go-ingest/observability"
	sqlstore "github.com/goliatone/go-ingest/store/sql"
)

type invokeCmd struct {
	Event string `arg:"" type:"existingfile" help:"Path to a JSON event."`
	Root  string `default:"." type:"existingdir" help:"Directory holding <bucket>/<key> objects."`
}

func (c *invokeCmd) Run(g *globals) error {
	raw, err := os.ReadFile(c.Event)
	if err != nil {
		return fmt.Errorf("read event: %w", err)
	}
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	provider := gologger.NewProvider(gologger.Options{
		Service:     cfg.ServiceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Writer:      g.stderr,
	})

	store, closeStore, err := ingest.BuildStore(g.ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	reader, err := objectstore.NewDirReader(c.Root)
	if err != nil {
		return err
	}
	meters, err := observability.NewMeterProvider(g.ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(shutdownCtx, meters); err != nil {
			fmt.Fprintf(g.stderr, "ingest: %v\n", err)
		}
	}()
	handler, err := ingest.New(cfg,
		ingest.WithStore(store),
		ingest.WithObjectReader(reader),
		ingest.WithLoggerProvider(provider),
		ingest.WithMetricsRecorder(observability.NewOtelRecorder(nil)),
	)
	if err != nil {
		return err
	}

	ctx := lambdacontext.NewContext(g.ctx, &lambdacontext.LambdaContext{AwsRequestID: uuid.NewString()})
	response := handler.Handle(ctx, raw)
	encoded, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.stdout, string(encoded))
	return err
}

type claimKeyCmd struct {
	Bucket    string `arg:"" help:"Bucket name."`
	Key       string `arg:"" help:"Object key."`
	ETag      string `name:"etag" help:"Object ETag."`
	Sequencer string `help:"Notification sequencer, used when no ETag is given."`
}

func (c *claimKeyCmd) Run(g *globals) error {
	_, err := fmt.Fprintln(g.stdout, claims.BuildClaimKey(c.Bucket, c.Key, c.ETag, c.Sequencer))
	return err
}

type purgeCmd struct {
	Before time.Duration `default:"0s" help:"Also purge claims that expire within this window."`
}

func (c *purgeCmd) Run(g *globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if !cfg.Idempotency.Enabled() || cfg.Idempotency.Backend != core.BackendSQL {
		return fmt.Errorf("purge requires the sql idempotency backend")
	}
	store, closeStore, err := ingest.BuildStore(g.ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	sqlStore, ok := store.(*sqlstore.ClaimStore)
	if !ok {
		return fmt.Errorf("purge: unexpected store %T", store)
	}
	purged, err := sqlStore.PurgeExpired(g.ctx, time.Now().UTC().Add(c.Before))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(g.stdout, "purged %d expired claims from %s\n", purged, sqlStore.Table())
	return err
}

func loadConfig(g *globals) (core.Config, error) {
	runtime := core.Config{}
	if g.cli != nil {
		runtime.LogLevel = strings.ToUpper(strings.TrimSpace(g.cli.LogLevel))
		runtime.Idempotency.Backend = strings.ToLower(strings.TrimSpace(g.cli.Backend))
		runtime.Idempotency.Table = strings.TrimSpace(g.cli.Table)
	}
	return core.LoadConfig(g.ctx, core.NewCfgxConfigProvider(core.EnvLoader{}), core.GoOptionsResolver{}, runtime)
}
