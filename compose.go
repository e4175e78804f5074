package ingest

import (
	"context"
	"fmt"

	"github.com/goliatone/go-ingest/claims"
	"github.com/goliatone/go-ingest/core"
	"github.com/goliatone/go-ingest/objectstore"
	dynamostore "github.com/goliatone/go-ingest/store/dynamo"
	redisstore "github.com/goliatone/go-ingest/store/redis"
	sqlstore "github.com/goliatone/go-ingest/store/sql"
)

// CloseFunc releases resources held by a built store.
type CloseFunc func() error

func noopClose() error { return nil }

// BuildStore opens the idempotency backend named by cfg. A disabled
// configuration yields a nil store.
func BuildStore(ctx context.Context, cfg Config) (core.IdempotencyStore, CloseFunc, error) {
	idem := cfg.Idempotency
	if !idem.Enabled() {
		return nil, noopClose, nil
	}
	switch idem.Backend {
	case core.BackendMemory:
		return claims.NewMemoryStore(), noopClose, nil
	case core.BackendDynamoDB:
		client, err := dynamostore.NewClient(ctx, cfg.Objects.Region, idem.DynamoEndpoint)
		if err != nil {
			return nil, noopClose, core.ConfigError(err, "ingest: dynamodb client")
		}
		store, err := dynamostore.NewClaimStore(client, idem.Table)
		if err != nil {
			return nil, noopClose, core.ConfigError(err, "ingest: dynamodb claim store")
		}
		return store, noopClose, nil
	case core.BackendSQL:
		client, err := sqlstore.Open(ctx, idem.SQL)
		if err != nil {
			return nil, noopClose, core.ConfigError(err, "ingest: sql client")
		}
		store, err := sqlstore.NewClaimStoreFromPersistence(client, idem.Table)
		if err != nil {
			_ = client.Close()
			return nil, noopClose, core.ConfigError(err, "ingest: sql claim store")
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = client.Close()
			return nil, noopClose, core.InternalError(err, "ingest: sql claim schema")
		}
		return store, client.Close, nil
	case core.BackendRedis:
		client := redisstore.NewClient(idem.Redis)
		store, err := redisstore.NewClaimStore(client, idem.Table)
		if err != nil {
			_ = client.Close()
			return nil, noopClose, core.ConfigError(err, "ingest: redis claim store")
		}
		return store, client.Close, nil
	default:
		return nil, noopClose, core.ConfigError(
			fmt.Errorf("unknown backend %q", idem.Backend),
			"ingest: idempotency backend",
		)
	}
}

// BuildObjectReader returns an S3-backed reader for cfg.
func BuildObjectReader(ctx context.Context, cfg Config) (core.ObjectReader, error) {
	client, err := objectstore.NewS3Client(ctx, cfg.Objects)
	if err != nil {
		return nil, core.ConfigError(err, "ingest: s3 client")
	}
	reader, err := objectstore.NewS3Reader(client)
	if err != nil {
		return nil, core.ConfigError(err, "ingest: s3 reader")
	}
	return reader, nil
}
