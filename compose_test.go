package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-ingest/claims"
	"github.com/goliatone/go-ingest/core"
	sqlstore "github.com/goliatone/go-ingest/store/sql"
)

func TestBuildStoreDisabled(t *testing.T) {
	store, closeFn, err := BuildStore(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("build store: %v", err)
	}
	if store != nil {
		t.Fatalf("expected nil store when no table is configured, got %T", store)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestBuildStoreMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Idempotency.Table = "claims"
	cfg.Idempotency.Backend = core.BackendMemory
	store, _, err := BuildStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build store: %v", err)
	}
	if _, ok := store.(*claims.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestBuildStoreSQLite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Idempotency.Table = "compose_claims"
	cfg.Idempotency.Backend = core.BackendSQL
	cfg.Idempotency.SQL = core.SQLConfig{Driver: "sqlite3", DSN: "file:compose_test?mode=memory&cache=shared"}

	store, closeFn, err := BuildStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build store: %v", err)
	}
	defer func() { _ = closeFn() }()

	sqlStore, ok := store.(*sqlstore.ClaimStore)
	if !ok {
		t.Fatalf("expected sql store, got %T", store)
	}
	if sqlStore.Table() != "compose_claims" {
		t.Fatalf("expected configured table, got %q", sqlStore.Table())
	}
	ctx := context.Background()
	fields := core.ClaimFields{Status: core.ClaimStatusProcessing, Owner: "a", CreatedAt: time.Now().UTC()}
	if err := store.InsertIfAbsent(ctx, "k", fields, time.Hour); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.InsertIfAbsent(ctx, "k", fields, time.Hour); err == nil {
		t.Fatalf("expected second insert to report existing claim")
	}
}

func TestBuildStoreUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Idempotency.Table = "claims"
	cfg.Idempotency.Backend = "cassandra"
	if _, _, err := BuildStore(context.Background(), cfg); core.TextCode(err) != core.ErrorConfigInvalid {
		t.Fatalf("expected config error, got %v", err)
	}
}
