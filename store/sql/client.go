package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-ingest/core"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type persistenceConfig struct {
	driver string
	server string
}

func (c persistenceConfig) GetDebug() bool {
	return false
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "go-ingest"
}

// Open connects to the configured database through go-persistence-bun.
// SQLite connections are limited to one so in-memory databases stay shared.
func Open(_ context.Context, cfg core.SQLConfig) (*persistence.Client, error) {
	driver := strings.TrimSpace(cfg.Driver)
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}

	var dialect schema.Dialect
	switch driver {
	case DriverSQLite:
		dialect = sqlitedialect.New()
	case DriverPostgres:
		dialect = pgdialect.New()
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{driver: driver, server: dsn}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: persistence client: %w", err)
	}
	return client, nil
}
