package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/goliatone/go-ingest/core"
	"github.com/uptrace/bun"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ClaimStore persists claims in a SQL table keyed by claim_key. The primary
// key is the conflict target of the conditional insert.
type ClaimStore struct {
	db    *bun.DB
	table string
	Now   func() time.Time
}

func NewClaimStore(db *bun.DB, table string) (*ClaimStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("sqlstore: invalid claim table name %q", table)
	}
	return &ClaimStore{
		db:    db,
		table: table,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// NewClaimStoreFromPersistence accepts a *bun.DB or any client exposing
// DB() *bun.DB, such as a go-persistence-bun client.
func NewClaimStoreFromPersistence(client any, table string) (*ClaimStore, error) {
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewClaimStore(db, table)
}

func (s *ClaimStore) Table() string {
	if s == nil {
		return ""
	}
	return s.table
}

func (s *ClaimStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: claim store is not configured")
	}
	_, err := s.db.NewCreateTable().
		Model((*claimRecord)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: create claim table %q: %w", s.table, err)
	}
	return nil
}

func (s *ClaimStore) InsertIfAbsent(ctx context.Context, key string, fields core.ClaimFields, ttl time.Duration) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: claim store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: claim key is required")
	}
	now := s.now()
	createdAt := fields.CreatedAt.UTC()
	if fields.CreatedAt.IsZero() {
		createdAt = now
	}
	status := fields.Status
	if status == "" {
		status = core.ClaimStatusProcessing
	}
	record := &claimRecord{
		ClaimKey:  key,
		Status:    string(status),
		Owner:     fields.Owner,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	if ttl > 0 {
		expiresAt := createdAt.Add(ttl)
		record.ExpiresAt = &expiresAt
	}

	result, err := s.db.NewInsert().
		Model(record).
		ModelTableExpr("?", bun.Ident(s.table)).
		On("CONFLICT (claim_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrAlreadyExists
		}
		return fmt.Errorf("sqlstore: insert claim: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: insert claim rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrAlreadyExists
	}
	return nil
}

func (s *ClaimStore) UpdateStatus(ctx context.Context, key string, status core.ClaimStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: claim store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*claimRecord)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", s.now()).
		Where("claim_key = ?", strings.TrimSpace(key)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: update claim status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: update claim rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrClaimNotFound
	}
	return nil
}

func (s *ClaimStore) GetClaim(ctx context.Context, key string) (core.Claim, error) {
	if s == nil || s.db == nil {
		return core.Claim{}, fmt.Errorf("sqlstore: claim store is not configured")
	}
	record := &claimRecord{}
	err := s.db.NewSelect().
		Model(record).
		ModelTableExpr("? AS ic", bun.Ident(s.table)).
		Where("ic.claim_key = ?", strings.TrimSpace(key)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Claim{}, core.ErrClaimNotFound
		}
		return core.Claim{}, fmt.Errorf("sqlstore: get claim: %w", err)
	}
	return claimToDomain(record), nil
}

// PurgeExpired deletes claims whose expiry is at or before before. SQL has no
// native row TTL, so this is the only path by which an abandoned claim can be
// processed again.
func (s *ClaimStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: claim store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*claimRecord)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: purge expired claims: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: purge rows affected: %w", err)
	}
	return affected, nil
}

func (s *ClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func claimToDomain(record *claimRecord) core.Claim {
	if record == nil {
		return core.Claim{}
	}
	claim := core.Claim{
		Key:       record.ClaimKey,
		Status:    core.ClaimStatus(record.Status),
		Owner:     record.Owner,
		CreatedAt: record.CreatedAt.UTC(),
		UpdatedAt: record.UpdatedAt.UTC(),
	}
	if record.ExpiresAt != nil {
		claim.ExpiresAt = record.ExpiresAt.UTC()
	}
	return claim
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
