// Package redisstore keeps claims as JSON strings in Redis. Insert relies on
// SET NX with an expiry; the key's TTL is the claim's expiry.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-ingest/core"
)

const KeyPrefix = "ingest:claim:"

// updateStatusScript rewrites status and updated_at in place and keeps the
// remaining TTL. It returns 0 when the claim does not exist.
var updateStatusScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
    return 0
end
local claim = cjson.decode(raw)
claim["status"] = ARGV[1]
claim["updated_at"] = ARGV[2]
redis.call("SET", KEYS[1], cjson.encode(claim), "KEEPTTL")
return 1
`)

type claimValue struct {
	Key       string    `json:"claim_key"`
	Status    string    `json:"status"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ClaimStore struct {
	client    redis.UniversalClient
	namespace string
	Now       func() time.Time
}

// NewClaimStore scopes keys under namespace, normally the configured
// idempotency table id.
func NewClaimStore(client redis.UniversalClient, namespace string) (*ClaimStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: client is required")
	}
	return &ClaimStore{
		client:    client,
		namespace: strings.TrimSpace(namespace),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func NewClient(cfg core.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func (s *ClaimStore) InsertIfAbsent(ctx context.Context, key string, fields core.ClaimFields, ttl time.Duration) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("redisstore: claim key is required")
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
	value := claimValue{
		Key:       key,
		Status:    string(status),
		Owner:     fields.Owner,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	if ttl > 0 {
		value.ExpiresAt = createdAt.Add(ttl)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redisstore: encode claim: %w", err)
	}

	inserted, err := s.client.SetNX(ctx, s.redisKey(key), raw, ttl).Result()
	if err != nil {
		return fmt.Errorf("redisstore: set claim: %w", err)
	}
	if !inserted {
		return core.ErrAlreadyExists
	}
	return nil
}

func (s *ClaimStore) UpdateStatus(ctx context.Context, key string, status core.ClaimStatus) error {
	updated, err := updateStatusScript.Run(
		ctx,
		s.client,
		[]string{s.redisKey(strings.TrimSpace(key))},
		string(status),
		s.now().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("redisstore: update claim status: %w", err)
	}
	if updated == 0 {
		return core.ErrClaimNotFound
	}
	return nil
}

func (s *ClaimStore) GetClaim(ctx context.Context, key string) (core.Claim, error) {
	raw, err := s.client.Get(ctx, s.redisKey(strings.TrimSpace(key))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.Claim{}, core.ErrClaimNotFound
		}
		return core.Claim{}, fmt.Errorf("redisstore: get claim: %w", err)
	}
	var value claimValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return core.Claim{}, fmt.Errorf("redisstore: decode claim: %w", err)
	}
	return core.Claim{
		Key:       value.Key,
		Status:    core.ClaimStatus(value.Status),
		Owner:     value.Owner,
		CreatedAt: value.CreatedAt.UTC(),
		ExpiresAt: value.ExpiresAt.UTC(),
		UpdatedAt: value.UpdatedAt.UTC(),
	}, nil
}

func (s *ClaimStore) redisKey(key string) string {
	if s.namespace == "" {
		return KeyPrefix + key
	}
	return KeyPrefix + s.namespace + ":" + key
}

func (s *ClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
