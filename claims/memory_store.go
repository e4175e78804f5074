package claims

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-ingest/core"
)

// MemoryStore is a process-local IdempotencyStore. Entries past their expiry
// are evicted lazily, which models the TTL sweep of a real store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]core.Claim
	Now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string]core.Claim{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryStore) InsertIfAbsent(_ context.Context, key string, fields core.ClaimFields, ttl time.Duration) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errEmptyKey
	}
	now := s.now()
	createdAt := fields.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	status := fields.Status
	if status == "" {
		status = core.ClaimStatusProcessing
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)
	if _, exists := s.entries[key]; exists {
		return core.ErrAlreadyExists
	}
	claim := core.Claim{
		Key:       key,
		Status:    status,
		Owner:     fields.Owner,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: now,
	}
	if ttl > 0 {
		claim.ExpiresAt = createdAt.UTC().Add(ttl)
	}
	s.entries[key] = claim
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, key string, status core.ClaimStatus) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)
	claim, exists := s.entries[strings.TrimSpace(key)]
	if !exists {
		return core.ErrClaimNotFound
	}
	claim.Status = status
	claim.UpdatedAt = now
	s.entries[claim.Key] = claim
	return nil
}

func (s *MemoryStore) GetClaim(_ context.Context, key string) (core.Claim, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)
	claim, exists := s.entries[strings.TrimSpace(key)]
	if !exists {
		return core.Claim{}, core.ErrClaimNotFound
	}
	return claim, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MemoryStore) evictExpiredLocked(now time.Time) {
	if s.entries == nil {
		s.entries = map[string]core.Claim{}
	}
	for key, claim := range s.entries {
		if claim.ExpiresAt.IsZero() {
			continue
		}
		if !now.Before(claim.ExpiresAt) {
			delete(s.entries, key)
		}
	}
}

var (
	_ core.IdempotencyStore = (*MemoryStore)(nil)
	_ core.ClaimReader      = (*MemoryStore)(nil)
)
