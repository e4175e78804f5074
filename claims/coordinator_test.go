package claims

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-ingest/core"
)

func TestCoordinator_ConcurrentClaimsHaveSingleWinner(t *testing.T) {
	store := NewMemoryStore()
	metrics := &captureMetrics{}
	coordinator := NewCoordinator(store, WithMetricsRecorder(metrics))
	key := BuildClaimKey("bucket", "file.csv", "etag-1", "")

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := coordinator.ClaimOnce(context.Background(), key, time.Hour)
			if err != nil {
				t.Errorf("claim once: %v", err)
				return
			}
			results <- claimed
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for claimed := range results {
		if claimed {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
	if got := metrics.count(MetricClaimDuplicate); got != workers-1 {
		t.Fatalf("expected %d duplicate observations, got %d", workers-1, got)
	}
}

func TestCoordinator_DuplicateDoesNotOverwrite(t *testing.T) {
	store := NewMemoryStore()
	owners := []string{"first", "second"}
	next := 0
	coordinator := NewCoordinator(store, WithOwnerFunc(func() string {
		owner := owners[next]
		next++
		return owner
	}))
	ctx := context.Background()

	if claimed, err := coordinator.ClaimOnce(ctx, "k", time.Hour); err != nil || !claimed {
		t.Fatalf("expected first claim to succeed, got %v %v", claimed, err)
	}
	if err := coordinator.MarkDone(ctx, "k"); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if claimed, err := coordinator.ClaimOnce(ctx, "k", time.Hour); err != nil || claimed {
		t.Fatalf("expected second claim to be rejected, got %v %v", claimed, err)
	}

	claim, err := store.GetClaim(ctx, "k")
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if claim.Owner != "first" || claim.Status != core.ClaimStatusDone {
		t.Fatalf("expected original DONE claim to survive, got %#v", claim)
	}
}

func TestCoordinator_DisabledAlwaysClaimsAndWarns(t *testing.T) {
	logger := &captureLogger{}
	metrics := &captureMetrics{}
	coordinator := NewCoordinator(nil, WithLogger(logger), WithMetricsRecorder(metrics))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		claimed, err := coordinator.ClaimOnce(ctx, "same-key", time.Hour)
		if err != nil || !claimed {
			t.Fatalf("expected disabled coordinator to claim, got %v %v", claimed, err)
		}
	}
	if err := coordinator.MarkDone(ctx, "same-key"); err != nil {
		t.Fatalf("expected disabled mark done to be a no-op, got %v", err)
	}
	if len(logger.warnings) != 3 {
		t.Fatalf("expected one warning per claim, got %d", len(logger.warnings))
	}
	if got := metrics.count(MetricClaimDisabled); got != 3 {
		t.Fatalf("expected disabled counter 3, got %d", got)
	}
	if coordinator.Enabled() {
		t.Fatalf("expected coordinator to report disabled")
	}
}

func TestCoordinator_StoreFailureIsClaimError(t *testing.T) {
	store := &failingStore{insertErr: errors.New("throttled")}
	coordinator := NewCoordinator(store)

	claimed, err := coordinator.ClaimOnce(context.Background(), "k", time.Minute)
	if claimed {
		t.Fatalf("expected no claim on store failure")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %v", err)
	}
	if rich.TextCode != core.ErrorClaimFailed || rich.Code != 500 {
		t.Fatalf("expected claim failure envelope, got %q/%d", rich.TextCode, rich.Code)
	}
	if rich.Category != goerrors.CategoryOperation {
		t.Fatalf("expected operation category, got %q", rich.Category)
	}
}

func TestCoordinator_MarkDoneFailureIsClaimError(t *testing.T) {
	store := &failingStore{updateErr: core.ErrClaimNotFound}
	coordinator := NewCoordinator(store)

	err := coordinator.MarkDone(context.Background(), "k")
	if core.TextCode(err) != core.ErrorClaimFailed {
		t.Fatalf("expected claim failure, got %v", err)
	}
	if !errors.Is(err, core.ErrClaimNotFound) {
		t.Fatalf("expected store cause to be preserved")
	}
}

func TestCoordinator_EmptyKeyRejectedBeforeStore(t *testing.T) {
	store := &failingStore{}
	coordinator := NewCoordinator(store)

	if _, err := coordinator.ClaimOnce(context.Background(), "  ", time.Minute); err == nil {
		t.Fatalf("expected empty key error")
	}
	if store.inserts != 0 {
		t.Fatalf("expected no store call for empty key")
	}
}

func TestCoordinator_ZeroTTLUsesDefault(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.Now = clock.Now
	coordinator := NewCoordinator(store, WithClock(clock.Now), WithTTL(time.Hour))

	if _, err := coordinator.ClaimOnce(context.Background(), "k", 0); err != nil {
		t.Fatalf("claim once: %v", err)
	}
	claim, err := store.GetClaim(context.Background(), "k")
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if want := clock.now.Add(time.Hour); !claim.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, claim.ExpiresAt)
	}
}
