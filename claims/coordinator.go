package claims

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-ingest/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	MetricClaimAcquired  = "ingest.claims.acquired"
	MetricClaimDuplicate = "ingest.claims.duplicate"
	MetricClaimDisabled  = "ingest.claims.disabled"
	MetricClaimFailed    = "ingest.claims.failed"
	MetricClaimDone      = "ingest.claims.done"

	DefaultTTL = 24 * time.Hour
)

type Coordinator struct {
	store   core.IdempotencyStore
	ttl     time.Duration
	logger  core.Logger
	metrics core.MetricsRecorder
	now     func() time.Time
	owner   func() string
}

type Option func(*Coordinator)

func WithLogger(logger core.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(c *Coordinator) {
		c.metrics = recorder
	}
}

// WithTTL sets the expiry used when ClaimOnce is called with a zero ttl.
func WithTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		c.ttl = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func WithOwnerFunc(owner func() string) Option {
	return func(c *Coordinator) {
		c.owner = owner
	}
}

// NewCoordinator builds a coordinator over store. A nil store disables
// deduplication: every claim succeeds and a warning is logged.
func NewCoordinator(store core.IdempotencyStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		ttl:     DefaultTTL,
		metrics: core.NopMetricsRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
		owner: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = glog.Ensure(c.logger)
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	return c
}

func (c *Coordinator) Enabled() bool {
	return c != nil && c.store != nil
}

// ClaimOnce reports whether the caller now owns key. It returns false without
// error when another invocation already claimed it.
func (c *Coordinator) ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if c == nil {
		return false, core.ClaimError(nil, "claims: coordinator is nil", nil)
	}
	if !c.Enabled() {
		core.Log(ctx, c.logger, "warn", "claims: idempotency store disabled, skipping deduplication", map[string]any{
			"claim_key": key,
		})
		core.RecordCounter(ctx, c.metrics, MetricClaimDisabled, 1, nil)
		return true, nil
	}
	if strings.TrimSpace(key) == "" {
		return false, core.ClaimError(nil, "claims: claim key is required", nil)
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	fields := core.ClaimFields{
		Status:    core.ClaimStatusProcessing,
		Owner:     c.owner(),
		CreatedAt: c.now(),
	}
	err := c.store.InsertIfAbsent(ctx, key, fields, ttl)
	switch {
	case err == nil:
		core.RecordCounter(ctx, c.metrics, MetricClaimAcquired, 1, nil)
		core.Log(ctx, c.logger, "debug", "claims: claim acquired", map[string]any{
			"claim_key": key,
			"owner":     fields.Owner,
		})
		return true, nil
	case errors.Is(err, core.ErrAlreadyExists):
		core.RecordCounter(ctx, c.metrics, MetricClaimDuplicate, 1, nil)
		core.Log(ctx, c.logger, "info", "claims: claim already held", map[string]any{
			"claim_key": key,
		})
		return false, nil
	default:
		core.RecordCounter(ctx, c.metrics, MetricClaimFailed, 1, map[string]string{"operation": "claim"})
		return false, core.ClaimError(err, "claims: claim write failed", map[string]any{
			"claim_key": key,
		})
	}
}

// MarkDone records successful completion of key. It is a no-op when the
// coordinator is disabled.
func (c *Coordinator) MarkDone(ctx context.Context, key string) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.store.UpdateStatus(ctx, key, core.ClaimStatusDone); err != nil {
		core.RecordCounter(ctx, c.metrics, MetricClaimFailed, 1, map[string]string{"operation": "mark_done"})
		return core.ClaimError(err, "claims: mark done failed", map[string]any{
			"claim_key": key,
		})
	}
	core.RecordCounter(ctx, c.metrics, MetricClaimDone, 1, nil)
	return nil
}
