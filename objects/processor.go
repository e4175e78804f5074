// Package objects processes object-created notifications: claim the object
// version, fetch it, summarize it and record completion.
package objects

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-ingest/claims"
	"github.com/goliatone/go-ingest/core"
	"github.com/goliatone/go-ingest/summary"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	MetricObjectsTotal    = "ingest.objects.total"
	MetricObjectsDuration = "ingest.objects.duration_ms"
	MetricMarkDoneFailed  = "ingest.claims.mark_done_failed"
	ReasonInvalidEvent    = "invalid_event"
	ReasonDuplicate       = "duplicate"
)

type State string

const (
	StateStart            State = "START"
	StateValidated        State = "VALIDATED"
	StateClaimed          State = "CLAIMED"
	StateFetched          State = "FETCHED"
	StateSummarized       State = "SUMMARIZED"
	StateDone             State = "DONE"
	StateSkippedInvalid   State = "SKIPPED_INVALID"
	StateSkippedDuplicate State = "SKIPPED_DUPLICATE"
)

type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeInvalid   Outcome = "invalid"
)

// Claimer is satisfied by *claims.Coordinator.
type Claimer interface {
	ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	MarkDone(ctx context.Context, key string) error
}

// Result is the terminal value of one Process call. Finalized is false when
// the summary was computed but the claim could not be marked done.
type Result struct {
	Outcome   Outcome
	State     State
	ClaimKey  string
	Summary   summary.Result
	Finalized bool
}

func (r Result) Skipped() bool {
	return r.Outcome != OutcomeProcessed
}

func (r Result) Reason() string {
	switch r.Outcome {
	case OutcomeInvalid:
		return ReasonInvalidEvent
	case OutcomeDuplicate:
		return ReasonDuplicate
	default:
		return ""
	}
}

type responseBody struct {
	Skipped     bool   `json:"skipped"`
	Reason      string `json:"reason,omitempty"`
	RowCount    *int   `json:"rowCount,omitempty"`
	TotalAmount *int64 `json:"totalAmount,omitempty"`
	ClaimKey    string `json:"claimKey,omitempty"`
}

// Body renders the outbound response body for r.
func (r Result) Body() string {
	body := responseBody{
		Skipped:  r.Skipped(),
		Reason:   r.Reason(),
		ClaimKey: r.ClaimKey,
	}
	if r.Outcome == OutcomeProcessed {
		rows := r.Summary.RowCount
		total := r.Summary.TotalAmount
		body.RowCount = &rows
		body.TotalAmount = &total
	}
	return core.MarshalBody(body)
}

type Processor struct {
	claimer Claimer
	reader  core.ObjectReader
	ttl     time.Duration
	logger  core.Logger
	metrics core.MetricsRecorder
	now     func() time.Time
}

type Option func(*Processor)

func WithLogger(logger core.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(p *Processor) {
		p.metrics = recorder
	}
}

func WithClaimTTL(ttl time.Duration) Option {
	return func(p *Processor) {
		p.ttl = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

func NewProcessor(claimer Claimer, reader core.ObjectReader, opts ...Option) (*Processor, error) {
	if claimer == nil {
		return nil, core.InternalError(nil, "objects: claimer is required")
	}
	if reader == nil {
		return nil, core.InternalError(nil, "objects: object reader is required")
	}
	p := &Processor{
		claimer: claimer,
		reader:  reader,
		ttl:     claims.DefaultTTL,
		metrics: core.NopMetricsRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = glog.Ensure(p.logger)
	return p, nil
}

// Process runs one notification through the claim protocol. Duplicates and
// invalid notifications are outcomes, not errors. The claim is always taken
// before the object is fetched, and a fetch failure leaves it PROCESSING.
func (p *Processor) Process(ctx context.Context, n core.StorageNotification) (Result, error) {
	startedAt := p.now()
	result, err := p.process(ctx, n)
	p.observe(ctx, startedAt, result, err)
	return result, err
}

func (p *Processor) process(ctx context.Context, n core.StorageNotification) (Result, error) {
	state := StateStart
	fields := map[string]any{"bucket": n.Bucket, "object_key": n.ObjectKey}

	if strings.TrimSpace(n.Bucket) == "" || strings.TrimSpace(n.ObjectKey) == "" {
		core.Log(ctx, p.logger, "warn", "objects: notification missing bucket or key", fields)
		return Result{Outcome: OutcomeInvalid, State: StateSkippedInvalid}, nil
	}
	state = p.advance(ctx, state, StateValidated, fields)

	key := claims.BuildClaimKey(n.Bucket, n.ObjectKey, n.ETag, n.Sequencer)
	fields["claim_key"] = key
	claimed, err := p.claimer.ClaimOnce(ctx, key, p.ttl)
	if err != nil {
		return Result{State: state, ClaimKey: key}, err
	}
	if !claimed {
		core.Log(ctx, p.logger, "info", "objects: duplicate notification skipped", fields)
		return Result{Outcome: OutcomeDuplicate, State: StateSkippedDuplicate, ClaimKey: key}, nil
	}
	state = p.advance(ctx, state, StateClaimed, fields)

	content, err := p.reader.Get(ctx, n.Bucket, n.ObjectKey)
	if err != nil {
		return Result{State: state, ClaimKey: key}, core.FetchError(err, "objects: fetch object failed", map[string]any{
			"bucket":     n.Bucket,
			"object_key": n.ObjectKey,
			"claim_key":  key,
		})
	}
	state = p.advance(ctx, state, StateFetched, fields)

	totals := summary.Summarize(ctx, string(content), p.logger)
	state = p.advance(ctx, state, StateSummarized, fields)

	result := Result{
		Outcome:   OutcomeProcessed,
		State:     state,
		ClaimKey:  key,
		Summary:   totals,
		Finalized: true,
	}
	if err := p.claimer.MarkDone(ctx, key); err != nil {
		result.Finalized = false
		core.RecordCounter(ctx, p.metrics, MetricMarkDoneFailed, 1, nil)
		core.Log(ctx, p.logger, "error", "objects: summary computed but claim not marked done", map[string]any{
			"claim_key": key,
			"error":     err.Error(),
		})
		return result, nil
	}
	result.State = p.advance(ctx, state, StateDone, fields)

	core.Log(ctx, p.logger, "info", "objects: processed object", map[string]any{
		"bucket":       n.Bucket,
		"object_key":   n.ObjectKey,
		"claim_key":    key,
		"rows":         totals.RowCount,
		"total_amount": totals.TotalAmount,
	})
	return result, nil
}

func (p *Processor) advance(ctx context.Context, from, to State, fields map[string]any) State {
	core.Log(ctx, p.logger, "debug", "objects: state "+string(from)+" -> "+string(to), fields)
	return to
}

func (p *Processor) observe(ctx context.Context, startedAt time.Time, result Result, err error) {
	outcome := string(result.Outcome)
	if err != nil {
		outcome = "failed"
	}
	tags := map[string]string{"outcome": outcome}
	core.RecordCounter(ctx, p.metrics, MetricObjectsTotal, 1, tags)
	core.RecordHistogram(ctx, p.metrics, MetricObjectsDuration, float64(p.now().Sub(startedAt).Milliseconds()), tags)
}

var _ Claimer = (*claims.Coordinator)(nil)
