package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/goliatone/go-ingest/adapters/gologger"
	"github.com/goliatone/go-ingest/claims"
	"github.com/goliatone/go-ingest/core"
	"github.com/goliatone/go-ingest/inbound"
	"github.com/goliatone/go-ingest/objects"
)

const (
	LoggerName = "ingest"

	MetricInvocations        = "ingest.invocations"
	MetricInvocationDuration = "ingest.invocations.duration_ms"
)

type Handler struct {
	cfg        Config
	classifier *inbound.Classifier
	processor  *objects.Processor
	dispatcher *inbound.Dispatcher
	logger     core.Logger
	metrics    core.MetricsRecorder
	now        func() time.Time
}

type Option func(*handlerOptions)

type handlerOptions struct {
	store          core.IdempotencyStore
	reader         core.ObjectReader
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	handlers       map[string]inbound.Handler
	now            func() time.Time
}

// WithStore sets the idempotency store. Without one, deduplication is
// disabled and every claim succeeds.
func WithStore(store core.IdempotencyStore) Option {
	return func(o *handlerOptions) {
		o.store = store
	}
}

func WithObjectReader(reader core.ObjectReader) Option {
	return func(o *handlerOptions) {
		o.reader = reader
	}
}

func WithLogger(logger core.Logger) Option {
	return func(o *handlerOptions) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *handlerOptions) {
		o.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(o *handlerOptions) {
		o.metrics = recorder
	}
}

// WithHandlers replaces the default application event handlers.
func WithHandlers(handlers map[string]inbound.Handler) Option {
	return func(o *handlerOptions) {
		o.handlers = handlers
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *handlerOptions) {
		o.now = now
	}
}

// New validates cfg and builds the handler from injected collaborators. An
// object reader is required; the store may be nil.
func New(cfg Config, opts ...Option) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, core.ConfigError(err, "ingest: invalid configuration")
	}
	options := handlerOptions{
		metrics: core.NopMetricsRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	_, logger := gologger.Resolve(LoggerName, options.loggerProvider, options.logger)
	if options.metrics == nil {
		options.metrics = core.NopMetricsRecorder{}
	}
	if options.now == nil {
		options.now = func() time.Time { return time.Now().UTC() }
	}

	coordinator := claims.NewCoordinator(
		options.store,
		claims.WithLogger(logger),
		claims.WithMetricsRecorder(options.metrics),
		claims.WithTTL(cfg.Idempotency.TTL()),
		claims.WithClock(options.now),
	)
	processor, err := objects.NewProcessor(
		coordinator,
		options.reader,
		objects.WithLogger(logger),
		objects.WithMetricsRecorder(options.metrics),
		objects.WithClaimTTL(cfg.Idempotency.TTL()),
		objects.WithClock(options.now),
	)
	if err != nil {
		return nil, err
	}
	classifier, err := inbound.NewClassifier(nil, inbound.WithClassifierLogger(logger))
	if err != nil {
		return nil, err
	}
	handlers := options.handlers
	if handlers == nil {
		handlers = inbound.DefaultHandlers(logger, options.metrics)
	}
	dispatcher, err := inbound.NewDispatcher(
		handlers,
		inbound.WithDispatcherLogger(logger),
		inbound.WithDispatcherMetrics(options.metrics),
	)
	if err != nil {
		return nil, err
	}

	return &Handler{
		cfg:        cfg,
		classifier: classifier,
		processor:  processor,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    options.metrics,
		now:        options.now,
	}, nil
}

func (h *Handler) Config() Config {
	if h == nil {
		return Config{}
	}
	return h.cfg
}

// Invoke matches the Lambda handler signature. Failures are reported in the
// response, never as an invocation error, so the runtime does not retry
// client errors.
func (h *Handler) Invoke(ctx context.Context, raw json.RawMessage) (Response, error) {
	return h.Handle(ctx, raw), nil
}

// Handle processes one inbound event and renders the outcome.
func (h *Handler) Handle(ctx context.Context, raw []byte) Response {
	if h == nil {
		return core.ErrorResponse(core.InternalError(nil, "ingest: handler is nil"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := h.now()

	kind := "unclassified"
	response := h.handle(ctx, raw, &kind)

	tags := map[string]string{
		"kind":   kind,
		"status": http.StatusText(response.StatusCode),
	}
	core.RecordCounter(ctx, h.metrics, MetricInvocations, 1, tags)
	core.RecordHistogram(ctx, h.metrics, MetricInvocationDuration, float64(h.now().Sub(startedAt).Milliseconds()), tags)
	return response
}

func (h *Handler) handle(ctx context.Context, raw []byte, kind *string) Response {
	envelope, err := h.classifier.Classify(ctx, raw)
	if err != nil {
		return h.fail(ctx, err)
	}
	*kind = string(envelope.Kind)

	switch envelope.Kind {
	case core.KindStorageNotification:
		result, err := h.processor.Process(ctx, *envelope.Storage)
		if err != nil {
			return h.fail(ctx, err)
		}
		return Response{StatusCode: http.StatusOK, Body: result.Body()}
	case core.KindApplicationEvent:
		evt := *envelope.Application
		if err := h.dispatcher.Dispatch(ctx, evt); err != nil {
			return h.fail(ctx, err)
		}
		return Response{
			StatusCode: http.StatusOK,
			Body:       core.MarshalBody(applicationBody{Status: "processed", Type: evt.Type()}),
		}
	default:
		return h.fail(ctx, core.InternalError(nil, "ingest: unknown envelope kind "+string(envelope.Kind)))
	}
}

type applicationBody struct {
	Status string `json:"status"`
	Type   string `json:"type"`
}

func (h *Handler) fail(ctx context.Context, err error) Response {
	response := core.ErrorResponse(err)
	level := "error"
	if core.IsClientError(err) {
		level = "warn"
	}
	core.Log(ctx, h.logger, level, "ingest: event rejected", map[string]any{
		"status":    response.StatusCode,
		"text_code": core.TextCode(err),
		"error":     err.Error(),
	})
	return response
}
