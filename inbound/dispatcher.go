package inbound

import (
	"context"
	"fmt"
	"sort"
	"strings"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-ingest/adapters/gocommand"
	"github.com/goliatone/go-ingest/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	MetricEventsDispatched = "ingest.events.dispatched"
	MetricEventsFailed     = "ingest.events.failed"
)

// Handler consumes one validated application event.
type Handler = command.Commander[core.ApplicationEvent]

// Dispatcher routes application events by type. The registry is fixed at
// construction.
type Dispatcher struct {
	handlers map[string]Handler
	logger   core.Logger
	metrics  core.MetricsRecorder
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(logger core.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithDispatcherMetrics(recorder core.MetricsRecorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = recorder
	}
}

func NewDispatcher(handlers map[string]Handler, opts ...DispatcherOption) (*Dispatcher, error) {
	registry := make(map[string]Handler, len(handlers))
	for eventType, handler := range handlers {
		eventType = strings.TrimSpace(eventType)
		if eventType == "" {
			return nil, core.InternalError(nil, "inbound: handler registered with empty type")
		}
		if handler == nil {
			return nil, core.InternalError(nil, fmt.Sprintf("inbound: handler for %q is nil", eventType))
		}
		registry[eventType] = gocommand.Validated(handler)
	}
	d := &Dispatcher{
		handlers: registry,
		metrics:  core.NopMetricsRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.logger = glog.Ensure(d.logger)
	return d, nil
}

// Types returns the registered event types in sorted order.
func (d *Dispatcher) Types() []string {
	if d == nil {
		return nil
	}
	types := make([]string, 0, len(d.handlers))
	for eventType := range d.handlers {
		types = append(types, eventType)
	}
	sort.Strings(types)
	return types
}

// Dispatch runs the handler registered for evt. A type with no handler is a
// client error; a handler failure or panic is a server error.
func (d *Dispatcher) Dispatch(ctx context.Context, evt core.ApplicationEvent) (err error) {
	if d == nil {
		return core.InternalError(nil, "inbound: dispatcher is nil")
	}
	handler, ok := d.handlers[evt.Type()]
	if !ok {
		return core.ValidationError(
			"no handler registered for event type "+evt.Type(),
			"type",
			map[string]any{"condition": ConditionNoHandler, "type": evt.Type()},
		)
	}

	tags := map[string]string{"type": evt.Type()}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = core.HandlerError(
				fmt.Errorf("panic: %v", recovered),
				"inbound: handler panicked",
				map[string]any{"type": evt.Type()},
			)
		}
		if err != nil {
			core.RecordCounter(ctx, d.metrics, MetricEventsFailed, 1, tags)
			core.Log(ctx, d.logger, "error", "inbound: handler failed", map[string]any{
				"type":   evt.Type(),
				"source": evt.Source,
				"error":  err.Error(),
			})
			return
		}
		core.RecordCounter(ctx, d.metrics, MetricEventsDispatched, 1, tags)
	}()

	if handlerErr := handler.Execute(ctx, evt); handlerErr != nil {
		return core.HandlerError(handlerErr, "inbound: handler failed", map[string]any{"type": evt.Type()})
	}
	return nil
}
