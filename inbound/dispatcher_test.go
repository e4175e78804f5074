package inbound

import (
	"context"
	"errors"
	"net/http"
	"testing"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-ingest/core"
)

func TestDispatchRoutesByType(t *testing.T) {
	var got []string
	handlers := map[string]Handler{
		TypeUserRegistered: handlerFunc(func(_ context.Context, evt core.ApplicationEvent) error {
			got = append(got, "user:"+evt.Source)
			return nil
		}),
		TypeOrderCreated: handlerFunc(func(_ context.Context, evt core.ApplicationEvent) error {
			got = append(got, "order:"+evt.Source)
			return nil
		}),
	}
	metrics := &captureMetrics{}
	dispatcher, err := NewDispatcher(handlers, WithDispatcherMetrics(metrics))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if err := dispatcher.Dispatch(context.Background(), core.ApplicationEvent{Source: "a", EventType: TypeOrderCreated}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := dispatcher.Dispatch(context.Background(), core.ApplicationEvent{Source: "b", EventType: TypeUserRegistered}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(got) != 2 || got[0] != "order:a" || got[1] != "user:b" {
		t.Fatalf("unexpected routing %v", got)
	}
	if metrics.count(MetricEventsDispatched) != 2 {
		t.Fatalf("expected two dispatched events, got %d", metrics.count(MetricEventsDispatched))
	}
}

func TestDispatchUnregisteredTypeIsClientError(t *testing.T) {
	dispatcher, err := NewDispatcher(map[string]Handler{
		TypeUserRegistered: handlerFunc(func(context.Context, core.ApplicationEvent) error { return nil }),
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	err = dispatcher.Dispatch(context.Background(), core.ApplicationEvent{Source: "s", EventType: TypeOrderCreated})
	if core.StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%v)", core.StatusCode(err), err)
	}
	rich := requireEnvelope(t, err)
	if rich.Metadata["condition"] != ConditionNoHandler {
		t.Fatalf("expected no_handler condition, got %#v", rich.Metadata)
	}
}

func TestDispatchHandlerFailureIsServerError(t *testing.T) {
	boom := errors.New("downstream unavailable")
	logger := &captureLogger{}
	metrics := &captureMetrics{}
	dispatcher, err := NewDispatcher(map[string]Handler{
		TypeOrderCreated: handlerFunc(func(context.Context, core.ApplicationEvent) error { return boom }),
	}, WithDispatcherLogger(logger), WithDispatcherMetrics(metrics))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	err = dispatcher.Dispatch(context.Background(), core.ApplicationEvent{Source: "s", EventType: TypeOrderCreated})
	if core.TextCode(err) != core.ErrorHandlerFailed || core.StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("expected handler failure, got %s/%d", core.TextCode(err), core.StatusCode(err))
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected cause to be preserved")
	}
	if metrics.count(MetricEventsFailed) != 1 || len(logger.errors) != 1 {
		t.Fatalf("expected failure to be counted and logged")
	}
}

func TestDispatchHandlerPanicIsServerError(t *testing.T) {
	dispatcher, err := NewDispatcher(map[string]Handler{
		TypeOrderCreated: handlerFunc(func(context.Context, core.ApplicationEvent) error { panic("nil map") }),
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	err = dispatcher.Dispatch(context.Background(), core.ApplicationEvent{Source: "s", EventType: TypeOrderCreated})
	if core.TextCode(err) != core.ErrorHandlerFailed {
		t.Fatalf("expected handler failure, got %v", err)
	}
}

func TestDispatcherRegistryIsImmutable(t *testing.T) {
	handlers := map[string]Handler{
		TypeUserRegistered: handlerFunc(func(context.Context, core.ApplicationEvent) error { return nil }),
	}
	dispatcher, err := NewDispatcher(handlers)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	handlers[TypeOrderCreated] = handlerFunc(func(context.Context, core.ApplicationEvent) error { return nil })
	if types := dispatcher.Types(); len(types) != 1 || types[0] != TypeUserRegistered {
		t.Fatalf("expected registry to ignore later writes, got %v", types)
	}
}

func TestNewDispatcherRejectsBadRegistrations(t *testing.T) {
	if _, err := NewDispatcher(map[string]Handler{TypeOrderCreated: nil}); err == nil {
		t.Fatalf("expected nil handler to be rejected")
	}
	ok := handlerFunc(func(context.Context, core.ApplicationEvent) error { return nil })
	if _, err := NewDispatcher(map[string]Handler{" ": ok}); err == nil {
		t.Fatalf("expected empty type to be rejected")
	}
}

func TestDefaultHandlersLogAndCount(t *testing.T) {
	logger := &captureLogger{}
	metrics := &captureMetrics{}
	dispatcher, err := NewDispatcher(DefaultHandlers(logger, metrics))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if types := dispatcher.Types(); len(types) != 2 {
		t.Fatalf("expected both default handlers, got %v", types)
	}
	evt := core.ApplicationEvent{Source: "test", EventType: TypeOrderCreated, Payload: map[string]any{"order_id": 123.0, "amount": 50.0}}
	if err := dispatcher.Dispatch(context.Background(), evt); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(logger.infos) != 1 || metrics.count(MetricEventsHandled) != 1 {
		t.Fatalf("expected one log line and one handled count, got %v / %d", logger.infos, metrics.count(MetricEventsHandled))
	}
}

func handlerFunc(fn func(context.Context, core.ApplicationEvent) error) Handler {
	return command.CommandFunc[core.ApplicationEvent](fn)
}
