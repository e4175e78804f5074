package inbound

import (
	"context"

	"github.com/goliatone/go-ingest/adapters/gocommand"
	"github.com/goliatone/go-ingest/core"
	glog "github.com/goliatone/go-logger/glog"
)

const MetricEventsHandled = "ingest.events.handled"

// DefaultHandlers returns the built-in handlers for every allowed type. They
// log the event and count it.
func DefaultHandlers(logger core.Logger, metrics core.MetricsRecorder) map[string]Handler {
	logger = glog.Ensure(logger)
	return map[string]Handler{
		TypeUserRegistered: loggingHandler(logger, metrics, "inbound: user registered", "user_id"),
		TypeOrderCreated:   loggingHandler(logger, metrics, "inbound: order created", "order_id", "amount"),
	}
}

func loggingHandler(logger core.Logger, metrics core.MetricsRecorder, message string, keys ...string) Handler {
	return gocommand.Func(func(ctx context.Context, evt core.ApplicationEvent) error {
		fields := map[string]any{
			"type":   evt.Type(),
			"source": evt.Source,
		}
		for _, key := range keys {
			if value, ok := evt.Payload[key]; ok {
				fields[key] = value
			}
		}
		core.Log(ctx, logger, "info", message, fields)
		core.RecordCounter(ctx, metrics, MetricEventsHandled, 1, map[string]string{"type": evt.Type()})
		return nil
	})
}
