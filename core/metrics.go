package core

import (
	"context"
	"strings"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// RecordCounter forwards to recorder when set. Tags are copied so recorders
// may retain them.
func RecordCounter(ctx context.Context, recorder MetricsRecorder, name string, value int64, tags map[string]string) {
	if recorder == nil {
		return
	}
	recorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func RecordHistogram(ctx context.Context, recorder MetricsRecorder, name string, value float64, tags map[string]string) {
	if recorder == nil {
		return
	}
	recorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
