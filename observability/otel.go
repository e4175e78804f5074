// Package observability bridges core.MetricsRecorder onto OpenTelemetry
// instruments.
package observability

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const InstrumentationName = "github.com/goliatone/go-ingest"

// OtelRecorder creates instruments lazily and caches them by name. Instrument
// creation errors drop the measurement.
type OtelRecorder struct {
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// NewOtelRecorder records through meter, or through the global meter provider
// when meter is nil.
func NewOtelRecorder(meter metric.Meter) *OtelRecorder {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}
	return &OtelRecorder{
		meter:      meter,
		counters:   map[string]metric.Int64Counter{},
		histograms: map[string]metric.Float64Histogram{},
	}
}

func (r *OtelRecorder) IncCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	counter, ok := r.counter(name)
	if !ok {
		return
	}
	counter.Add(ensureContext(ctx), value, metric.WithAttributes(attributes(tags)...))
}

func (r *OtelRecorder) ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	histogram, ok := r.histogram(name)
	if !ok {
		return
	}
	histogram.Record(ensureContext(ctx), value, metric.WithAttributes(attributes(tags)...))
}

func (r *OtelRecorder) counter(name string) (metric.Int64Counter, bool) {
	name = strings.TrimSpace(name)
	if r == nil || name == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if counter, ok := r.counters[name]; ok {
		return counter, true
	}
	counter, err := r.meter.Int64Counter(name)
	if err != nil {
		return nil, false
	}
	r.counters[name] = counter
	return counter, true
}

func (r *OtelRecorder) histogram(name string) (metric.Float64Histogram, bool) {
	name = strings.TrimSpace(name)
	if r == nil || name == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if histogram, ok := r.histograms[name]; ok {
		return histogram, true
	}
	histogram, err := r.meter.Float64Histogram(name, metric.WithUnit(unitFor(name)))
	if err != nil {
		return nil, false
	}
	r.histograms[name] = histogram
	return histogram, true
}

func unitFor(name string) string {
	if strings.HasSuffix(name, "_ms") {
		return "ms"
	}
	return "1"
}

func attributes(tags map[string]string) []attribute.KeyValue {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, key := range keys {
		attrs = append(attrs, attribute.String(key, tags[key]))
	}
	return attrs
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
