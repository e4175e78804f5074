package inbound

import (
	"context"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-ingest/core"
)

type captureLogger struct {
	mu       sync.Mutex
	infos    []string
	warnings []string
	errors   []string
}

func (l *captureLogger) Trace(string, ...any) {}
func (l *captureLogger) Debug(string, ...any) {}
func (l *captureLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}
func (l *captureLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}
func (l *captureLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}
func (l *captureLogger) Fatal(string, ...any) {}
func (l *captureLogger) WithContext(context.Context) core.Logger {
	return l
}

type captureMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (m *captureMetrics) IncCounter(_ context.Context, name string, value int64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]int64{}
	}
	m.counters[name] += value
}

func (m *captureMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (m *captureMetrics) count(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func requireEnvelope(t *testing.T, err error) *goerrors.Error {
	t.Helper()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T: %v", err, err)
	}
	return rich
}
