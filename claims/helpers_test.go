package claims

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-ingest/core"
)

type captureLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *captureLogger) Trace(string, ...any) {}
func (l *captureLogger) Debug(string, ...any) {}
func (l *captureLogger) Info(string, ...any)  {}
func (l *captureLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}
func (l *captureLogger) Error(string, ...any) {}
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

type failingStore struct {
	insertErr error
	updateErr error
	inserts   int
}

func (s *failingStore) InsertIfAbsent(context.Context, string, core.ClaimFields, time.Duration) error {
	s.inserts++
	return s.insertErr
}

func (s *failingStore) UpdateStatus(context.Context, string, core.ClaimStatus) error {
	return s.updateErr
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
