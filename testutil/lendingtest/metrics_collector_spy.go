package lendingtest

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// SpyMetricRecord is one captured metrics call.
type SpyMetricRecord struct {
	Kind     string // duration, counter or value
	Metric   string
	Duration time.Duration
	Value    float64
	Labels   map[string]string
}

// MetricsCollectorSpy captures metrics calls for testing. It also implements the contextual interface.
type MetricsCollectorSpy struct {
	mu      sync.Mutex
	records []SpyMetricRecord
}

// NewMetricsCollectorSpy creates an empty MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

func (s *MetricsCollectorSpy) record(record SpyMetricRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Labels = maps.Clone(record.Labels)
	s.records = append(s.records, record)
}

func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: "duration", Metric: metric, Duration: duration, Labels: labels})
}

func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: "counter", Metric: metric, Value: 1, Labels: labels})
}

func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: "value", Metric: metric, Value: value, Labels: labels})
}

func (s *MetricsCollectorSpy) RecordDurationContext(_ context.Context, metric string, duration time.Duration, labels map[string]string) {
	s.RecordDuration(metric, duration, labels)
}

func (s *MetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.IncrementCounter(metric, labels)
}

func (s *MetricsCollectorSpy) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	s.RecordValue(metric, value, labels)
}

// Records returns a copy of all captured calls.
func (s *MetricsCollectorSpy) Records() []SpyMetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpyMetricRecord, len(s.records))
	copy(records, s.records)

	return records
}

// MetricRecordMatcher narrows down the captured calls of one metric.
type MetricRecordMatcher struct {
	candidates []SpyMetricRecord
}

func (s *MetricsCollectorSpy) has(kind, metric string) *MetricRecordMatcher {
	var candidates []SpyMetricRecord

	for _, record := range s.Records() {
		if record.Kind == kind && record.Metric == metric {
			candidates = append(candidates, record)
		}
	}

	return &MetricRecordMatcher{candidates: candidates}
}

func (s *MetricsCollectorSpy) HasDurationRecord(metric string) *MetricRecordMatcher {
	return s.has("duration", metric)
}

func (s *MetricsCollectorSpy) HasCounterRecord(metric string) *MetricRecordMatcher {
	return s.has("counter", metric)
}

func (s *MetricsCollectorSpy) HasValueRecord(metric string) *MetricRecordMatcher {
	return s.has("value", metric)
}

// WithLabel keeps the calls carrying label key with value.
func (m *MetricRecordMatcher) WithLabel(key, value string) *MetricRecordMatcher {
	var kept []SpyMetricRecord

	for _, record := range m.candidates {
		if record.Labels[key] == value {
			kept = append(kept, record)
		}
	}

	return &MetricRecordMatcher{candidates: kept}
}

func (m *MetricRecordMatcher) WithStatus(status string) *MetricRecordMatcher {
	return m.WithLabel("status", status)
}

func (m *MetricRecordMatcher) Assert() bool {
	return len(m.candidates) > 0
}

func (m *MetricRecordMatcher) Count() int {
	return len(m.candidates)
}

var _ lending.ContextualMetricsCollector = (*MetricsCollectorSpy)(nil)
