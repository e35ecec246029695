package lendingtest

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// LogHandlerSpy is a slog.Handler that captures log records for testing.
type LogHandlerSpy struct {
	records     []slog.Record
	mu          sync.Mutex
	logToStdout bool
}

// NewLogHandlerSpy creates a LogHandlerSpy. With logToStdout the records are also printed as JSON,
// which helps when debugging a test.
func NewLogHandlerSpy(logToStdout bool) *LogHandlerSpy {
	return &LogHandlerSpy{logToStdout: logToStdout}
}

// NewLoggerSpy returns a *slog.Logger writing into a new LogHandlerSpy.
func NewLoggerSpy() (*slog.Logger, *LogHandlerSpy) {
	spy := NewLogHandlerSpy(false)
	return slog.New(spy), spy
}

func (s *LogHandlerSpy) Handle(ctx context.Context, record slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record.Clone())

	if s.logToStdout {
		_ = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}).Handle(ctx, record)
	}

	return nil
}

func (s *LogHandlerSpy) Enabled(context.Context, slog.Level) bool {
	return true
}

func (s *LogHandlerSpy) WithAttrs([]slog.Attr) slog.Handler {
	return s
}

func (s *LogHandlerSpy) WithGroup(string) slog.Handler {
	return s
}

// Records returns a copy of all captured records.
func (s *LogHandlerSpy) Records() []slog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]slog.Record, len(s.records))
	copy(records, s.records)

	return records
}

// Reset drops all captured records.
func (s *LogHandlerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = s.records[:0]
}

// SpyLogRecordMatcher narrows down the records of one level and message.
type SpyLogRecordMatcher struct {
	candidates []slog.Record
}

// HasLog starts a fluent chain over the records with level and message.
func (s *LogHandlerSpy) HasLog(level slog.Level, message string) *SpyLogRecordMatcher {
	var candidates []slog.Record

	for _, record := range s.Records() {
		if record.Level == level && record.Message == message {
			candidates = append(candidates, record)
		}
	}

	return &SpyLogRecordMatcher{candidates: candidates}
}

func (s *LogHandlerSpy) HasDebugLog(message string) *SpyLogRecordMatcher {
	return s.HasLog(slog.LevelDebug, message)
}

func (s *LogHandlerSpy) HasInfoLog(message string) *SpyLogRecordMatcher {
	return s.HasLog(slog.LevelInfo, message)
}

func (s *LogHandlerSpy) HasWarnLog(message string) *SpyLogRecordMatcher {
	return s.HasLog(slog.LevelWarn, message)
}

func (s *LogHandlerSpy) HasErrorLog(message string) *SpyLogRecordMatcher {
	return s.HasLog(slog.LevelError, message)
}

// WithAttr keeps the records having key with the given value, compared in its string form.
func (m *SpyLogRecordMatcher) WithAttr(key, value string) *SpyLogRecordMatcher {
	return m.filter(func(attr slog.Attr) bool {
		return attr.Key == key && attr.Value.Resolve().String() == value
	})
}

// WithAttrKey keeps the records having key.
func (m *SpyLogRecordMatcher) WithAttrKey(key string) *SpyLogRecordMatcher {
	return m.filter(func(attr slog.Attr) bool { return attr.Key == key })
}

// WithDurationMS keeps the records having a non-negative duration_ms.
func (m *SpyLogRecordMatcher) WithDurationMS() *SpyLogRecordMatcher {
	return m.filter(func(attr slog.Attr) bool {
		if attr.Key != "duration_ms" {
			return false
		}

		switch attr.Value.Kind() {
		case slog.KindFloat64:
			return attr.Value.Float64() >= 0
		case slog.KindInt64:
			return attr.Value.Int64() >= 0
		default:
			return false
		}
	})
}

func (m *SpyLogRecordMatcher) filter(match func(slog.Attr) bool) *SpyLogRecordMatcher {
	var kept []slog.Record

	for _, record := range m.candidates {
		found := false

		record.Attrs(func(attr slog.Attr) bool {
			found = match(attr)
			return !found
		})

		if found {
			kept = append(kept, record)
		}
	}

	return &SpyLogRecordMatcher{candidates: kept}
}

// Assert reports whether any record passed the chain.
func (m *SpyLogRecordMatcher) Assert() bool {
	return len(m.candidates) > 0
}

// Count returns how many records passed the chain.
func (m *SpyLogRecordMatcher) Count() int {
	return len(m.candidates)
}
