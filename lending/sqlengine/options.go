package sqlengine

import (
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Option defines a functional option for configuring the Store.
type Option func(*Store) error

// WithDialect selects the SQL dialect, DialectPostgres (the default) or DialectSQLite.
func WithDialect(dialect string) Option {
	return func(s *Store) error {
		switch dialect {
		case DialectPostgres, DialectSQLite:
			s.dialectName = dialect
			return nil
		default:
			return lending.ErrUnsupportedDialect
		}
	}
}

// WithTableNames sets the table names for authors, books and loans.
func WithTableNames(authors, books, loans string) Option {
	return func(s *Store) error {
		if authors == "" || books == "" || loans == "" {
			return lending.ErrEmptyTableName
		}

		s.tables = tableNames{authors: authors, books: books, loans: loans}

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: loans inserted and returned, schema migrations (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger lending.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger. When set, it is preferred over the plain logger.
func WithContextualLogger(logger lending.ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
// It receives operation durations and database errors labeled by operation.
func WithMetrics(collector lending.MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Store.
func WithTracing(collector lending.TracingCollector) Option {
	return func(s *Store) error {
		s.tracingCollector = collector
		return nil
	}
}
