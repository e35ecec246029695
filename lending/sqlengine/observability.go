package sqlengine

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	metricOperationDuration = "lending_store_operation_duration_seconds"
	metricOperationErrors   = "lending_store_errors_total"

	spanNamePrefix    = "lending.store."
	spanAttrOperation = "operation"
	spanAttrDialect   = "db.dialect"
	spanAttrErrorType = "error_type"
	spanAttrDuration  = "duration_ms"

	labelStatus = "status"

	operationUnitOfWork       = "unit_of_work"
	operationMigrate          = "migrate"
	operationCreateAuthor     = "create_author"
	operationAuthorByID       = "author_by_id"
	operationDeleteAuthor     = "delete_author"
	operationCreateBook       = "create_book"
	operationBookByID         = "book_by_id"
	operationBooksByAuthor    = "books_by_author"
	operationDeleteBook       = "delete_book"
	operationUpdateBook       = "update_book"
	operationBookByISBN       = "book_by_isbn"
	operationLoanByID         = "loan_by_id"
	operationLoansByBook      = "loans_by_book"
	operationLoansByMember    = "loans_by_member"
	operationActiveLoans      = "active_loans"
	operationLoans            = "loans"
	operationAllLoans         = "all_loans"
	operationAllBooks         = "all_books"
	operationActiveLoanCounts = "active_loan_counts"
	operationBooksWithAuthors = "books_with_authors"
	operationCatalogTotals    = "catalog_totals"
)

// operationObserver measures one public store operation and reports it once it finishes.
type operationObserver struct {
	s         Store
	ctx       context.Context
	operation string
	start     time.Time
	span      lending.SpanContext
}

func (s Store) startOperation(ctx context.Context, operation string) (context.Context, operationObserver) {
	var span lending.SpanContext

	if s.tracingCollector != nil {
		ctx, span = s.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, map[string]string{
			spanAttrOperation: operation,
			spanAttrDialect:   s.dialectName,
		})
	}

	return ctx, operationObserver{
		s:         s,
		ctx:       ctx,
		operation: operation,
		start:     time.Now(),
		span:      span,
	}
}

func (o operationObserver) finish(err error) {
	duration := time.Since(o.start)
	status := lending.StatusOf(err)

	o.s.recordDurationMetricsContext(o.ctx, duration, o.operation, status)

	if status == lending.StatusError {
		o.s.recordErrorMetricsContext(o.ctx, o.operation, lending.ErrorType(err))
	}

	if o.s.tracingCollector != nil && o.span != nil {
		attrs := map[string]string{
			spanAttrDuration: formatMilliseconds(duration),
		}

		if err != nil {
			attrs[spanAttrErrorType] = lending.ErrorType(err)
		}

		o.s.tracingCollector.FinishSpan(o.span, status, attrs)
	}
}

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (s Store) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	args := []any{logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery}

	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
	case s.logger != nil:
		s.logger.Debug(logMsgSQLExecuted+action, args...)
	}
}

// logOperation logs operational information at info level.
func (s Store) logOperation(ctx context.Context, action string, args ...any) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	case s.logger != nil:
		s.logger.Info(logMsgOperation+action, args...)
	}
}

func (s Store) logWarn(ctx context.Context, message string, args ...any) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.WarnContext(ctx, message, args...)
	case s.logger != nil:
		s.logger.Warn(message, args...)
	}
}

// logError logs failures at error level. Caller cancellation is not an error of the store.
func (s Store) logError(ctx context.Context, message string, err error, args ...any) {
	if ctx.Err() != nil {
		return
	}

	allArgs := append([]any{logAttrError, err.Error()}, args...)

	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.ErrorContext(ctx, message, allArgs...)
	case s.logger != nil:
		s.logger.Error(message, allArgs...)
	}
}

func (s Store) recordDurationMetricsContext(ctx context.Context, duration time.Duration, operation, status string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		labelStatus:       status,
	}

	if contextualCollector, ok := s.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricOperationDuration, duration, labels)
	} else {
		s.metricsCollector.RecordDuration(metricOperationDuration, duration, labels)
	}
}

func (s Store) recordErrorMetricsContext(ctx context.Context, operation, errorType string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		labelStatus:       lending.StatusError,
		spanAttrErrorType: errorType,
	}

	if contextualCollector, ok := s.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricOperationErrors, labels)
	} else {
		s.metricsCollector.IncrementCounter(metricOperationErrors, labels)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func formatMilliseconds(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Nanoseconds())/1e6, 'f', 2, 64)
}
