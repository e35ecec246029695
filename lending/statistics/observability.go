package statistics

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	// QueryDurationMetric tracks statistics query duration.
	QueryDurationMetric = "statistics_query_duration_seconds"

	// QueryCallsMetric tracks statistics query calls by query type and status.
	QueryCallsMetric = "statistics_query_calls_total"

	logMsgQueryCompleted  = "statistics query completed"
	logMsgQueryFailed     = "statistics query failed"
	logMsgCacheHit        = "library summary served from cache"
	logMsgCacheLoadFailed = "library summary cache load failed"
	logMsgCacheSaveFailed = "library summary cache save failed"

	logAttrQueryType  = "query_type"
	logAttrStatus     = "status"
	logAttrError      = "error"
	logAttrErrorType  = "error_type"
	logAttrDurationMS = "duration_ms"

	spanNamePrefix = "lending.statistics.query."

	queryTypeMostBorrowedBooks   = "MostBorrowedBooks"
	queryTypeAverageLoanDuration = "AverageLoanDuration"
	queryTypeLoanCounts          = "LoanCounts"
	queryTypeLoanStatistics      = "LoanStatistics"
	queryTypeLibrarySummary      = "LibrarySummary"
)

type queryObserver struct {
	s         Service
	ctx       context.Context
	queryType string
	start     time.Time
	span      lending.SpanContext
}

func (s Service) startQuery(ctx context.Context, queryType string) (context.Context, queryObserver) {
	var span lending.SpanContext

	if s.tracingCollector != nil {
		ctx, span = s.tracingCollector.StartSpan(ctx, spanNamePrefix+queryType, map[string]string{logAttrQueryType: queryType})
	}

	return ctx, queryObserver{s: s, ctx: ctx, queryType: queryType, start: time.Now(), span: span}
}

func (o queryObserver) finish(err error) {
	duration := time.Since(o.start)
	status := lending.StatusOf(err)
	labels := map[string]string{logAttrQueryType: o.queryType, logAttrStatus: status}

	if collector := o.s.metricsCollector; collector != nil {
		if contextualCollector, ok := collector.(lending.ContextualMetricsCollector); ok {
			contextualCollector.RecordDurationContext(o.ctx, QueryDurationMetric, duration, labels)
			contextualCollector.IncrementCounterContext(o.ctx, QueryCallsMetric, labels)
		} else {
			collector.RecordDuration(QueryDurationMetric, duration, labels)
			collector.IncrementCounter(QueryCallsMetric, labels)
		}
	}

	if o.s.tracingCollector != nil && o.span != nil {
		attrs := map[string]string{}
		if err != nil {
			attrs[logAttrErrorType] = lending.ErrorType(err)
		}

		o.s.tracingCollector.FinishSpan(o.span, status, attrs)
	}

	durationMS := float64(duration.Microseconds()) / 1000

	if status == lending.StatusError {
		o.s.logError(o.ctx, logMsgQueryFailed,
			logAttrQueryType, o.queryType, logAttrError, err.Error(), logAttrErrorType, lending.ErrorType(err))

		return
	}

	o.s.logDebug(o.ctx, logMsgQueryCompleted,
		logAttrQueryType, o.queryType, logAttrStatus, status, logAttrDurationMS, durationMS)
}

func (s Service) logDebug(ctx context.Context, msg string, args ...any) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.DebugContext(ctx, msg, args...)
	case s.logger != nil:
		s.logger.Debug(msg, args...)
	}
}

func (s Service) logWarn(ctx context.Context, msg string, args ...any) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.WarnContext(ctx, msg, args...)
	case s.logger != nil:
		s.logger.Warn(msg, args...)
	}
}

func (s Service) logError(ctx context.Context, msg string, args ...any) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.ErrorContext(ctx, msg, args...)
	case s.logger != nil:
		s.logger.Error(msg, args...)
	}
}
