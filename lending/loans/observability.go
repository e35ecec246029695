package loans

import (
	"context"
	"strconv"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	// CommandHandlerDurationMetric tracks command execution duration, retries included.
	CommandHandlerDurationMetric = "loans_command_duration_seconds"

	// CommandHandlerCallsMetric tracks total command calls by command type and status.
	CommandHandlerCallsMetric = "loans_command_calls_total"

	// CommandHandlerRetriesMetric tracks retry attempts of a command's unit of work.
	//
	// Labels:
	//   - command_type: CreateLoan or ReturnLoan
	//   - attempt_number: which retry attempt
	//   - error_type: concurrency_conflict or store_unavailable
	CommandHandlerRetriesMetric = "loans_command_retries_total"

	// CommandHandlerRetryDelayMetric tracks the backoff delays before retries.
	CommandHandlerRetryDelayMetric = "loans_command_retry_delay_seconds"

	// CommandHandlerMaxRetriesReachedMetric tracks commands that failed after all attempts.
	CommandHandlerMaxRetriesReachedMetric = "loans_command_max_retries_reached_total"

	// QueryHandlerDurationMetric tracks loan query duration.
	QueryHandlerDurationMetric = "loans_query_duration_seconds"

	// QueryHandlerCallsMetric tracks total loan query calls by query type and status.
	QueryHandlerCallsMetric = "loans_query_calls_total"

	LogMsgCommandStarted   = "command handler started"
	LogMsgCommandCompleted = "command handler completed"
	LogMsgCommandRejected  = "command handler rejected"
	LogMsgCommandFailed    = "command handler failed"
	LogMsgQueryCompleted   = "query handler completed"
	LogMsgQueryFailed      = "query handler failed"

	logAttrCommandType   = "command_type"
	logAttrQueryType     = "query_type"
	logAttrErrorType     = "error_type"
	logAttrError         = "error"
	logAttrStatus        = "status"
	logAttrDurationMS    = "duration_ms"
	logAttrRetryAttempts = "retry_attempts"
	logAttrBookID        = "book_id"
	logAttrLoanID        = "loan_id"
	logAttrMemberName    = "member_name"
	logAttrResultCount   = "result_count"

	spanNameCommandPrefix = "lending.loans.command."
	spanNameQueryPrefix   = "lending.loans.query."

	queryTypeLoanByID          = "LoanByID"
	queryTypeLoansByBook       = "LoansByBook"
	queryTypeActiveLoansByBook = "ActiveLoansByBook"
	queryTypeLoansByMember     = "LoansByMember"
	queryTypeActiveLoans       = "ActiveLoans"
	queryTypeOverdueLoans      = "OverdueLoans"
	queryTypeLoans             = "Loans"
)

// handlerObserver reports one command or query once it finishes.
type handlerObserver struct {
	s              Service
	ctx            context.Context
	kind           string // command_type or query_type
	name           string
	durationMetric string
	callsMetric    string
	start          time.Time
	span           lending.SpanContext
}

func (s Service) startCommand(ctx context.Context, commandType string, attrs map[string]string) (context.Context, handlerObserver) {
	s.logDebug(ctx, LogMsgCommandStarted, logAttrCommandType, commandType)

	return s.startHandler(ctx, logAttrCommandType, commandType, spanNameCommandPrefix,
		CommandHandlerDurationMetric, CommandHandlerCallsMetric, attrs)
}

func (s Service) startQuery(ctx context.Context, queryType string) (context.Context, handlerObserver) {
	return s.startHandler(ctx, logAttrQueryType, queryType, spanNameQueryPrefix,
		QueryHandlerDurationMetric, QueryHandlerCallsMetric, nil)
}

func (s Service) startHandler(
	ctx context.Context,
	kind, name, spanPrefix, durationMetric, callsMetric string,
	attrs map[string]string,
) (context.Context, handlerObserver) {

	var span lending.SpanContext

	if s.tracingCollector != nil {
		spanAttrs := map[string]string{kind: name}
		for k, v := range attrs {
			spanAttrs[k] = v
		}

		ctx, span = s.tracingCollector.StartSpan(ctx, spanPrefix+name, spanAttrs)
	}

	return ctx, handlerObserver{
		s:              s,
		ctx:            ctx,
		kind:           kind,
		name:           name,
		durationMetric: durationMetric,
		callsMetric:    callsMetric,
		start:          time.Now(),
		span:           span,
	}
}

// finishCommand records metrics, closes the span and logs the outcome of a command.
func (o handlerObserver) finishCommand(err error, retryMetrics RetryMetrics, args ...any) {
	duration := time.Since(o.start)
	status := lending.StatusOf(err)

	o.record(duration, status, err, map[string]string{logAttrRetryAttempts: strconv.Itoa(retryMetrics.Attempts)})

	logArgs := append([]any{
		o.kind, o.name,
		logAttrStatus, status,
		logAttrDurationMS, toMilliseconds(duration),
		logAttrRetryAttempts, retryMetrics.Attempts,
	}, args...)

	switch status {
	case lending.StatusSuccess:
		o.s.logInfo(o.ctx, LogMsgCommandCompleted, logArgs...)
	case lending.StatusRejected, lending.StatusCanceled:
		o.s.logInfo(o.ctx, LogMsgCommandRejected, append(logArgs, logAttrErrorType, lending.ErrorType(err))...)
	default:
		o.s.logError(o.ctx, LogMsgCommandFailed, err, append(logArgs, logAttrErrorType, lending.ErrorType(err))...)
	}
}

// finishQuery records metrics, closes the span and logs the outcome of a query.
func (o handlerObserver) finishQuery(err error, resultCount int) {
	duration := time.Since(o.start)
	status := lending.StatusOf(err)

	o.record(duration, status, err, map[string]string{logAttrResultCount: strconv.Itoa(resultCount)})

	logArgs := []any{
		o.kind, o.name,
		logAttrStatus, status,
		logAttrDurationMS, toMilliseconds(duration),
	}

	if status == lending.StatusError {
		o.s.logError(o.ctx, LogMsgQueryFailed, err, append(logArgs, logAttrErrorType, lending.ErrorType(err))...)
		return
	}

	o.s.logDebug(o.ctx, LogMsgQueryCompleted, append(logArgs, logAttrResultCount, resultCount)...)
}

func (o handlerObserver) record(duration time.Duration, status string, err error, spanAttrs map[string]string) {
	labels := map[string]string{
		o.kind:        o.name,
		logAttrStatus: status,
	}

	if collector := o.s.metricsCollector; collector != nil {
		if contextualCollector, ok := collector.(lending.ContextualMetricsCollector); ok {
			contextualCollector.RecordDurationContext(o.ctx, o.durationMetric, duration, labels)
			contextualCollector.IncrementCounterContext(o.ctx, o.callsMetric, labels)
		} else {
			collector.RecordDuration(o.durationMetric, duration, labels)
			collector.IncrementCounter(o.callsMetric, labels)
		}
	}

	if o.s.tracingCollector != nil && o.span != nil {
		spanAttrs[logAttrDurationMS] = strconv.FormatFloat(toMilliseconds(duration), 'f', 3, 64)
		if err != nil {
			spanAttrs[logAttrErrorType] = lending.ErrorType(err)
		}

		o.s.tracingCollector.FinishSpan(o.span, status, spanAttrs)
	}
}

func (s Service) logDebug(ctx context.Context, msg string, args ...any) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.DebugContext(ctx, msg, args...)
	case s.logger != nil:
		s.logger.Debug(msg, args...)
	}
}

func (s Service) logInfo(ctx context.Context, msg string, args ...any) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.InfoContext(ctx, msg, args...)
	case s.logger != nil:
		s.logger.Info(msg, args...)
	}
}

func (s Service) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	case s.logger != nil:
		s.logger.Error(msg, allArgs...)
	}
}

func toMilliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
