package postgresengine

import (
	"context"
	"math"
	"time"

	"github.com/eventfold/eventstore-go/eventstore"
)

const (
	logMsgBuildSelectQueryFailed   = "failed to build select query"
	logMsgBuildInsertQueryFailed   = "failed to build insert query"
	logMsgDBQueryFailed            = "database query execution failed"
	logMsgDBExecFailed             = "database execution failed during event append"
	logMsgCloseRowsFailed          = "failed to close database rows"
	logMsgScanRowFailed            = "failed to scan database row"
	logMsgBuildStorableEventFailed = "failed to build storable event from database row"
	logMsgRowsAffectedFailed       = "failed to get rows affected count"
	logMsgQueryCompleted           = "query completed"
	logMsgEventsAppended           = "events appended"
	logMsgConcurrencyConflict      = "concurrency conflict detected"
	logMsgSaveSnapshotFailed       = "failed to save snapshot"
	logMsgLoadSnapshotFailed       = "failed to load snapshot"
	logMsgSQLExecuted              = "executed sql for: "

	logAttrError           = "error"
	logAttrQuery           = "query"
	logAttrEventType       = "event_type"
	logAttrEventCount      = "event_count"
	logAttrDurationMS      = "duration_ms"
	logAttrAction          = "action"
	logAttrExpectedVersion = "expected_version"
	logAttrActualVersion   = "actual_version"

	logActionQuery        = "query"
	logActionAppend       = "append"
	logActionSaveSnapshot = "save_snapshot"
	logActionLoadSnapshot = "load_snapshot"

	metricQueryDuration        = "eventstore_query_duration_seconds"
	metricAppendDuration       = "eventstore_append_duration_seconds"
	metricEventsAppended       = "eventstore_events_appended_total"
	metricConcurrencyConflicts = "eventstore_concurrency_conflicts_total"
	metricErrors               = "eventstore_errors_total"

	labelAction           = "action"
	labelActionReadStream = "read_stream"
	labelActionReadGlobal = "read_global"
	labelActionQuery      = "query"
	labelActionAppend     = "append"
)

// logDebug routes to the contextual logger when configured, the plain
// logger otherwise; the other helpers do the same at their levels.
func (es EventStore) logDebug(ctx context.Context, msg string, args ...any) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.DebugContext(ctx, msg, args...)
	case es.logger != nil:
		es.logger.Debug(msg, args...)
	}
}

func (es EventStore) logInfo(ctx context.Context, msg string, args ...any) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.InfoContext(ctx, msg, args...)
	case es.logger != nil:
		es.logger.Info(msg, args...)
	}
}

func (es EventStore) logWarn(ctx context.Context, msg string, args ...any) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.WarnContext(ctx, msg, args...)
	case es.logger != nil:
		es.logger.Warn(msg, args...)
	}
}

func (es EventStore) logError(ctx context.Context, msg string, args ...any) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.ErrorContext(ctx, msg, args...)
	case es.logger != nil:
		es.logger.Error(msg, args...)
	}
}

// logQueryWithDuration logs SQL queries with execution time at debug level.
func (es EventStore) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	es.logDebug(ctx, logMsgSQLExecuted+action, logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery)
}

func (es EventStore) observeQueryCompleted(ctx context.Context, action string, eventCount int, duration time.Duration) {
	es.logInfo(ctx, logMsgQueryCompleted,
		logAttrAction, action,
		logAttrEventCount, eventCount,
		logAttrDurationMS, durationToMilliseconds(duration))

	es.recordDuration(ctx, metricQueryDuration, duration, map[string]string{labelAction: action})
}

func (es EventStore) observeEventsAppended(ctx context.Context, eventCount int, duration time.Duration) {
	es.logInfo(ctx, logMsgEventsAppended,
		logAttrEventCount, eventCount,
		logAttrDurationMS, durationToMilliseconds(duration))

	es.recordDuration(ctx, metricAppendDuration, duration, map[string]string{labelAction: labelActionAppend})

	if es.metricsCollector != nil {
		es.recordValue(ctx, metricEventsAppended, float64(eventCount), nil)
	}
}

func (es EventStore) observeConcurrencyConflict(
	ctx context.Context,
	expected eventstore.ExpectedVersion,
	actual eventstore.EventVersion,
) {

	es.logInfo(ctx, logMsgConcurrencyConflict,
		logAttrExpectedVersion, expected.String(),
		logAttrActualVersion, int64(actual))

	es.incrementCounter(ctx, metricConcurrencyConflicts, nil)
}

func (es EventStore) incrementErrorCounter(ctx context.Context, action string) {
	es.incrementCounter(ctx, metricErrors, map[string]string{labelAction: action})
}

// recordDuration prefers the context-aware collector methods when the
// configured collector supports them.
func (es EventStore) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if es.metricsCollector == nil {
		return
	}

	if contextual, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	es.metricsCollector.RecordDuration(metric, duration, labels)
}

func (es EventStore) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if es.metricsCollector == nil {
		return
	}

	if contextual, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	es.metricsCollector.IncrementCounter(metric, labels)
}

func (es EventStore) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if es.metricsCollector == nil {
		return
	}

	if contextual, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metric, value, labels)
		return
	}

	es.metricsCollector.RecordValue(metric, value, labels)
}

const (
	spanReadStream = "eventstore.read_stream"
	spanReadGlobal = "eventstore.read_global"
	spanAppend     = "eventstore.append"

	spanStatusOK    = "ok"
	spanStatusError = "error"
)

// startSpan opens a tracing span when a collector is configured; the
// returned SpanContext is nil otherwise and finishSpan ignores it.
func (es EventStore) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, eventstore.SpanContext) {
	if es.tracingCollector == nil {
		return ctx, nil
	}

	return es.tracingCollector.StartSpan(ctx, name, attrs)
}

func (es EventStore) finishSpan(span eventstore.SpanContext, err error) {
	if es.tracingCollector == nil || span == nil {
		return
	}

	status := spanStatusOK
	var attrs map[string]string
	if err != nil {
		status = spanStatusError
		attrs = map[string]string{logAttrError: err.Error()}
	}

	es.tracingCollector.FinishSpan(span, status, attrs)
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
