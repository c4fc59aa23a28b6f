package postgresengine_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/eventstore-go/eventstore"
	"github.com/eventfold/eventstore-go/eventstore/postgresengine"
	"github.com/eventfold/eventstore-go/testutil/observe"
)

func newObservedEventStore(t *testing.T) (
	postgresengine.EventStore,
	sqlmock.Sqlmock,
	*sql.DB,
	*observe.LoggerSpy,
	*observe.MetricsCollectorSpy,
	*observe.TracingCollectorSpy,
) {

	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "error creating sqlmock in test setup")

	loggerSpy := observe.NewLoggerSpy()
	metricsSpy := observe.NewMetricsCollectorSpy()
	tracingSpy := observe.NewTracingCollectorSpy()

	es, err := postgresengine.NewEventStoreFromSQLDB(
		db,
		postgresengine.WithLogger(loggerSpy),
		postgresengine.WithMetrics(metricsSpy),
		postgresengine.WithTracing(tracingSpy),
	)
	require.NoError(t, err, "creating the event store failed")

	return es, mock, db, loggerSpy, metricsSpy, tracingSpy
}

func Test_Append_Observability_Records_Log_Metrics_And_Span(t *testing.T) {
	// setup
	es, mock, db, loggerSpy, metricsSpy, tracingSpy := newObservedEventStore(t)
	defer db.Close()

	streamKey := uuid.New()
	fakeClock := time.Unix(0, 0).UTC()

	// arrange
	mock.ExpectExec(insertIntoEvents).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// act
	appendErr := es.Append(
		context.Background(),
		eventstore.ExactVersion(0),
		streamKey,
		eventstore.StorableEvents{fixtureStorableEvent(t, eventTypeSomethingHappened, fakeClock)},
	)

	// assert
	require.NoError(t, appendErr, "error in appending the event")
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.NotEmpty(t, loggerSpy.RecordsWithMsg("events appended"))

	durations := metricsSpy.Durations()
	require.Len(t, durations, 1)
	assert.Equal(t, "eventstore_append_duration_seconds", durations[0].Metric)
	assert.Equal(t, "append", durations[0].Labels["action"])

	values := metricsSpy.Values()
	require.Len(t, values, 1)
	assert.Equal(t, "eventstore_events_appended_total", values[0].Metric)
	assert.InDelta(t, 1.0, values[0].Value, 0.0001)

	spans := tracingSpy.SpansWithName("eventstore.append")
	require.Len(t, spans, 1)
	assert.True(t, spans[0].Finished)
	assert.Equal(t, "ok", spans[0].Status)
}

func Test_Append_Observability_When_The_Stream_Moved_On(t *testing.T) {
	// setup
	es, mock, db, loggerSpy, metricsSpy, _ := newObservedEventStore(t)
	defer db.Close()

	streamKey := uuid.New()
	fakeClock := time.Unix(0, 0).UTC()

	// arrange
	mock.ExpectExec(insertIntoEvents).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectCurrentVersion).
		WillReturnRows(sqlmock.NewRows([]string{"current_version"}).AddRow(int64(5)))

	// act
	appendErr := es.Append(
		context.Background(),
		eventstore.ExactVersion(2),
		streamKey,
		eventstore.StorableEvents{fixtureStorableEvent(t, eventTypeSomethingHappened, fakeClock)},
	)

	// assert
	require.ErrorIs(t, appendErr, eventstore.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.NotEmpty(t, loggerSpy.RecordsWithMsg("concurrency conflict detected"))

	conflicts := metricsSpy.CountersFor("eventstore_concurrency_conflicts_total")
	assert.Len(t, conflicts, 1)
}

func Test_ReadStream_Observability_Records_Query_Duration_And_Span(t *testing.T) {
	// setup
	es, mock, db, loggerSpy, metricsSpy, tracingSpy := newObservedEventStore(t)
	defer db.Close()

	streamKey := uuid.New()
	fakeClock := time.Unix(0, 0).UTC()

	// arrange
	rows := sqlmock.NewRows(eventRowColumns()).
		AddRow(streamKey.String(), int64(0), eventTypeSomethingHappened, fakeClock, []byte(`{"value":1}`), []byte(`{}`), int64(1))

	mock.ExpectQuery(selectFromEvents).WillReturnRows(rows)

	// act
	_, readErr := es.ReadStream(context.Background(), eventstore.FromStart(streamKey))

	// assert
	require.NoError(t, readErr, "error in reading the stream")
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.NotEmpty(t, loggerSpy.RecordsWithMsg("query completed"))

	durations := metricsSpy.Durations()
	require.Len(t, durations, 1)
	assert.Equal(t, "eventstore_query_duration_seconds", durations[0].Metric)
	assert.Equal(t, "read_stream", durations[0].Labels["action"])

	spans := tracingSpy.SpansWithName("eventstore.read_stream")
	require.Len(t, spans, 1)
	assert.True(t, spans[0].Finished)
	assert.Equal(t, "ok", spans[0].Status)
}

func Test_ReadGlobal_Observability_When_The_Database_Query_Fails(t *testing.T) {
	// setup
	es, mock, db, loggerSpy, metricsSpy, tracingSpy := newObservedEventStore(t)
	defer db.Close()

	// arrange
	mock.ExpectQuery(selectFromEvents).WillReturnError(sql.ErrConnDone)

	// act
	_, readErr := es.ReadGlobal(context.Background(), eventstore.FromGlobalStart())

	// assert
	require.Error(t, readErr)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.NotEmpty(t, loggerSpy.RecordsWithMsg("database query execution failed"))

	errorCounters := metricsSpy.CountersFor("eventstore_errors_total")
	require.Len(t, errorCounters, 1)
	assert.Equal(t, "query", errorCounters[0].Labels["action"])

	spans := tracingSpy.SpansWithName("eventstore.read_global")
	require.Len(t, spans, 1)
	assert.True(t, spans[0].Finished)
	assert.Equal(t, "error", spans[0].Status)
}
