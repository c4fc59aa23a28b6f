package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/eventfold/eventstore-go/eventstore"
	"github.com/eventfold/eventstore-go/eventstore/postgresengine/internal/adapters"
)

const (
	defaultEventTableName = "events"

	colSequenceNumber = "sequence_number"
	colStreamKey      = "stream_key"
	colVersion        = "version"
	colEventType      = "event_type"
	colOccurredAt     = "occurred_at"
	colPayload        = "payload"
	colMetadata       = "metadata"

	cteCurrent          = "current"
	cteVals             = "vals"
	aliasCurrentVersion = "current_version"
	colOrdinal          = "ordinal"
	dialectPostgres     = "postgres"

	castUUID      = "?::uuid"
	castText      = "?::text"
	castTimestamp = "?::timestamp with time zone"
	castJsonb     = "?::jsonb"
	castBigint    = "?::bigint"

	pgUniqueViolationCode = "23505"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
	queryDuration     = time.Duration
)

// EventStore is the Postgres-backed implementation of the eventstore
// reader and writer contracts for versioned streams. Events live in one
// table keyed by (stream_key, version) with a store-wide bigserial
// sequence_number; the expected-version check and the append run as a
// single conditional INSERT so the fetch-check-append sequence is
// serialized by the database.
type EventStore struct {
	db                adapters.DBAdapter
	eventTableName    string
	snapshotTableName string
	logger            eventstore.Logger
	contextualLogger  eventstore.ContextualLogger
	metricsCollector  eventstore.MetricsCollector
	tracingCollector  eventstore.TracingCollector
}

type queryResultRow struct {
	streamKey      string
	version        int64
	eventType      string
	occurredAt     time.Time
	payload        []byte
	metadata       []byte
	sequenceNumber int64
}

// NewEventStoreFromPGXPool creates a new EventStore using a pgx pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (EventStore, error) {
	if db == nil {
		return EventStore{}, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapter(db), options...)
}

// NewEventStoreFromPGXPoolWithReplica creates a new EventStore using a
// primary pgx pool and a read replica pool. Reads are routed to the
// replica when the context asks for eventual consistency.
func NewEventStoreFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (EventStore, error) {
	if db == nil || replica == nil {
		return EventStore{}, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (EventStore, error) {
	if db == nil {
		return EventStore{}, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapter(db), options...)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (EventStore, error) {
	if db == nil {
		return EventStore{}, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapter(db), options...)
}

func newEventStore(db adapters.DBAdapter, options ...Option) (EventStore, error) {
	es := EventStore{
		db:                db,
		eventTableName:    defaultEventTableName,
		snapshotTableName: defaultSnapshotTableName,
	}

	for _, option := range options {
		if err := option(&es); err != nil {
			return EventStore{}, err
		}
	}

	return es, nil
}

// ReadStream retrieves one stream's events strictly after query.After in
// EventVersion order, as VersionedStreamEvents wrapping StorableEvents.
func (es EventStore) ReadStream(
	ctx context.Context,
	query eventstore.RangeQuery[uuid.UUID, eventstore.EventVersion],
) (_ []eventstore.VersionedStreamEvent[eventstore.StorableEvent], err error) {

	ctx, span := es.startSpan(ctx, spanReadStream, map[string]string{colStreamKey: query.Key.String()})
	defer func() { es.finishSpan(span, err) }()

	sqlQuery, buildErr := es.buildStreamSelectQuery(query)
	if buildErr != nil {
		es.logError(ctx, logMsgBuildSelectQueryFailed, logAttrError, buildErr.Error())
		return nil, buildErr
	}

	rows, duration, queryErr := es.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer es.closeRows(rows)

	events := make([]eventstore.VersionedStreamEvent[eventstore.StorableEvent], 0)
	scanErr := es.scanRows(ctx, rows, func(row queryResultRow) error {
		event, convertErr := es.storableEventFromRow(ctx, row)
		if convertErr != nil {
			return convertErr
		}

		key, parseErr := uuid.Parse(row.streamKey)
		if parseErr != nil {
			return errors.Join(eventstore.ErrScanningDBRowFailed, parseErr)
		}

		events = append(events, eventstore.NewVersionedStreamEvent(
			key, eventstore.EventVersion(row.version), event))

		return nil
	})
	if scanErr != nil {
		return nil, scanErr
	}

	es.observeQueryCompleted(ctx, labelActionReadStream, len(events), duration)

	return events, nil
}

// ReadGlobal retrieves the whole store's events strictly after query.After
// in SequenceNumber order, as GlobalStreamEvents wrapping StorableEvents.
func (es EventStore) ReadGlobal(
	ctx context.Context,
	query eventstore.RangeQuery[eventstore.GlobalKey, eventstore.SequenceNumber],
) (_ []eventstore.GlobalStreamEvent[eventstore.StorableEvent], err error) {

	ctx, span := es.startSpan(ctx, spanReadGlobal, nil)
	defer func() { es.finishSpan(span, err) }()

	sqlQuery, buildErr := es.buildGlobalSelectQuery(query)
	if buildErr != nil {
		es.logError(ctx, logMsgBuildSelectQueryFailed, logAttrError, buildErr.Error())
		return nil, buildErr
	}

	rows, duration, queryErr := es.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer es.closeRows(rows)

	events := make([]eventstore.GlobalStreamEvent[eventstore.StorableEvent], 0)
	scanErr := es.scanRows(ctx, rows, func(row queryResultRow) error {
		event, convertErr := es.storableEventFromRow(ctx, row)
		if convertErr != nil {
			return convertErr
		}

		key, parseErr := uuid.Parse(row.streamKey)
		if parseErr != nil {
			return errors.Join(eventstore.ErrScanningDBRowFailed, parseErr)
		}

		events = append(events, eventstore.NewGlobalStreamEvent(
			eventstore.SequenceNumber(row.sequenceNumber),
			eventstore.NewVersionedStreamEvent(key, eventstore.EventVersion(row.version), event)))

		return nil
	})
	if scanErr != nil {
		return nil, scanErr
	}

	es.observeQueryCompleted(ctx, labelActionReadGlobal, len(events), duration)

	return events, nil
}

// StreamReader returns the per-stream reader contract backed by this store.
func (es EventStore) StreamReader() eventstore.StreamReader[eventstore.StorableEvent] {
	return eventstore.ReaderFunc[uuid.UUID, eventstore.EventVersion, eventstore.VersionedStreamEvent[eventstore.StorableEvent]](es.ReadStream)
}

// GlobalReader returns the global-log reader contract backed by this store.
func (es EventStore) GlobalReader() eventstore.GlobalReader[eventstore.StorableEvent] {
	return eventstore.ReaderFunc[eventstore.GlobalKey, eventstore.SequenceNumber, eventstore.GlobalStreamEvent[eventstore.StorableEvent]](es.ReadGlobal)
}

// CurrentVersion returns the current version of the stream identified by
// key, or NoEventsVersion for a stream with no events.
func (es EventStore) CurrentVersion(ctx context.Context, key uuid.UUID) (eventstore.EventVersion, error) {
	builder := goqu.Dialect(dialectPostgres)

	selectStmt := builder.
		From(es.eventTableName).
		Select(goqu.COALESCE(goqu.MAX(colVersion), -1).As(aliasCurrentVersion)).
		Where(goqu.C(colStreamKey).Eq(key.String()))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return eventstore.NoEventsVersion, errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, _, queryErr := es.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		return eventstore.NoEventsVersion, errors.Join(eventstore.ErrQueryingVersionFailed, queryErr)
	}
	defer es.closeRows(rows)

	version := int64(eventstore.NoEventsVersion)
	if rows.Next() {
		if scanErr := rows.Scan(&version); scanErr != nil {
			return eventstore.NoEventsVersion, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
		}
	}

	return eventstore.EventVersion(version), nil
}

// Append appends all events atomically to the stream identified by key,
// respecting the expected-version precondition. The check and the insert
// run as one conditional statement, so concurrent writers are serialized by
// the database; a precondition failure writes nothing and returns a
// *eventstore.ConcurrencyError carrying the stream's version at that time.
func (es EventStore) Append(
	ctx context.Context,
	expected eventstore.ExpectedVersion,
	key uuid.UUID,
	events eventstore.StorableEvents,
) (err error) {

	if len(events) == 0 {
		return eventstore.ErrNoEventsToAppend
	}

	ctx, span := es.startSpan(ctx, spanAppend, map[string]string{colStreamKey: key.String()})
	defer func() { es.finishSpan(span, err) }()

	sqlQuery, buildErr := es.buildAppendQuery(expected, key, events)
	if buildErr != nil {
		es.logError(ctx, logMsgBuildInsertQueryFailed, logAttrError, buildErr.Error(), logAttrEventCount, len(events))
		return buildErr
	}

	rowsAffected, duration, execErr := es.executeAppendQuery(ctx, sqlQuery)
	if execErr != nil {
		if isUniqueViolation(execErr) {
			// Two AnyVersion writers raced the same version slot; the
			// unique constraint on (stream_key, version) kept the log
			// consistent, so report it as an ordinary conflict.
			return es.concurrencyConflict(ctx, expected, key)
		}

		return execErr
	}

	if rowsAffected < int64(len(events)) {
		return es.concurrencyConflict(ctx, expected, key)
	}

	es.observeEventsAppended(ctx, len(events), duration)

	return nil
}

// concurrencyConflict fetches the stream's actual version for the error
// payload. The fetch is outside the failed statement, so the reported
// version is a snapshot taken after the conflict, not at check time.
func (es EventStore) concurrencyConflict(
	ctx context.Context,
	expected eventstore.ExpectedVersion,
	key uuid.UUID,
) error {

	actual, versionErr := es.CurrentVersion(ctx, key)
	if versionErr != nil {
		return errors.Join(eventstore.ErrConcurrencyConflict, versionErr)
	}

	es.observeConcurrencyConflict(ctx, expected, actual)

	return eventstore.NewConcurrencyError(expected, actual)
}

func (es EventStore) buildStreamSelectQuery(
	query eventstore.RangeQuery[uuid.UUID, eventstore.EventVersion],
) (sqlQueryString, error) {

	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(colStreamKey, colVersion, colEventType, colOccurredAt, colPayload, colMetadata, colSequenceNumber).
		Where(
			goqu.C(colStreamKey).Eq(query.Key.String()),
			goqu.C(colVersion).Gt(int64(query.After)),
		).
		Order(goqu.I(colVersion).Asc())

	if query.Limit > 0 {
		selectStmt = selectStmt.Limit(uint(query.Limit))
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es EventStore) buildGlobalSelectQuery(
	query eventstore.RangeQuery[eventstore.GlobalKey, eventstore.SequenceNumber],
) (sqlQueryString, error) {

	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(colStreamKey, colVersion, colEventType, colOccurredAt, colPayload, colMetadata, colSequenceNumber).
		Where(goqu.C(colSequenceNumber).Gt(int64(query.After))).
		Order(goqu.I(colSequenceNumber).Asc())

	if query.Limit > 0 {
		selectStmt = selectStmt.Limit(uint(query.Limit))
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// buildAppendQuery builds the conditional INSERT for single or multiple events.
func (es EventStore) buildAppendQuery(
	expected eventstore.ExpectedVersion,
	key uuid.UUID,
	events eventstore.StorableEvents,
) (sqlQueryString, error) {

	switch len(events) {
	case 1:
		return es.buildInsertQueryForSingleEvent(expected, key, events[0])

	default:
		return es.buildInsertQueryForMultipleEvents(expected, key, events)
	}
}

// currentVersionCTE computes the stream's current version, -1 for a stream
// with no events.
func (es EventStore) currentVersionCTE(key uuid.UUID) *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(goqu.COALESCE(goqu.MAX(colVersion), -1).As(aliasCurrentVersion)).
		Where(goqu.C(colStreamKey).Eq(key.String()))
}

// expectedVersionGuard maps the precondition to a WHERE expression over the
// current-version CTE; nil means append unconditionally.
func (es EventStore) expectedVersionGuard(expected eventstore.ExpectedVersion) goqu.Expression {
	currentVersion := fmt.Sprintf("%s.%s", cteCurrent, aliasCurrentVersion)

	if !expected.HasCheck() {
		return nil
	}

	switch {
	case expected == eventstore.NoStream():
		return goqu.L(currentVersion + " = -1")

	case expected == eventstore.StreamExists():
		return goqu.L(currentVersion + " > -1")

	default:
		return goqu.L(currentVersion+" = ?", int64(expected.Version()))
	}
}

func (es EventStore) buildInsertQueryForSingleEvent(
	expected eventstore.ExpectedVersion,
	key uuid.UUID,
	event eventstore.StorableEvent,
) (sqlQueryString, error) {

	builder := goqu.Dialect(dialectPostgres)

	selectStmt := builder.
		From(cteCurrent).
		Select(
			goqu.L(castUUID, key.String()),
			goqu.L(fmt.Sprintf("%s.%s + 1", cteCurrent, aliasCurrentVersion)),
			goqu.L(castText, event.EventType),
			goqu.L(castTimestamp, event.OccurredAt),
			goqu.L(castJsonb, event.PayloadJSON),
			goqu.L(castJsonb, event.MetadataJSON),
		)

	if guard := es.expectedVersionGuard(expected); guard != nil {
		selectStmt = selectStmt.Where(guard)
	}

	insertStmt := builder.
		Insert(es.eventTableName).
		Cols(colStreamKey, colVersion, colEventType, colOccurredAt, colPayload, colMetadata).
		FromQuery(selectStmt).
		With(cteCurrent, es.currentVersionCTE(key))

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es EventStore) buildInsertQueryForMultipleEvents(
	expected eventstore.ExpectedVersion,
	key uuid.UUID,
	events eventstore.StorableEvents,
) (sqlQueryString, error) {

	builder := goqu.Dialect(dialectPostgres)

	// One SELECT per event carrying its 1-based ordinal; versions continue
	// from the current version by ordinal.
	unionStatements := make([]*goqu.SelectDataset, len(events))
	for i, event := range events {
		unionStatements[i] = builder.
			Select(
				goqu.L(castBigint, i+1).As(colOrdinal),
				goqu.L(castText, event.EventType).As(colEventType),
				goqu.L(castTimestamp, event.OccurredAt).As(colOccurredAt),
				goqu.L(castJsonb, event.PayloadJSON).As(colPayload),
				goqu.L(castJsonb, event.MetadataJSON).As(colMetadata),
			)
	}

	valsStmt := unionStatements[0]
	for i := 1; i < len(unionStatements); i++ {
		valsStmt = valsStmt.UnionAll(unionStatements[i])
	}

	selectStmt := builder.
		From(cteCurrent, cteVals).
		Select(
			goqu.L(castUUID, key.String()),
			goqu.L(fmt.Sprintf("%s.%s + %s.%s", cteCurrent, aliasCurrentVersion, cteVals, colOrdinal)),
			goqu.I(fmt.Sprintf("%s.%s", cteVals, colEventType)),
			goqu.I(fmt.Sprintf("%s.%s", cteVals, colOccurredAt)),
			goqu.I(fmt.Sprintf("%s.%s", cteVals, colPayload)),
			goqu.I(fmt.Sprintf("%s.%s", cteVals, colMetadata)),
		)

	if guard := es.expectedVersionGuard(expected); guard != nil {
		selectStmt = selectStmt.Where(guard)
	}

	insertStmt := builder.
		Insert(es.eventTableName).
		Cols(colStreamKey, colVersion, colEventType, colOccurredAt, colPayload, colMetadata).
		With(cteCurrent, es.currentVersionCTE(key)).
		With(cteVals, valsStmt).
		FromQuery(selectStmt)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// executeQuery executes the SQL query and returns rows with timing information.
func (es EventStore) executeQuery(ctx context.Context, sqlQuery string) (
	adapters.DBRows,
	queryDuration,
	error,
) {

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionQuery, duration)

	if queryErr != nil {
		es.logError(ctx, logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		es.incrementErrorCounter(ctx, labelActionQuery)

		return nil, duration, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}

	return rows, duration, nil
}

// executeAppendQuery executes the SQL append statement and returns rows affected and duration.
func (es EventStore) executeAppendQuery(ctx context.Context, sqlQuery string) (
	rowsAffectedInt64,
	queryDuration,
	error,
) {

	start := time.Now()
	result, execErr := es.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionAppend, duration)

	if execErr != nil {
		if !isUniqueViolation(execErr) {
			es.logError(ctx, logMsgDBExecFailed, logAttrError, execErr.Error(), logAttrQuery, sqlQuery)
			es.incrementErrorCounter(ctx, labelActionAppend)
		}

		return 0, duration, errors.Join(eventstore.ErrAppendingEventFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		es.logError(ctx, logMsgRowsAffectedFailed, logAttrError, rowsAffectedErr.Error())

		return 0, duration, errors.Join(eventstore.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, duration, nil
}

// scanRows walks the result set and hands each scanned row to consume.
func (es EventStore) scanRows(ctx context.Context, rows adapters.DBRows, consume func(row queryResultRow) error) error {
	row := queryResultRow{}

	for rows.Next() {
		scanErr := rows.Scan(
			&row.streamKey, &row.version, &row.eventType,
			&row.occurredAt, &row.payload, &row.metadata, &row.sequenceNumber)
		if scanErr != nil {
			es.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())

			return errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
		}

		if consumeErr := consume(row); consumeErr != nil {
			return consumeErr
		}
	}

	return nil
}

func (es EventStore) storableEventFromRow(ctx context.Context, row queryResultRow) (eventstore.StorableEvent, error) {
	event, buildErr := eventstore.BuildStorableEvent(row.eventType, row.occurredAt, row.payload, row.metadata)
	if buildErr != nil {
		es.logError(ctx, logMsgBuildStorableEventFailed, logAttrError, buildErr.Error(), logAttrEventType, row.eventType)

		return eventstore.StorableEvent{}, errors.Join(eventstore.ErrBuildingStorableEventFailed, buildErr)
	}

	return event, nil
}

// closeRows safely closes database rows and logs any errors.
func (es EventStore) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		es.logWarn(context.Background(), logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation, for both driver stacks the adapters support.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolationCode
	}

	return false
}
