package postgresengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/eventfold/eventstore-go/eventstore"
)

const (
	defaultSnapshotTableName = "snapshots"

	colOrderKey  = "order_key"
	colState     = "state"
	colUpdatedAt = "updated_at"
)

// globalSnapshotKey is the reserved row key for the global-log snapshot.
// Stream keys are always generated UUIDs, so the nil UUID never collides.
var globalSnapshotKey = uuid.Nil

// SaveSnapshot upserts the serialized projection state for key at orderKey.
// The upsert only replaces an existing row when orderKey is newer, so a
// slow writer cannot clobber a fresher snapshot; the write is atomic per
// row, which is all the cache contract requires.
func (es EventStore) SaveSnapshot(ctx context.Context, key uuid.UUID, orderKey int64, state json.RawMessage) error {
	if !jsoniter.ConfigFastest.Valid(state) {
		return errors.Join(eventstore.ErrSavingSnapshotFailed, eventstore.ErrInvalidPayloadJSON)
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(es.snapshotTableName).
		Cols(colStreamKey, colOrderKey, colState, colUpdatedAt).
		FromQuery(goqu.Dialect(dialectPostgres).Select(
			goqu.L(castUUID, key.String()),
			goqu.L(castBigint, orderKey),
			goqu.L(castJsonb, []byte(state)),
			goqu.L(castTimestamp, time.Now().UTC()),
		)).
		OnConflict(goqu.DoUpdate(colStreamKey, goqu.Record{
			colOrderKey:  goqu.L("EXCLUDED." + colOrderKey),
			colState:     goqu.L("EXCLUDED." + colState),
			colUpdatedAt: goqu.L("EXCLUDED." + colUpdatedAt),
		}).Where(goqu.L(fmt.Sprintf("%s.%s < EXCLUDED.%s", es.snapshotTableName, colOrderKey, colOrderKey))))

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()
	_, execErr := es.db.Exec(ctx, sqlQuery)
	es.logQueryWithDuration(ctx, sqlQuery, logActionSaveSnapshot, time.Since(start))

	if execErr != nil {
		es.logError(ctx, logMsgSaveSnapshotFailed, logAttrError, execErr.Error())

		return errors.Join(eventstore.ErrSavingSnapshotFailed, execErr)
	}

	return nil
}

// LoadSnapshot loads the snapshot stored for key; ok is false when no row
// exists. A missing snapshot is not an error — the cache is an accelerator.
func (es EventStore) LoadSnapshot(ctx context.Context, key uuid.UUID) (int64, json.RawMessage, bool, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.snapshotTableName).
		Select(colOrderKey, colState).
		Where(goqu.C(colStreamKey).Eq(key.String()))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return 0, nil, false, errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	es.logQueryWithDuration(ctx, sqlQuery, logActionLoadSnapshot, time.Since(start))

	if queryErr != nil {
		es.logError(ctx, logMsgLoadSnapshotFailed, logAttrError, queryErr.Error())

		return 0, nil, false, errors.Join(eventstore.ErrLoadingSnapshotFailed, queryErr)
	}
	defer es.closeRows(rows)

	if !rows.Next() {
		return 0, nil, false, nil
	}

	var orderKey int64
	var state []byte
	if scanErr := rows.Scan(&orderKey, &state); scanErr != nil {
		return 0, nil, false, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
	}

	return orderKey, state, true, nil
}

// DeleteSnapshot removes the snapshot stored for key, if any.
func (es EventStore) DeleteSnapshot(ctx context.Context, key uuid.UUID) error {
	deleteStmt := goqu.Dialect(dialectPostgres).
		Delete(es.snapshotTableName).
		Where(goqu.C(colStreamKey).Eq(key.String()))

	sqlQuery, _, toSQLErr := deleteStmt.ToSQL()
	if toSQLErr != nil {
		return errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	if _, execErr := es.db.Exec(ctx, sqlQuery); execErr != nil {
		return errors.Join(eventstore.ErrDeletingSnapshotFailed, execErr)
	}

	return nil
}

// StreamSnapshotCache returns the per-stream ProjectionCache contract
// backed by this store's snapshots table.
func (es EventStore) StreamSnapshotCache() eventstore.StreamProjectionCache[json.RawMessage] {
	return streamSnapshotCache{es: es}
}

// GlobalSnapshotCache returns the global-log ProjectionCache contract
// backed by this store's snapshots table.
func (es EventStore) GlobalSnapshotCache() eventstore.GlobalProjectionCache[json.RawMessage] {
	return globalSnapshotCache{es: es}
}

type streamSnapshotCache struct {
	es EventStore
}

func (c streamSnapshotCache) StoreSnapshot(ctx context.Context, key uuid.UUID, orderKey eventstore.EventVersion, value json.RawMessage) error {
	return c.es.SaveSnapshot(ctx, key, int64(orderKey), value)
}

func (c streamSnapshotCache) LoadSnapshot(ctx context.Context, key uuid.UUID) (eventstore.EventVersion, json.RawMessage, bool, error) {
	orderKey, state, ok, err := c.es.LoadSnapshot(ctx, key)

	return eventstore.EventVersion(orderKey), state, ok, err
}

type globalSnapshotCache struct {
	es EventStore
}

func (c globalSnapshotCache) StoreSnapshot(ctx context.Context, _ eventstore.GlobalKey, orderKey eventstore.SequenceNumber, value json.RawMessage) error {
	return c.es.SaveSnapshot(ctx, globalSnapshotKey, int64(orderKey), value)
}

func (c globalSnapshotCache) LoadSnapshot(ctx context.Context, _ eventstore.GlobalKey) (eventstore.SequenceNumber, json.RawMessage, bool, error) {
	orderKey, state, ok, err := c.es.LoadSnapshot(ctx, globalSnapshotKey)

	return eventstore.SequenceNumber(orderKey), state, ok, err
}
