package postgresengine

import (
	"context"
	"errors"
	"fmt"
)

// ErrCreatingTableFailed occurs when the schema DDL cannot be applied.
var ErrCreatingTableFailed = errors.New("error creating table")

// CreateEventsTable creates the events table and its indexes if they do not
// exist. The UNIQUE constraint on (stream_key, version) is what turns a lost
// race between unconditional writers into a reported conflict instead of a
// corrupted stream, so it is not optional.
func (es EventStore) CreateEventsTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			sequence_number BIGSERIAL PRIMARY KEY,
			stream_key      UUID NOT NULL,
			version         BIGINT NOT NULL,
			event_type      TEXT NOT NULL,
			occurred_at     TIMESTAMP WITH TIME ZONE NOT NULL,
			payload         JSONB NOT NULL,
			metadata        JSONB NOT NULL,
			UNIQUE (stream_key, version)
		)`, es.eventTableName)

	if _, execErr := es.db.Exec(ctx, ddl); execErr != nil {
		return errors.Join(ErrCreatingTableFailed, execErr)
	}

	indexDDL := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_stream_key_version ON %s (stream_key, version)`,
		es.eventTableName, es.eventTableName)

	if _, execErr := es.db.Exec(ctx, indexDDL); execErr != nil {
		return errors.Join(ErrCreatingTableFailed, execErr)
	}

	return nil
}

// CreateSnapshotsTable creates the snapshots table if it does not exist.
func (es EventStore) CreateSnapshotsTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			stream_key UUID PRIMARY KEY,
			order_key  BIGINT NOT NULL,
			state      JSONB NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL
		)`, es.snapshotTableName)

	if _, execErr := es.db.Exec(ctx, ddl); execErr != nil {
		return errors.Join(ErrCreatingTableFailed, execErr)
	}

	return nil
}
