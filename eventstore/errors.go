package eventstore

import "errors"

// Errors shared by the concrete engines. Engines wrap the backend failure
// with errors.Join so callers can match the category with errors.Is and
// still see the driver error.
var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrEmptyEventsTableName  = errors.New("events table name must not be empty")
	ErrEmptySnapshotsTable   = errors.New("snapshots table name must not be empty")

	ErrBuildingQueryFailed         = errors.New("building query failed")
	ErrQueryingEventsFailed        = errors.New("querying events failed")
	ErrScanningDBRowFailed         = errors.New("scanning database row failed")
	ErrBuildingStorableEventFailed = errors.New("building storable event from database row failed")
	ErrAppendingEventFailed        = errors.New("appending events failed")
	ErrGettingRowsAffectedFailed   = errors.New("getting rows affected failed")
	ErrQueryingVersionFailed       = errors.New("querying stream version failed")

	ErrSavingSnapshotFailed   = errors.New("saving snapshot failed")
	ErrLoadingSnapshotFailed  = errors.New("loading snapshot failed")
	ErrDeletingSnapshotFailed = errors.New("deleting snapshot failed")
)
