package postgresengine_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/eventstore-go/eventstore"
	"github.com/eventfold/eventstore-go/eventstore/postgresengine"
)

func Test_NewEventStoreFromSQLDB_When_The_Connection_Is_Nil(t *testing.T) {
	// act
	_, err := postgresengine.NewEventStoreFromSQLDB(nil)

	// assert
	assert.ErrorIs(t, err, eventstore.ErrNilDatabaseConnection)
}

func Test_NewEventStoreFromPGXPool_When_The_Pool_Is_Nil(t *testing.T) {
	// act
	_, err := postgresengine.NewEventStoreFromPGXPool(nil)

	// assert
	assert.ErrorIs(t, err, eventstore.ErrNilDatabaseConnection)
}

func Test_NewEventStoreFromPGXPoolWithReplica_When_The_Replica_Is_Nil(t *testing.T) {
	// act
	_, err := postgresengine.NewEventStoreFromPGXPoolWithReplica(nil, nil)

	// assert
	assert.ErrorIs(t, err, eventstore.ErrNilDatabaseConnection)
}

func Test_NewEventStoreFromSQLX_When_The_Connection_Is_Nil(t *testing.T) {
	// act
	_, err := postgresengine.NewEventStoreFromSQLX(nil)

	// assert
	assert.ErrorIs(t, err, eventstore.ErrNilDatabaseConnection)
}

func Test_WithTableName_When_The_Name_Is_Empty(t *testing.T) {
	// setup
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// act
	_, factoryErr := postgresengine.NewEventStoreFromSQLDB(db, postgresengine.WithTableName(""))

	// assert
	assert.ErrorIs(t, factoryErr, eventstore.ErrEmptyEventsTableName)
}

func Test_WithSnapshotTableName_When_The_Name_Is_Empty(t *testing.T) {
	// setup
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// act
	_, factoryErr := postgresengine.NewEventStoreFromSQLDB(db, postgresengine.WithSnapshotTableName(""))

	// assert
	assert.ErrorIs(t, factoryErr, eventstore.ErrEmptySnapshotsTable)
}

func Test_WithTableName_Routes_Queries_To_The_Custom_Table(t *testing.T) {
	// setup
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	es, factoryErr := postgresengine.NewEventStoreFromSQLDB(db, postgresengine.WithTableName("wallet_events"))
	require.NoError(t, factoryErr)

	// arrange
	mock.ExpectQuery(`SELECT .+ FROM "wallet_events"`).
		WillReturnRows(sqlmock.NewRows(eventRowColumns()))

	// act
	events, readErr := es.ReadGlobal(context.Background(), eventstore.FromGlobalStart())

	// assert
	require.NoError(t, readErr)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}
