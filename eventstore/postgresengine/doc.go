// Package postgresengine provides a PostgreSQL implementation of the
// eventstore reader and writer contracts.
//
// Events live in a single table keyed by (stream_key, version) with a
// store-wide bigserial sequence number for the global log. Expected-version
// checks and appends run as one conditional INSERT, so the check-then-append
// sequence is serialized by the database rather than by application locks.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Read replica routing driven by the context's consistency level
//   - Atomic event appending with concurrency conflict detection
//   - Snapshot storage with monotonic order-key guarded upserts
//   - Configurable table names, dual-logger, metrics, and tracing support
//
// Usage examples:
//
//	// Basic usage
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewEventStoreFromPGXPool(db)
//
//	// With observability
//	store, _ := postgresengine.NewEventStoreFromPGXPool(
//		db,
//		postgresengine.WithTableName("my_events"),
//		postgresengine.WithContextualLogger(logger),
//		postgresengine.WithMetrics(metrics),
//	)
//
//	events, _ := store.ReadStream(ctx, eventstore.FromStart(streamKey))
//	err := store.Append(ctx, eventstore.ExactVersion(2), streamKey, newEvents)
package postgresengine
