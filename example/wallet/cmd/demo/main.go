// The demo command runs one wallet lifecycle against a real Postgres
// instance: open, deposit, withdraw, one rejected overdraft, then a
// snapshot-backed balance projection. Connection settings come from
// EVENTSTORE_POSTGRES_* environment variables; set NATS_URL to also
// publish every persisted event to NATS.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/eventfold/eventstore-go/eventstore"
	"github.com/eventfold/eventstore-go/eventstore/natsbus"
	"github.com/eventfold/eventstore-go/eventstore/oteladapters"
	"github.com/eventfold/eventstore-go/eventstore/postgresengine"
	"github.com/eventfold/eventstore-go/example/wallet/core"
	"github.com/eventfold/eventstore-go/example/wallet/shell"
	"github.com/eventfold/eventstore-go/testutil/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := run(context.Background(), logger); err != nil {
		logger.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.LoadPostgresConfig()
	if err != nil {
		return err
	}

	poolConfig, err := cfg.PGXPoolConfig()
	if err != nil {
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return err
	}
	defer pool.Close()

	es, err := postgresengine.NewEventStoreFromPGXPool(
		pool,
		postgresengine.WithContextualLogger(oteladapters.NewSlogBridgeLoggerWithHandler(logger.Handler())),
	)
	if err != nil {
		return err
	}

	if err = es.CreateEventsTable(ctx); err != nil {
		return err
	}
	if err = es.CreateSnapshotsTable(ctx); err != nil {
		return err
	}

	serializer := shell.NewEventSerializer()
	reader := eventstore.NewSerializedStreamReader[core.Event, eventstore.StorableEvent](es.StreamReader(), serializer)
	writer := eventstore.NewSerializedWriter[uuid.UUID, core.Event, eventstore.StorableEvent](es, serializer)

	bus, cleanup, err := connectBus(serializer, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	walletID := eventstore.NewStreamKey()
	projection := core.BalanceProjection()

	commands := []struct {
		name    string
		execute func() (eventstore.VersionedStreamEvent[core.Event], error)
	}{
		{"open wallet", func() (eventstore.VersionedStreamEvent[core.Event], error) {
			return eventstore.ExecuteCommand(ctx, reader, writer, bus, projection, walletID,
				core.OpenWallet{WalletID: walletID, Owner: "alice", OccurredAt: time.Now()}, core.DecideOpen)
		}},
		{"deposit 100.00", func() (eventstore.VersionedStreamEvent[core.Event], error) {
			return eventstore.ExecuteCommand(ctx, reader, writer, bus, projection, walletID,
				core.DepositMoney{WalletID: walletID, Amount: 10000, OccurredAt: time.Now()}, core.DecideDeposit)
		}},
		{"withdraw 25.00", func() (eventstore.VersionedStreamEvent[core.Event], error) {
			return eventstore.ExecuteCommand(ctx, reader, writer, bus, projection, walletID,
				core.WithdrawMoney{WalletID: walletID, Amount: 2500, OccurredAt: time.Now()}, core.DecideWithdraw)
		}},
	}

	for _, command := range commands {
		written, commandErr := command.execute()
		if commandErr != nil {
			return commandErr
		}

		logger.Info("command accepted",
			"command", command.name,
			"event_type", written.Event.EventType(),
			"version", int64(written.Position))
	}

	// An overdraft is a domain rejection, not a failure of the demo.
	_, overdraftErr := eventstore.ExecuteCommand(ctx, reader, writer, bus, projection, walletID,
		core.WithdrawMoney{WalletID: walletID, Amount: 1_000_000, OccurredAt: time.Now()}, core.DecideWithdraw)
	logger.Info("overdraft rejected", "error", overdraftErr)

	latest, err := eventstore.UpdateProjectionCache(
		ctx,
		reader,
		es.StreamSnapshotCache(),
		shell.NewSnapshotSerializer(),
		eventstore.NewStreamProjection(walletID, projection),
	)
	if err != nil {
		return err
	}

	logger.Info("wallet projected",
		"wallet_id", walletID.String(),
		"owner", latest.State.Owner,
		"balance", latest.State.Balance,
		"version", int64(latest.Version))

	return nil
}

// connectBus wires the NATS event bus when NATS_URL is set; the demo runs
// without a bus otherwise.
func connectBus(
	serializer eventstore.Serializer[core.Event, eventstore.StorableEvent],
	logger *slog.Logger,
) (eventstore.EventBus[core.Event], func(), error) {

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		return nil, func() {}, nil
	}

	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, nil, err
	}

	bus, err := natsbus.NewEventBus[core.Event](conn, serializer)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	subscription, err := bus.Subscribe(func(_ context.Context, event eventstore.VersionedStreamEvent[core.Event]) {
		logger.Info("event received from bus",
			"event_type", event.Event.EventType(),
			"stream_key", event.Key.String(),
			"version", int64(event.Position))
	})
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = subscription.Unsubscribe()
		conn.Close()
	}

	return bus, cleanup, nil
}
