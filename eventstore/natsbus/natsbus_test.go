package natsbus_test

import (
	"context"
	"testing"
	"time"

	natssrv "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/eventstore-go/eventstore"
	"github.com/eventfold/eventstore-go/eventstore/natsbus"
)

type somethingHappened struct {
	Value int       `json:"value"`
	At    time.Time `json:"at"`
}

func (e somethingHappened) EventType() string        { return "SomethingHappened" }
func (e somethingHappened) HasOccurredAt() time.Time { return e.At }

func runTestNATSServer(t *testing.T) *natssrv.Server {
	t.Helper()

	server, err := natssrv.NewServer(&natssrv.Options{Port: -1})
	require.NoError(t, err, "error creating embedded nats server in test setup")

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		server.Shutdown()
		t.Fatal("embedded nats server not ready")
	}

	t.Cleanup(server.Shutdown)

	return server
}

func testSerializer() *eventstore.JSONSerializer[somethingHappened] {
	return eventstore.NewJSONSerializer[somethingHappened]().
		RegisterDecoder("SomethingHappened",
			eventstore.JSONDecoderFor(func(dto somethingHappened) somethingHappened { return dto }))
}

func connectTestBus(t *testing.T, url string) (*natsbus.EventBus[somethingHappened], *nats.Conn) {
	t.Helper()

	conn, err := nats.Connect(url)
	require.NoError(t, err, "error connecting to embedded nats server")
	t.Cleanup(conn.Close)

	bus, err := natsbus.NewEventBus(conn, testSerializer(),
		natsbus.WithSubjectPrefix[somethingHappened]("eventstore.test"))
	require.NoError(t, err, "creating the event bus failed")

	return bus, conn
}

func Test_Publish_And_Subscribe_Roundtrip(t *testing.T) {
	// setup
	server := runTestNATSServer(t)
	bus, _ := connectTestBus(t, server.ClientURL())

	fakeClock := time.Unix(0, 0).UTC()
	published := eventstore.NewVersionedStreamEvent(
		eventstore.NewStreamKey(), eventstore.EventVersion(3), somethingHappened{Value: 42, At: fakeClock})

	received := make(chan eventstore.VersionedStreamEvent[somethingHappened], 1)

	// arrange
	subscription, subErr := bus.Subscribe(
		func(_ context.Context, event eventstore.VersionedStreamEvent[somethingHappened]) {
			received <- event
		})
	require.NoError(t, subErr, "error subscribing to the event bus")
	defer func() { _ = subscription.Unsubscribe() }()

	// act
	publishErr := bus.Publish(context.Background(), published)

	// assert
	require.NoError(t, publishErr, "error publishing the event")

	select {
	case event := <-received:
		assert.Equal(t, published.Key, event.Key)
		assert.Equal(t, published.Position, event.Position)
		assert.Equal(t, published.Event.Value, event.Event.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the published event")
	}
}

func Test_Subscribe_Drops_Undecodable_Messages(t *testing.T) {
	// setup
	server := runTestNATSServer(t)
	bus, conn := connectTestBus(t, server.ClientURL())

	received := make(chan eventstore.VersionedStreamEvent[somethingHappened], 2)

	subscription, subErr := bus.Subscribe(
		func(_ context.Context, event eventstore.VersionedStreamEvent[somethingHappened]) {
			received <- event
		})
	require.NoError(t, subErr)
	defer func() { _ = subscription.Unsubscribe() }()

	// act: raw garbage on the bus's prefix, then a well-formed event
	require.NoError(t, conn.Publish("eventstore.test.Garbage", []byte("not json")))

	wellFormed := eventstore.NewVersionedStreamEvent(
		eventstore.NewStreamKey(), eventstore.EventVersion(0),
		somethingHappened{Value: 7, At: time.Unix(0, 0).UTC()})
	require.NoError(t, bus.Publish(context.Background(), wellFormed))

	// assert: only the well-formed event survives
	select {
	case event := <-received:
		assert.Equal(t, 7, event.Event.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the well-formed event")
	}

	select {
	case event := <-received:
		t.Fatalf("the garbage message should have been dropped, got %v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func Test_NewEventBus_When_The_Connection_Is_Nil(t *testing.T) {
	// act
	_, err := natsbus.NewEventBus[somethingHappened](nil, testSerializer())

	// assert
	assert.ErrorIs(t, err, natsbus.ErrNilConnection)
}

func Test_NewEventBus_When_The_Serializer_Is_Nil(t *testing.T) {
	// setup
	server := runTestNATSServer(t)
	conn, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer conn.Close()

	// act
	_, busErr := natsbus.NewEventBus[somethingHappened](conn, nil)

	// assert
	assert.ErrorIs(t, busErr, natsbus.ErrNilSerializer)
}

func Test_Publish_When_The_Context_Is_Cancelled(t *testing.T) {
	// setup
	server := runTestNATSServer(t)
	bus, _ := connectTestBus(t, server.ClientURL())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	publishErr := bus.Publish(ctx, eventstore.NewVersionedStreamEvent(
		eventstore.NewStreamKey(), eventstore.EventVersion(0),
		somethingHappened{Value: 1, At: time.Unix(0, 0).UTC()}))

	// assert
	assert.ErrorIs(t, publishErr, natsbus.ErrPublishingEventFailed)
}
