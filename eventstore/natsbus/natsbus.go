// Package natsbus publishes written events to NATS subjects, so downstream
// consumers can follow a store's streams without polling the global log.
//
// Delivery is at-most-once from the consumer's point of view: the bus is a
// notification channel, not the source of truth. Consumers that must not
// miss events catch up from the store's global reader and use the bus only
// as a wake-up signal.
package natsbus

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"

	"github.com/eventfold/eventstore-go/eventstore"
)

const defaultSubjectPrefix = "eventstore.events"

var (
	// ErrNilConnection occurs when the bus is built without a NATS connection.
	ErrNilConnection = errors.New("nats connection must not be nil")

	// ErrNilSerializer occurs when the bus is built without a serializer.
	ErrNilSerializer = errors.New("serializer must not be nil")

	// ErrPublishingEventFailed occurs when a message cannot be handed to NATS.
	ErrPublishingEventFailed = errors.New("error publishing event to nats")
)

// envelope is the wire shape of a published event. Payload and metadata stay
// raw JSON so consumers without the domain's decoders can still route on the
// event type.
type envelope struct {
	StreamKey  string              `json:"stream_key"`
	Version    int64               `json:"version"`
	EventType  string              `json:"event_type"`
	OccurredAt time.Time           `json:"occurred_at"`
	Payload    jsoniter.RawMessage `json:"payload"`
	Metadata   jsoniter.RawMessage `json:"metadata"`
}

// Option is a function that configures an EventBus instance.
type Option[E any] func(*EventBus[E]) error

// WithSubjectPrefix sets the subject prefix; events are published to
// "<prefix>.<event_type>".
func WithSubjectPrefix[E any](prefix string) Option[E] {
	return func(b *EventBus[E]) error {
		if prefix == "" {
			return errors.New("subject prefix must not be empty")
		}

		b.subjectPrefix = prefix

		return nil
	}
}

// WithLogger sets the logger for the EventBus.
func WithLogger[E any](logger eventstore.Logger) Option[E] {
	return func(b *EventBus[E]) error {
		b.logger = logger
		return nil
	}
}

// EventBus publishes versioned stream events to NATS, one subject per event
// type under a common prefix.
type EventBus[E any] struct {
	conn          *nats.Conn
	serializer    eventstore.Serializer[E, eventstore.StorableEvent]
	subjectPrefix string
	logger        eventstore.Logger
}

var _ eventstore.EventBus[struct{}] = (*EventBus[struct{}])(nil)

// NewEventBus creates an EventBus on an established NATS connection. The
// serializer turns domain events into their storable wire shape before
// publishing; it is the same adapter used against the store itself.
func NewEventBus[E any](
	conn *nats.Conn,
	serializer eventstore.Serializer[E, eventstore.StorableEvent],
	options ...Option[E],
) (*EventBus[E], error) {

	if conn == nil {
		return nil, ErrNilConnection
	}

	if serializer == nil {
		return nil, ErrNilSerializer
	}

	bus := &EventBus[E]{
		conn:          conn,
		serializer:    serializer,
		subjectPrefix: defaultSubjectPrefix,
	}

	for _, option := range options {
		if err := option(bus); err != nil {
			return nil, err
		}
	}

	return bus, nil
}

// Publish serializes the event and publishes it to
// "<prefix>.<event_type>". It returns once NATS has accepted the message;
// it does not wait for consumers.
func (b *EventBus[E]) Publish(ctx context.Context, event eventstore.VersionedStreamEvent[E]) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ErrPublishingEventFailed, ctxErr)
	}

	storable := b.serializer.Serialize(event.Event)

	data, marshalErr := jsoniter.ConfigFastest.Marshal(envelope{
		StreamKey:  event.Key.String(),
		Version:    int64(event.Position),
		EventType:  storable.EventType,
		OccurredAt: storable.OccurredAt,
		Payload:    jsoniter.RawMessage(storable.PayloadJSON),
		Metadata:   jsoniter.RawMessage(storable.MetadataJSON),
	})
	if marshalErr != nil {
		return errors.Join(ErrPublishingEventFailed, marshalErr)
	}

	if publishErr := b.conn.Publish(b.subject(storable.EventType), data); publishErr != nil {
		if b.logger != nil {
			b.logger.Error(logMsgPublishFailed,
				logAttrSubject, b.subject(storable.EventType), logAttrError, publishErr.Error())
		}

		return errors.Join(ErrPublishingEventFailed, publishErr)
	}

	return nil
}

// Subscribe registers handler for every event published under the bus's
// prefix. Messages that do not decode back into a domain event are dropped
// silently, consistent with the store's read-side tolerance for unknown
// event types; a logger, when configured, records the drop.
//
// The returned Subscription must be unsubscribed or drained by the caller.
func (b *EventBus[E]) Subscribe(
	handler func(ctx context.Context, event eventstore.VersionedStreamEvent[E]),
) (*nats.Subscription, error) {

	return b.conn.Subscribe(b.subjectPrefix+".>", func(msg *nats.Msg) {
		event, ok := b.decode(msg.Data)
		if !ok {
			return
		}

		handler(context.Background(), event)
	})
}

func (b *EventBus[E]) decode(data []byte) (eventstore.VersionedStreamEvent[E], bool) {
	var zero eventstore.VersionedStreamEvent[E]

	var env envelope
	if unmarshalErr := jsoniter.ConfigFastest.Unmarshal(data, &env); unmarshalErr != nil {
		b.logDropped(logAttrError, unmarshalErr.Error())
		return zero, false
	}

	key, parseErr := uuid.Parse(env.StreamKey)
	if parseErr != nil {
		b.logDropped(logAttrError, parseErr.Error())
		return zero, false
	}

	storable, buildErr := eventstore.BuildStorableEvent(
		env.EventType, env.OccurredAt, []byte(env.Payload), []byte(env.Metadata))
	if buildErr != nil {
		b.logDropped(logAttrError, buildErr.Error())
		return zero, false
	}

	domainEvent, ok := b.serializer.Deserialize(storable)
	if !ok {
		b.logDropped(logAttrEventType, env.EventType)
		return zero, false
	}

	return eventstore.NewVersionedStreamEvent(key, eventstore.EventVersion(env.Version), domainEvent), true
}

func (b *EventBus[E]) logDropped(args ...any) {
	if b.logger != nil {
		b.logger.Warn(logMsgMessageDropped, args...)
	}
}

func (b *EventBus[E]) subject(eventType string) string {
	return b.subjectPrefix + "." + eventType
}

const (
	logMsgPublishFailed  = "failed to publish event to nats"
	logMsgMessageDropped = "dropped undecodable nats message"

	logAttrSubject   = "subject"
	logAttrError     = "error"
	logAttrEventType = "event_type"
)
