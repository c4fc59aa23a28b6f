package eventstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// Serializer is a bidirectional, partial mapping between a domain type and
// its serialized representation.
//
// Serialize is total: mapping a domain value to the wire is the producer's
// responsibility and must not fail. Deserialize is partial: it reports
// failure through the ok result, and callers drop the item rather than
// propagate an error. This one-directional tolerance is deliberate —
// schema drift across stored event versions must not halt replay.
type Serializer[D any, S any] interface {
	Serialize(domain D) S
	Deserialize(wire S) (D, bool)
}

// DeserializeAll maps serialized items to domain items, dropping every item
// the serializer cannot deserialize. Dropped items are reported to onDrop
// when it is non-nil. Order of the surviving items is preserved.
//
// Dropping instead of failing is the adapter's lossy-tolerance policy, not
// an oversight: a malformed or unknown event must not break replay.
func DeserializeAll[D any, S any](serializer Serializer[D, S], wire []S, onDrop func(dropped S)) []D {
	domain := make([]D, 0, len(wire))

	for _, item := range wire {
		decoded, ok := serializer.Deserialize(item)
		if !ok {
			if onDrop != nil {
				onDrop(item)
			}

			continue
		}

		domain = append(domain, decoded)
	}

	return domain
}

// NewSerializedReader wraps a reader of serialized items so it can be used
// as a reader of domain items. Items that fail deserialization are dropped
// from the result (see DeserializeAll).
func NewSerializedReader[K any, P any, D any, S any](
	inner Reader[K, P, S],
	serializer Serializer[D, S],
) Reader[K, P, D] {

	return NewSerializedReaderWithDropObserver(inner, serializer, nil)
}

// NewSerializedReaderWithDropObserver is NewSerializedReader with a
// diagnostic callback invoked for every dropped item.
func NewSerializedReaderWithDropObserver[K any, P any, D any, S any](
	inner Reader[K, P, S],
	serializer Serializer[D, S],
	onDrop func(dropped S),
) Reader[K, P, D] {

	return ReaderFunc[K, P, D](func(ctx context.Context, query RangeQuery[K, P]) ([]D, error) {
		wire, err := inner.Read(ctx, query)
		if err != nil {
			return nil, err
		}

		return DeserializeAll(serializer, wire, onDrop), nil
	})
}

// NewSerializedWriter wraps a writer of serialized items so it can be used
// as a writer of domain items. Events are serialized before being handed to
// the inner writer; serialization is total (see Serializer).
func NewSerializedWriter[K any, D any, S any](
	inner Writer[K, S],
	serializer Serializer[D, S],
) Writer[K, D] {

	return WriterFunc[K, D](func(ctx context.Context, expected ExpectedVersion, key K, events []D) error {
		wire := make([]S, len(events))
		for i, event := range events {
			wire[i] = serializer.Serialize(event)
		}

		return inner.Append(ctx, expected, key, wire)
	})
}

/***** lifting a single-event serializer through the wrapping structs *****/

type versionedSerializer[E any, S any] struct {
	inner Serializer[E, S]
}

// LiftVersioned adapts a single-event serializer to VersionedStreamEvents,
// applying the inner serializer to the event field only and leaving key and
// position untouched.
func LiftVersioned[E any, S any](inner Serializer[E, S]) Serializer[VersionedStreamEvent[E], VersionedStreamEvent[S]] {
	return versionedSerializer[E, S]{inner: inner}
}

func (l versionedSerializer[E, S]) Serialize(domain VersionedStreamEvent[E]) VersionedStreamEvent[S] {
	return NewVersionedStreamEvent(domain.Key, domain.Position, l.inner.Serialize(domain.Event))
}

func (l versionedSerializer[E, S]) Deserialize(wire VersionedStreamEvent[S]) (VersionedStreamEvent[E], bool) {
	event, ok := l.inner.Deserialize(wire.Event)
	if !ok {
		return VersionedStreamEvent[E]{}, false
	}

	return NewVersionedStreamEvent(wire.Key, wire.Position, event), true
}

type globalSerializer[E any, S any] struct {
	inner Serializer[E, S]
}

// LiftGlobal adapts a single-event serializer to GlobalStreamEvents,
// applying the inner serializer through both wrapping layers while leaving
// sequence number, stream key and stream version untouched.
func LiftGlobal[E any, S any](inner Serializer[E, S]) Serializer[GlobalStreamEvent[E], GlobalStreamEvent[S]] {
	return globalSerializer[E, S]{inner: inner}
}

func (l globalSerializer[E, S]) Serialize(domain GlobalStreamEvent[E]) GlobalStreamEvent[S] {
	return NewGlobalStreamEvent(domain.SequenceNumber, LiftVersioned(l.inner).Serialize(domain.VersionedEvent()))
}

func (l globalSerializer[E, S]) Deserialize(wire GlobalStreamEvent[S]) (GlobalStreamEvent[E], bool) {
	event, ok := LiftVersioned(l.inner).Deserialize(wire.VersionedEvent())
	if !ok {
		return GlobalStreamEvent[E]{}, false
	}

	return NewGlobalStreamEvent(wire.SequenceNumber, event), true
}

/***** convenience specializations for the common wire shape *****/

// NewSerializedStreamReader adapts a per-stream reader of serialized events
// to a per-stream reader of domain events.
func NewSerializedStreamReader[D any, S any](
	inner Reader[uuid.UUID, EventVersion, VersionedStreamEvent[S]],
	serializer Serializer[D, S],
) StreamReader[D] {

	return NewSerializedReader(inner, LiftVersioned(serializer))
}

// NewSerializedGlobalReader adapts a global-log reader of serialized events
// to a global-log reader of domain events.
func NewSerializedGlobalReader[D any, S any](
	inner Reader[GlobalKey, SequenceNumber, GlobalStreamEvent[S]],
	serializer Serializer[D, S],
) GlobalReader[D] {

	return NewSerializedReader(inner, LiftGlobal(serializer))
}

/***** JSON serializer for the StorableEvent wire shape *****/

// TypedEvent is the minimal contract a domain event must satisfy to be
// serialized by JSONSerializer.
type TypedEvent interface {
	EventType() string
	HasOccurredAt() time.Time
}

// JSONSerializer maps domain events to StorableEvents using jsoniter and a
// per-event-type decoder registry. Unknown event types and malformed
// payloads fail Deserialize, which makes the serialized-reader adapter drop
// them from replay.
type JSONSerializer[E TypedEvent] struct {
	decoders map[string]func(payload []byte) (E, bool)
}

// NewJSONSerializer creates an empty JSONSerializer; decoders are added
// with RegisterDecoder.
func NewJSONSerializer[E TypedEvent]() *JSONSerializer[E] {
	return &JSONSerializer[E]{
		decoders: make(map[string]func(payload []byte) (E, bool)),
	}
}

// RegisterDecoder registers the decoder for one event type, replacing any
// previous registration. It returns the serializer for chaining.
func (s *JSONSerializer[E]) RegisterDecoder(eventType string, decode func(payload []byte) (E, bool)) *JSONSerializer[E] {
	s.decoders[eventType] = decode
	return s
}

// Serialize maps a domain event to its wire representation. Domain events
// must marshal cleanly to JSON; a value that does not yields an event with
// an empty payload, which its decoder will reject on read.
func (s *JSONSerializer[E]) Serialize(domain E) StorableEvent {
	payload, marshalErr := jsoniter.ConfigFastest.Marshal(domain)
	if marshalErr != nil {
		payload = nil
	}

	return StorableEvent{
		EventType:    domain.EventType(),
		OccurredAt:   domain.HasOccurredAt(),
		PayloadJSON:  payload,
		MetadataJSON: []byte("{}"),
	}
}

// Deserialize maps a wire event back to its domain representation. It fails
// for unknown event types and for payloads the registered decoder rejects.
func (s *JSONSerializer[E]) Deserialize(wire StorableEvent) (E, bool) {
	var zero E

	decode, ok := s.decoders[wire.EventType]
	if !ok {
		return zero, false
	}

	return decode(wire.PayloadJSON)
}

// JSONDecoderFor builds a decoder for one concrete payload type T,
// unmarshalling with jsoniter and converting the result with build. Use it
// with JSONSerializer.RegisterDecoder.
func JSONDecoderFor[T any, E any](build func(payload T) E) func(payload []byte) (E, bool) {
	return func(payload []byte) (E, bool) {
		var zero E
		var dto T

		if unmarshalErr := jsoniter.ConfigFastest.Unmarshal(payload, &dto); unmarshalErr != nil {
			return zero, false
		}

		return build(dto), true
	}
}
