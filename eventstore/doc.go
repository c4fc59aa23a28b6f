// Package eventstore provides the core abstractions for event sourcing over
// versioned, append-only event streams.
//
// A stream is identified by a UUID key; positions within one stream are
// EventVersions (zero-based, gapless), while the store-wide total order is
// established by SequenceNumbers. The package defines the generic Reader
// and Writer contracts every concrete engine implements, the
// expected-version optimistic-concurrency protocol, the serializer adapter
// that lets typed domain events flow through engines that only persist
// StorableEvents, and the projection fold model with its snapshot cache.
//
// Key types:
//   - StreamEvent / VersionedStreamEvent / GlobalStreamEvent: event shapes
//   - ExpectedVersion / ConcurrencyError: the optimistic write protocol
//   - Reader / Writer: the engine contracts
//   - Serializer: the domain <-> wire mapping with lossy deserialization
//   - Projection / StreamProjection / GlobalProjection: fold-based state
//   - ProjectionCache: the staleness-safe snapshot accelerator
//
// Common usage pattern:
//
//	reader := eventstore.NewSerializedStreamReader(store.StreamReader(), serializer)
//	writer := eventstore.NewSerializedWriter(store, serializer)
//
//	latest, err := eventstore.GetLatestProjection(ctx, reader, prior)
//	if err != nil {
//		// handle error
//	}
//
//	err = writer.Append(ctx, eventstore.ExactVersion(latest.Version), key, newEvents)
//	if errors.Is(err, eventstore.ErrConcurrencyConflict) {
//		// reload and retry
//	}
package eventstore
