package shell

import (
	"github.com/eventfold/eventstore-go/eventstore"
	"github.com/eventfold/eventstore-go/example/wallet/core"
)

// NewEventSerializer creates the serializer for all wallet domain events.
// Events of unknown types, for example from a newer deployment, fail
// deserialization and are dropped from replay.
func NewEventSerializer() *eventstore.JSONSerializer[core.Event] {
	return eventstore.NewJSONSerializer[core.Event]().
		RegisterDecoder(core.WalletOpenedEventType,
			eventstore.JSONDecoderFor(func(payload core.WalletOpened) core.Event { return payload })).
		RegisterDecoder(core.MoneyDepositedEventType,
			eventstore.JSONDecoderFor(func(payload core.MoneyDeposited) core.Event { return payload })).
		RegisterDecoder(core.MoneyWithdrawnEventType,
			eventstore.JSONDecoderFor(func(payload core.MoneyWithdrawn) core.Event { return payload }))
}
