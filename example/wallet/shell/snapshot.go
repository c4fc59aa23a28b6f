package shell

import (
	"encoding/json"

	jsoniter "github.com/json-iterator/go"

	"github.com/eventfold/eventstore-go/eventstore"
	"github.com/eventfold/eventstore-go/example/wallet/core"
)

// SnapshotSerializer maps the Wallet projection state to the raw JSON
// shape the snapshot store persists. An undecodable snapshot fails
// deserialization, so the cache treats it as absent.
type SnapshotSerializer struct{}

var _ eventstore.Serializer[core.Wallet, json.RawMessage] = SnapshotSerializer{}

// NewSnapshotSerializer creates a SnapshotSerializer.
func NewSnapshotSerializer() SnapshotSerializer {
	return SnapshotSerializer{}
}

// Serialize implements the eventstore.Serializer interface.
func (SnapshotSerializer) Serialize(state core.Wallet) json.RawMessage {
	payload, marshalErr := jsoniter.ConfigFastest.Marshal(state)
	if marshalErr != nil {
		return nil
	}

	return payload
}

// Deserialize implements the eventstore.Serializer interface.
func (SnapshotSerializer) Deserialize(value json.RawMessage) (core.Wallet, bool) {
	var state core.Wallet
	if unmarshalErr := jsoniter.ConfigFastest.Unmarshal(value, &state); unmarshalErr != nil {
		return core.Wallet{}, false
	}

	return state, true
}
