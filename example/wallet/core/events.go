package core

import (
	"time"

	"github.com/google/uuid"
)

// Event type identifiers.
const (
	WalletOpenedEventType   = "WalletOpened"
	MoneyDepositedEventType = "MoneyDeposited"
	MoneyWithdrawnEventType = "MoneyWithdrawn"
)

// Event is the sum of all wallet domain events.
type Event interface {
	EventType() string
	HasOccurredAt() time.Time
}

// ToOccurredAt normalizes an event timestamp to UTC with microsecond
// precision, matching what a timestamptz column can hold.
func ToOccurredAt(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// WalletOpened represents when a wallet is opened for an owner.
type WalletOpened struct {
	WalletID   string
	Owner      string
	OccurredAt time.Time
}

// BuildWalletOpened creates a new WalletOpened event.
func BuildWalletOpened(walletID uuid.UUID, owner string, occurredAt time.Time) WalletOpened {
	return WalletOpened{
		WalletID:   walletID.String(),
		Owner:      owner,
		OccurredAt: ToOccurredAt(occurredAt),
	}
}

// EventType returns the event type identifier.
func (e WalletOpened) EventType() string {
	return WalletOpenedEventType
}

// HasOccurredAt returns when this event occurred.
func (e WalletOpened) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// MoneyDeposited represents when money is deposited into a wallet.
// Amount is in the smallest currency unit (cents).
type MoneyDeposited struct {
	WalletID   string
	Amount     int64
	OccurredAt time.Time
}

// BuildMoneyDeposited creates a new MoneyDeposited event.
func BuildMoneyDeposited(walletID uuid.UUID, amount int64, occurredAt time.Time) MoneyDeposited {
	return MoneyDeposited{
		WalletID:   walletID.String(),
		Amount:     amount,
		OccurredAt: ToOccurredAt(occurredAt),
	}
}

// EventType returns the event type identifier.
func (e MoneyDeposited) EventType() string {
	return MoneyDepositedEventType
}

// HasOccurredAt returns when this event occurred.
func (e MoneyDeposited) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// MoneyWithdrawn represents when money is withdrawn from a wallet.
// Amount is in the smallest currency unit (cents).
type MoneyWithdrawn struct {
	WalletID   string
	Amount     int64
	OccurredAt time.Time
}

// BuildMoneyWithdrawn creates a new MoneyWithdrawn event.
func BuildMoneyWithdrawn(walletID uuid.UUID, amount int64, occurredAt time.Time) MoneyWithdrawn {
	return MoneyWithdrawn{
		WalletID:   walletID.String(),
		Amount:     amount,
		OccurredAt: ToOccurredAt(occurredAt),
	}
}

// EventType returns the event type identifier.
func (e MoneyWithdrawn) EventType() string {
	return MoneyWithdrawnEventType
}

// HasOccurredAt returns when this event occurred.
func (e MoneyWithdrawn) HasOccurredAt() time.Time {
	return e.OccurredAt
}
