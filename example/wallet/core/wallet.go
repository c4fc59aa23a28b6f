package core

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/eventfold/eventstore-go/eventstore"
)

// Domain errors returned by the decide functions.
var (
	ErrWalletAlreadyOpened = errors.New("wallet is already opened")
	ErrWalletNotOpened     = errors.New("wallet is not opened")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientFunds   = errors.New("insufficient funds")
)

// Wallet is the projected state of a single wallet stream.
type Wallet struct {
	Opened  bool
	Owner   string
	Balance int64
}

// BalanceProjection folds wallet events into the Wallet state.
func BalanceProjection() eventstore.Projection[Wallet, Event] {
	return eventstore.Projection[Wallet, Event]{
		Seed: Wallet{},
		Step: func(state Wallet, event Event) Wallet {
			switch e := event.(type) {
			case WalletOpened:
				state.Opened = true
				state.Owner = e.Owner
			case MoneyDeposited:
				state.Balance += e.Amount
			case MoneyWithdrawn:
				state.Balance -= e.Amount
			}

			return state
		},
	}
}

// OpenWallet represents the intent to open a wallet for an owner.
type OpenWallet struct {
	WalletID   uuid.UUID
	Owner      string
	OccurredAt time.Time
}

// CommandType returns the type identifier for this command.
func (c OpenWallet) CommandType() string {
	return "OpenWallet"
}

// DepositMoney represents the intent to deposit money into a wallet.
type DepositMoney struct {
	WalletID   uuid.UUID
	Amount     int64
	OccurredAt time.Time
}

// CommandType returns the type identifier for this command.
func (c DepositMoney) CommandType() string {
	return "DepositMoney"
}

// WithdrawMoney represents the intent to withdraw money from a wallet.
type WithdrawMoney struct {
	WalletID   uuid.UUID
	Amount     int64
	OccurredAt time.Time
}

// CommandType returns the type identifier for this command.
func (c WithdrawMoney) CommandType() string {
	return "WithdrawMoney"
}

// DecideOpen rejects opening a wallet that is already opened.
func DecideOpen(state Wallet, command OpenWallet) (Event, error) {
	if state.Opened {
		return nil, ErrWalletAlreadyOpened
	}

	return BuildWalletOpened(command.WalletID, command.Owner, command.OccurredAt), nil
}

// DecideDeposit rejects deposits into an unopened wallet and non-positive amounts.
func DecideDeposit(state Wallet, command DepositMoney) (Event, error) {
	if !state.Opened {
		return nil, ErrWalletNotOpened
	}

	if command.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	return BuildMoneyDeposited(command.WalletID, command.Amount, command.OccurredAt), nil
}

// DecideWithdraw rejects withdrawals that would overdraw the wallet.
func DecideWithdraw(state Wallet, command WithdrawMoney) (Event, error) {
	if !state.Opened {
		return nil, ErrWalletNotOpened
	}

	if command.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if state.Balance < command.Amount {
		return nil, ErrInsufficientFunds
	}

	return BuildMoneyWithdrawn(command.WalletID, command.Amount, command.OccurredAt), nil
}
