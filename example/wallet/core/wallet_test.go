package core_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/eventstore-go/example/wallet/core"
)

func Test_BalanceProjection_Folds_Deposits_And_Withdrawals(t *testing.T) {
	// setup
	walletID := uuid.New()
	fakeClock := time.Unix(0, 0).UTC()
	projection := core.BalanceProjection()

	// act
	state := projection.Fold(projection.Seed,
		core.BuildWalletOpened(walletID, "alice", fakeClock),
		core.BuildMoneyDeposited(walletID, 100, fakeClock),
		core.BuildMoneyWithdrawn(walletID, 30, fakeClock),
		core.BuildMoneyDeposited(walletID, 5, fakeClock),
	)

	// assert
	assert.True(t, state.Opened)
	assert.Equal(t, "alice", state.Owner)
	assert.Equal(t, int64(75), state.Balance)
}

func Test_DecideOpen_When_The_Wallet_Is_Already_Opened(t *testing.T) {
	// setup
	walletID := uuid.New()
	fakeClock := time.Unix(0, 0).UTC()
	state := core.Wallet{Opened: true, Owner: "alice"}

	// act
	_, err := core.DecideOpen(state, core.OpenWallet{WalletID: walletID, Owner: "bob", OccurredAt: fakeClock})

	// assert
	assert.ErrorIs(t, err, core.ErrWalletAlreadyOpened)
}

func Test_DecideDeposit_Produces_A_MoneyDeposited_Event(t *testing.T) {
	// setup
	walletID := uuid.New()
	fakeClock := time.Unix(0, 0).UTC()
	state := core.Wallet{Opened: true, Balance: 50}

	// act
	event, err := core.DecideDeposit(state, core.DepositMoney{WalletID: walletID, Amount: 25, OccurredAt: fakeClock})

	// assert
	require.NoError(t, err)

	deposited, ok := event.(core.MoneyDeposited)
	require.True(t, ok)
	assert.Equal(t, walletID.String(), deposited.WalletID)
	assert.Equal(t, int64(25), deposited.Amount)
}

func Test_DecideDeposit_When_The_Wallet_Is_Not_Opened(t *testing.T) {
	// act
	_, err := core.DecideDeposit(core.Wallet{}, core.DepositMoney{WalletID: uuid.New(), Amount: 25})

	// assert
	assert.ErrorIs(t, err, core.ErrWalletNotOpened)
}

func Test_DecideWithdraw_When_The_Balance_Is_Too_Low(t *testing.T) {
	// setup
	state := core.Wallet{Opened: true, Balance: 10}

	// act
	_, err := core.DecideWithdraw(state, core.WithdrawMoney{WalletID: uuid.New(), Amount: 25})

	// assert
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)
}

func Test_DecideWithdraw_Rejects_Non_Positive_Amounts(t *testing.T) {
	// setup
	state := core.Wallet{Opened: true, Balance: 100}

	// act
	_, err := core.DecideWithdraw(state, core.WithdrawMoney{WalletID: uuid.New(), Amount: 0})

	// assert
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}
